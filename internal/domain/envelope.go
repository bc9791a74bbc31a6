package domain

// DefaultEvaluateTarget is the participant scored when the request does not
// name one.
const DefaultEvaluateTarget = "assistant"

// EvaluateRequest is the wire payload from client to service.
type EvaluateRequest struct {
	// InputText is the transcript to score. Mandatory, non-empty.
	InputText string `json:"input_text"`

	// EvaluateTarget names the conversation participant to score.
	// Defaults to "assistant".
	EvaluateTarget string `json:"evaluate_target,omitempty"`
}

// EvaluateResponse is the fixed JSON envelope returned for every outcome.
// Success carries the markdown verdict plus timing; failures carry the error
// message. RequestID is present in all variants.
type EvaluateResponse struct {
	Success           bool   `json:"success"`
	OutputText        string `json:"output_text,omitempty"`
	Error             string `json:"error,omitempty"`
	RequestID         string `json:"request_id"`
	DurationMS        int64  `json:"duration_ms"`
	APICallDurationMS int64  `json:"api_call_duration_ms"`
}

// Evaluation is the successful outcome of one service invocation.
type Evaluation struct {
	// RequestID is minted once per invocation and threaded through logs
	// and the response envelope.
	RequestID string

	// OutputText is the delegate's trimmed markdown verdict.
	OutputText string

	// DurationMS is the total handler time.
	DurationMS int64

	// APICallDurationMS is the delegate-call-only time, measured
	// separately so callers can distinguish provider latency from
	// marshalling overhead.
	APICallDurationMS int64
}

// Envelope converts a successful evaluation to its wire shape.
func (ev *Evaluation) Envelope() EvaluateResponse {
	return EvaluateResponse{
		Success:           true,
		OutputText:        ev.OutputText,
		RequestID:         ev.RequestID,
		DurationMS:        ev.DurationMS,
		APICallDurationMS: ev.APICallDurationMS,
	}
}

// ErrorEnvelope converts a failure to its wire shape.
func ErrorEnvelope(err *EvalError) EvaluateResponse {
	return EvaluateResponse{
		Success:    false,
		Error:      err.Message,
		RequestID:  err.RequestID,
		DurationMS: err.DurationMS,
	}
}
