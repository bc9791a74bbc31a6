// Package evaluator implements the server-side evaluation core: input
// validation, timeout-bounded delegation to the scoring model, and
// normalization of every outcome into the response envelope taxonomy.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tiktoken-go/tokenizer"

	"voicebot-evaluator/internal/api/openai"
	"voicebot-evaluator/internal/domain"
)

// DefaultTimeout is the delegate-call ceiling used when none is configured.
const DefaultTimeout = 8 * time.Second

// defaultTemperature keeps scoring near-deterministic across runs.
const defaultTemperature = 0.3

// Delegate is the chat-completion backend that performs the actual scoring.
// It is opaque to this package: possibly slow, possibly failing.
type Delegate interface {
	CreateChatCompletion(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
}

// Config carries the process-wide settings injected at construction.
// Read-only after start; tests supply doubles with different ceilings.
type Config struct {
	// Model is the delegate model name.
	Model string

	// Timeout bounds each delegate call. Zero means DefaultTimeout.
	Timeout time.Duration

	// DefaultTarget is used when a request does not name an evaluate
	// target. Empty means domain.DefaultEvaluateTarget.
	DefaultTarget string
}

// Recorder persists one audit row per invocation. Implementations must
// tolerate being called after the response has been written.
type Recorder interface {
	RecordEvaluation(ctx context.Context, rec *EvaluationRecord) error
}

// EvaluationRecord is the audit row for one service invocation.
type EvaluationRecord struct {
	RequestID         string
	Target            string
	InputText         string
	OutputText        string
	Status            string
	ErrorMessage      string
	DurationMS        int64
	APICallDurationMS int64
}

// Service orchestrates one evaluation per call. Each invocation is an
// independent, stateless unit of work; the only shared state is this
// read-only configuration.
type Service struct {
	delegate Delegate
	cfg      Config
	logger   *slog.Logger
	recorder Recorder

	// codec estimates prompt size for the structured log line. nil when
	// the encoding is unavailable; estimation is best-effort only.
	codec tokenizer.Codec
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithRecorder attaches an audit recorder. Recording is fire-and-forget and
// never affects the response.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		s.recorder = r
	}
}

// New creates a service around the given delegate.
func New(delegate Delegate, cfg Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DefaultTarget == "" {
		cfg.DefaultTarget = domain.DefaultEvaluateTarget
	}

	s := &Service{
		delegate: delegate,
		cfg:      cfg,
		logger:   logger,
	}

	// gpt-4o family and everything newer uses o200k_base.
	if codec, err := tokenizer.Get(tokenizer.O200kBase); err == nil {
		s.codec = codec
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

type delegateOutcome struct {
	resp *openai.ChatCompletionResponse
	err  error
}

// Evaluate runs one invocation: Received -> Validating -> (Rejected) |
// Delegating -> (TimedOut | Delegated) -> Responded. Every failure is
// returned as a *domain.EvalError carrying the request ID; nothing escapes
// untyped. No retries are performed here or anywhere downstream.
func (s *Service) Evaluate(ctx context.Context, req *domain.EvaluateRequest) (*domain.Evaluation, *domain.EvalError) {
	requestID := uuid.New().String()
	start := time.Now()

	if req == nil || req.InputText == "" {
		evalErr := domain.ErrValidation("input_text is mandatory").WithRequestID(requestID)
		s.logger.Warn("evaluation rejected",
			slog.String("request_id", requestID),
			slog.String("reason", evalErr.Message),
		)
		s.record(requestID, req, nil, evalErr, start)
		return nil, evalErr
	}

	target := req.EvaluateTarget
	if target == "" {
		target = s.cfg.DefaultTarget
	}

	temperature := defaultTemperature
	apiReq := &openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: &temperature,
		Messages: []openai.ChatMessage{
			{Role: "system", Content: systemPrompt(target)},
			{Role: "user", Content: req.InputText},
		},
	}

	s.logger.Info("evaluation started",
		slog.String("request_id", requestID),
		slog.String("target", target),
		slog.Int("input_chars", len(req.InputText)),
		slog.Int("prompt_tokens_est", s.estimateTokens(apiReq)),
	)

	// Race the delegate call against the ceiling. The channel is buffered
	// so the losing goroutine can deliver and exit; its result is merely
	// unobserved. The request context still propagates, so transports
	// that support cancellation abort the abandoned call upstream.
	outcome := make(chan delegateOutcome, 1)
	callStart := time.Now()
	go func() {
		resp, err := s.delegate.CreateChatCompletion(ctx, apiReq)
		outcome <- delegateOutcome{resp: resp, err: err}
	}()

	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		evalErr := domain.ErrTimeout(fmt.Sprintf(
			"evaluation timed out after %s; try a shorter transcript or retry later",
			s.cfg.Timeout,
		)).WithRequestID(requestID)
		s.logger.Error("evaluation timed out",
			slog.String("request_id", requestID),
			slog.Duration("ceiling", s.cfg.Timeout),
		)
		s.record(requestID, req, nil, evalErr, start)
		return nil, evalErr

	case out := <-outcome:
		apiDuration := time.Since(callStart)

		if out.err != nil {
			evalErr := domain.ErrDelegate(out.err.Error()).
				WithRequestID(requestID).
				WithDuration(time.Since(start).Milliseconds())
			s.logger.Error("delegate call failed",
				slog.String("request_id", requestID),
				slog.String("error", out.err.Error()),
				slog.Duration("api_call_duration", apiDuration),
			)
			s.record(requestID, req, nil, evalErr, start)
			return nil, evalErr
		}

		output, err := extractOutput(out.resp)
		if err != nil {
			evalErr := domain.ErrDelegate(err.Error()).
				WithRequestID(requestID).
				WithDuration(time.Since(start).Milliseconds())
			s.logger.Error("delegate response malformed",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
			s.record(requestID, req, nil, evalErr, start)
			return nil, evalErr
		}

		eval := &domain.Evaluation{
			RequestID:         requestID,
			OutputText:        output,
			DurationMS:        time.Since(start).Milliseconds(),
			APICallDurationMS: apiDuration.Milliseconds(),
		}
		s.logger.Info("evaluation completed",
			slog.String("request_id", requestID),
			slog.Int64("duration_ms", eval.DurationMS),
			slog.Int64("api_call_duration_ms", eval.APICallDurationMS),
			slog.Int("output_chars", len(output)),
		)
		s.record(requestID, req, eval, nil, start)
		return eval, nil
	}
}

// extractOutput pulls the first completion choice's trimmed text.
func extractOutput(resp *openai.ChatCompletionResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("delegate returned no choices")
	}
	output := strings.TrimSpace(resp.Choices[0].Message.Content)
	if output == "" {
		return "", fmt.Errorf("delegate returned an empty completion")
	}
	return output, nil
}

// estimateTokens returns a best-effort prompt token count for logging.
func (s *Service) estimateTokens(req *openai.ChatCompletionRequest) int {
	if s.codec == nil {
		return 0
	}
	// 3 tokens of framing per message plus 3 for assistant priming,
	// matching the chat-completions accounting rules.
	total := 3
	for _, m := range req.Messages {
		total += 4
		ids, _, err := s.codec.Encode(m.Content)
		if err != nil {
			return 0
		}
		total += len(ids)
	}
	return total
}

// record persists the audit row when a recorder is configured. Failures are
// logged and swallowed; auditing never affects the response.
func (s *Service) record(requestID string, req *domain.EvaluateRequest, eval *domain.Evaluation, evalErr *domain.EvalError, start time.Time) {
	if s.recorder == nil {
		return
	}

	rec := &EvaluationRecord{
		RequestID:  requestID,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if req != nil {
		rec.Target = req.EvaluateTarget
		rec.InputText = req.InputText
	}
	if eval != nil {
		rec.Status = "success"
		rec.OutputText = eval.OutputText
		rec.APICallDurationMS = eval.APICallDurationMS
	} else if evalErr != nil {
		rec.Status = string(evalErr.Type)
		rec.ErrorMessage = evalErr.Message
	}

	// Detached context: the HTTP request may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.recorder.RecordEvaluation(ctx, rec); err != nil {
		s.logger.Warn("failed to record evaluation",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
}
