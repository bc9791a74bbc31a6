package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"voicebot-evaluator/internal/api/openai"
	"voicebot-evaluator/internal/domain"
)

// fakeDelegate counts calls and returns a canned outcome, optionally after
// a delay.
type fakeDelegate struct {
	calls int32
	delay time.Duration
	resp  *openai.ChatCompletionResponse
	err   error
}

func (f *fakeDelegate) CreateChatCompletion(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func (f *fakeDelegate) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func completionWith(content string) *openai.ChatCompletionResponse {
	return &openai.ChatCompletionResponse{
		ID: "chatcmpl-1",
		Choices: []openai.Choice{
			{Index: 0, Message: openai.ChatMessage{Role: "assistant", Content: content}},
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEvaluate_Success(t *testing.T) {
	delegate := &fakeDelegate{resp: completionWith("  | Metric | Score |\n|---|---|\n| Intent coverage | 5 |  ")}
	svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger())

	eval, evalErr := svc.Evaluate(context.Background(), &domain.EvaluateRequest{
		InputText: "Hello, evaluate this bot",
	})
	if evalErr != nil {
		t.Fatalf("Evaluate() error = %v", evalErr)
	}

	if eval.OutputText != "| Metric | Score |\n|---|---|\n| Intent coverage | 5 |" {
		t.Errorf("OutputText = %q, want trimmed completion", eval.OutputText)
	}
	if eval.RequestID == "" {
		t.Error("expected request ID in evaluation")
	}
	if eval.DurationMS < 0 {
		t.Errorf("DurationMS = %d, want >= 0", eval.DurationMS)
	}
	if delegate.callCount() != 1 {
		t.Errorf("delegate calls = %d, want 1", delegate.callCount())
	}
}

func TestEvaluate_TwoMessageShape(t *testing.T) {
	delegate := &capturingDelegate{resp: completionWith("ok")}
	svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger())

	_, evalErr := svc.Evaluate(context.Background(), &domain.EvaluateRequest{
		InputText: "Hello, evaluate this bot",
	})
	if evalErr != nil {
		t.Fatalf("Evaluate() error = %v", evalErr)
	}

	gotReq := delegate.lastReq
	if len(gotReq.Messages) != 2 {
		t.Fatalf("delegate saw %d messages, want 2", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", gotReq.Messages[0].Role)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "assistant") {
		t.Error("system instruction should reference the default evaluate target")
	}
	if gotReq.Messages[1].Role != "user" || gotReq.Messages[1].Content != "Hello, evaluate this bot" {
		t.Errorf("second message = %+v, want user turn with the input text", gotReq.Messages[1])
	}
	if gotReq.Temperature == nil || *gotReq.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", gotReq.Temperature)
	}
}

func TestEvaluate_CustomTarget(t *testing.T) {
	delegate := &capturingDelegate{resp: completionWith("ok")}
	svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger())

	_, evalErr := svc.Evaluate(context.Background(), &domain.EvaluateRequest{
		InputText:      "transcript",
		EvaluateTarget: "caller",
	})
	if evalErr != nil {
		t.Fatalf("Evaluate() error = %v", evalErr)
	}
	if !strings.Contains(delegate.lastReq.Messages[0].Content, "caller") {
		t.Error("system instruction should interpolate the requested target")
	}
}

func TestEvaluate_ValidationError(t *testing.T) {
	tests := []struct {
		name string
		req  *domain.EvaluateRequest
	}{
		{"empty input_text", &domain.EvaluateRequest{InputText: ""}},
		{"nil request", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delegate := &fakeDelegate{resp: completionWith("should not be called")}
			svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger())

			eval, evalErr := svc.Evaluate(context.Background(), tt.req)
			if eval != nil {
				t.Fatal("expected nil evaluation")
			}
			if evalErr == nil {
				t.Fatal("expected validation error")
			}
			if evalErr.Type != domain.ErrorTypeValidation {
				t.Errorf("error type = %q, want validation", evalErr.Type)
			}
			if evalErr.HTTPStatusCode() != 400 {
				t.Errorf("status = %d, want 400", evalErr.HTTPStatusCode())
			}
			if evalErr.RequestID == "" {
				t.Error("expected request ID on validation error")
			}
			if delegate.callCount() != 0 {
				t.Errorf("delegate calls = %d, want 0", delegate.callCount())
			}
		})
	}
}

func TestEvaluate_Timeout(t *testing.T) {
	ceiling := 50 * time.Millisecond
	delegate := &fakeDelegate{
		delay: 500 * time.Millisecond,
		resp:  completionWith("too late"),
	}
	svc := New(delegate, Config{Model: "gpt-4o-mini", Timeout: ceiling}, testLogger())

	start := time.Now()
	eval, evalErr := svc.Evaluate(context.Background(), &domain.EvaluateRequest{InputText: "slow one"})
	elapsed := time.Since(start)

	if eval != nil {
		t.Fatal("expected nil evaluation on timeout")
	}
	if evalErr == nil || evalErr.Type != domain.ErrorTypeTimeout {
		t.Fatalf("error = %v, want timeout", evalErr)
	}
	if evalErr.HTTPStatusCode() != 504 {
		t.Errorf("status = %d, want 504", evalErr.HTTPStatusCode())
	}
	if !strings.Contains(evalErr.Message, "shorter") {
		t.Errorf("message = %q, want shorten-input advice", evalErr.Message)
	}

	// The race must settle near the ceiling, not wait for the delegate.
	if elapsed > ceiling+200*time.Millisecond {
		t.Errorf("Evaluate() took %v, want ~%v", elapsed, ceiling)
	}
}

func TestEvaluate_DelegateError(t *testing.T) {
	delegate := &fakeDelegate{err: errors.New("upstream exploded")}
	svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger())

	eval, evalErr := svc.Evaluate(context.Background(), &domain.EvaluateRequest{InputText: "hi"})
	if eval != nil {
		t.Fatal("expected nil evaluation")
	}
	if evalErr == nil || evalErr.Type != domain.ErrorTypeDelegate {
		t.Fatalf("error = %v, want delegate", evalErr)
	}
	if evalErr.HTTPStatusCode() != 500 {
		t.Errorf("status = %d, want 500", evalErr.HTTPStatusCode())
	}
	if evalErr.Message != "upstream exploded" {
		t.Errorf("message = %q, want the upstream message verbatim", evalErr.Message)
	}
}

func TestEvaluate_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		resp *openai.ChatCompletionResponse
	}{
		{"no choices", &openai.ChatCompletionResponse{}},
		{"empty content", completionWith("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delegate := &fakeDelegate{resp: tt.resp}
			svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger())

			_, evalErr := svc.Evaluate(context.Background(), &domain.EvaluateRequest{InputText: "hi"})
			if evalErr == nil || evalErr.Type != domain.ErrorTypeDelegate {
				t.Fatalf("error = %v, want delegate", evalErr)
			}
		})
	}
}

func TestEvaluate_UniqueRequestIDs(t *testing.T) {
	delegate := &fakeDelegate{resp: completionWith("ok")}
	svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger())

	e1, _ := svc.Evaluate(context.Background(), &domain.EvaluateRequest{InputText: "one"})
	e2, _ := svc.Evaluate(context.Background(), &domain.EvaluateRequest{InputText: "two"})

	if e1.RequestID == e2.RequestID {
		t.Errorf("expected distinct request IDs, got %s twice", e1.RequestID)
	}
}

func TestEvaluate_Recorder(t *testing.T) {
	delegate := &fakeDelegate{resp: completionWith("verdict")}
	rec := &fakeRecorder{}
	svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger(), WithRecorder(rec))

	eval, evalErr := svc.Evaluate(context.Background(), &domain.EvaluateRequest{InputText: "hi"})
	if evalErr != nil {
		t.Fatalf("Evaluate() error = %v", evalErr)
	}

	if len(rec.records) != 1 {
		t.Fatalf("recorded %d rows, want 1", len(rec.records))
	}
	row := rec.records[0]
	if row.RequestID != eval.RequestID {
		t.Errorf("recorded request_id = %q, want %q", row.RequestID, eval.RequestID)
	}
	if row.Status != "success" || row.OutputText != "verdict" {
		t.Errorf("recorded row = %+v", row)
	}
}

func TestEvaluate_RecorderFailureDoesNotAffectResponse(t *testing.T) {
	delegate := &fakeDelegate{resp: completionWith("verdict")}
	rec := &fakeRecorder{err: errors.New("disk full")}
	svc := New(delegate, Config{Model: "gpt-4o-mini"}, testLogger(), WithRecorder(rec))

	eval, evalErr := svc.Evaluate(context.Background(), &domain.EvaluateRequest{InputText: "hi"})
	if evalErr != nil {
		t.Fatalf("Evaluate() error = %v", evalErr)
	}
	if eval.OutputText != "verdict" {
		t.Errorf("OutputText = %q", eval.OutputText)
	}
}

// capturingDelegate remembers the last request it saw.
type capturingDelegate struct {
	lastReq *openai.ChatCompletionRequest
	resp    *openai.ChatCompletionResponse
	err     error
}

func (c *capturingDelegate) CreateChatCompletion(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	c.lastReq = req
	return c.resp, c.err
}

type fakeRecorder struct {
	records []*EvaluationRecord
	err     error
}

func (f *fakeRecorder) RecordEvaluation(ctx context.Context, rec *EvaluationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}
