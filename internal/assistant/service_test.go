package assistant_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/conversation"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/session"
)

// MockGenerator records calls and returns canned replies.
type MockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, parts []assistant.Part) (string, error)
	Calls               [][]assistant.Part
	Models              []string
}

func (m *MockGenerator) GenerateContent(ctx context.Context, model string, parts []assistant.Part) (string, error) {
	m.Calls = append(m.Calls, parts)
	m.Models = append(m.Models, model)
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, parts)
	}
	return "ok", nil
}

func (m *MockGenerator) lastText(t *testing.T) string {
	t.Helper()
	if len(m.Calls) == 0 {
		t.Fatal("generator was not called")
	}
	parts := m.Calls[len(m.Calls)-1]
	if len(parts) != 1 {
		t.Fatalf("expected a single text part, got %d parts", len(parts))
	}
	return parts[0].Text
}

// MockPublisher collects published jobs.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.RecordExchangeJob) error
	Published   []*jobs.RecordExchangeJob
}

func (m *MockPublisher) PublishRecordExchange(ctx context.Context, job *jobs.RecordExchangeJob) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, job); err != nil {
			return err
		}
	}
	m.Published = append(m.Published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func strPtr(s string) *string { return &s }

func TestAnalyze_TextOnlyNoHistory(t *testing.T) {
	gen := &MockGenerator{}
	svc := assistant.NewService(gen, "gemini-test")
	sess := session.New("s1")

	reply, err := svc.Analyze(context.Background(), sess, assistant.Request{
		SystemPrompt: strPtr("S"),
		UserPrompt:   "U",
	})
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if reply != "ok" {
		t.Errorf("reply = %q, want %q", reply, "ok")
	}
	if got := gen.lastText(t); got != "S\n\nUser: U" {
		t.Errorf("sent %q, want %q", got, "S\n\nUser: U")
	}
	if gen.Models[0] != "gemini-test" {
		t.Errorf("model = %q, want gemini-test", gen.Models[0])
	}
}

func TestAnalyze_EmptyUserPromptSendsSystemOnly(t *testing.T) {
	gen := &MockGenerator{}
	svc := assistant.NewService(gen, "m")

	if _, err := svc.Analyze(context.Background(), session.New("s"), assistant.Request{SystemPrompt: strPtr("S")}); err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if got := gen.lastText(t); got != "S" {
		t.Errorf("sent %q, want %q", got, "S")
	}
}

func TestAnalyze_DefaultSystemPrompt(t *testing.T) {
	gen := &MockGenerator{}
	svc := assistant.NewService(gen, "m")

	if _, err := svc.Analyze(context.Background(), session.New("s"), assistant.Request{UserPrompt: "taxi 80"}); err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	want := assistant.DefaultSystemPrompt + "\n\nUser: taxi 80"
	if got := gen.lastText(t); got != want {
		t.Errorf("default system prompt not used")
	}

	// A present but empty system prompt is kept as empty.
	if _, err := svc.Analyze(context.Background(), session.New("s2"), assistant.Request{SystemPrompt: strPtr(""), UserPrompt: "x"}); err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if got := gen.lastText(t); got != "\n\nUser: x" {
		t.Errorf("sent %q, want %q", got, "\n\nUser: x")
	}
}

func TestAnalyze_AppendsTwoTurns(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, parts []assistant.Part) (string, error) {
			return "```json\n[]\n```", nil
		},
	}
	svc := assistant.NewService(gen, "m")
	sess := session.New("s")

	if _, err := svc.Analyze(context.Background(), sess, assistant.Request{UserPrompt: "lunch"}); err != nil {
		t.Fatalf("Analyze err: %v", err)
	}

	turns := sess.Turns()
	if len(turns) != 2 {
		t.Fatalf("history has %d turns, want 2", len(turns))
	}
	if turns[0].Role != conversation.RoleUser || turns[0].Text != "lunch" {
		t.Errorf("turn 0 = %+v", turns[0])
	}
	if turns[1].Role != conversation.RoleAssistant || turns[1].Text != "```json\n[]\n```" {
		t.Errorf("turn 1 = %+v", turns[1])
	}
}

func TestAnalyze_UsesLastFiveTurns(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, parts []assistant.Part) (string, error) {
			return "reply", nil
		},
	}
	svc := assistant.NewService(gen, "m")
	sess := session.New("s")
	ctx := context.Background()

	for _, prompt := range []string{"p1", "p2", "p3", "p4"} {
		if _, err := svc.Analyze(ctx, sess, assistant.Request{SystemPrompt: strPtr("S"), UserPrompt: prompt}); err != nil {
			t.Fatalf("Analyze err: %v", err)
		}
	}

	// 8 turns stored; the 4th request saw 6 and must have sent only 5.
	sent := gen.Calls[3][0].Text
	want := "Previous conversation:\n" +
		"Assistant: reply\n" +
		"User: p2\n" +
		"Assistant: reply\n" +
		"User: p3\n" +
		"Assistant: reply\n" +
		"\n\nSystem: S\n\nUser: p4"
	if sent != want {
		t.Errorf("sent %q, want %q", sent, want)
	}
	if strings.Contains(sent, "p1") {
		t.Error("turns older than the window must not be sent")
	}
	if got := len(sess.Turns()); got != 8 {
		t.Errorf("stored %d turns, want 8 (history is not truncated)", got)
	}
}

func TestAnalyze_ClearHistoryDropsContext(t *testing.T) {
	gen := &MockGenerator{}
	svc := assistant.NewService(gen, "m")
	sess := session.New("s")
	ctx := context.Background()

	_, _ = svc.Analyze(ctx, sess, assistant.Request{SystemPrompt: strPtr("S"), UserPrompt: "first"})
	svc.ClearHistory(sess)
	svc.ClearHistory(sess)

	if _, err := svc.Analyze(ctx, sess, assistant.Request{SystemPrompt: strPtr("S"), UserPrompt: "second"}); err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if got := gen.lastText(t); strings.Contains(got, "Previous conversation") {
		t.Errorf("history block sent after clear: %q", got)
	}
}

func TestAnalyze_ImageWithoutMediaType(t *testing.T) {
	gen := &MockGenerator{}
	svc := assistant.NewService(gen, "m")

	_, err := svc.Analyze(context.Background(), session.New("s"), assistant.Request{
		SystemPrompt: strPtr("S"),
		Attachment:   assistant.Image{Data: []byte("jpg")},
	})
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}

	parts := gen.Calls[0]
	if len(parts) != 2 || parts[1].Blob == nil {
		t.Fatalf("unexpected parts: %+v", parts)
	}
	if parts[1].Blob.MIMEType != "image/jpeg" {
		t.Errorf("media type = %q, want image/jpeg", parts[1].Blob.MIMEType)
	}
}

func TestAnalyze_AudioWithContext(t *testing.T) {
	gen := &MockGenerator{}
	svc := assistant.NewService(gen, "m")

	_, err := svc.Analyze(context.Background(), session.New("s"), assistant.Request{
		SystemPrompt: strPtr("S"),
		UserPrompt:   "U",
		Attachment:   assistant.Audio{Data: []byte("mp3")},
	})
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}

	parts := gen.Calls[0]
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	if !strings.Contains(parts[0].Text, assistant.TranscriptionInstruction) {
		t.Errorf("transcription instruction missing from %q", parts[0].Text)
	}
	if parts[2].Text != "Additional context from user: U" {
		t.Errorf("trailing part = %q", parts[2].Text)
	}
}

func TestAnalyze_GenerationFailure(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, parts []assistant.Part) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}
	pub := &MockPublisher{}
	svc := assistant.NewService(gen, "m", assistant.WithPublisher(pub))
	sess := session.New("s")

	_, err := svc.Analyze(context.Background(), sess, assistant.Request{UserPrompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if assistant.KindOf(err) != assistant.KindGeneration {
		t.Errorf("KindOf(err) = %q, want %q", assistant.KindOf(err), assistant.KindGeneration)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("underlying message missing: %v", err)
	}
	if len(sess.Turns()) != 0 {
		t.Error("history must not change on failure")
	}
	if len(pub.Published) != 0 {
		t.Error("failed exchanges must not be recorded")
	}
}

func TestAnalyze_NilSession(t *testing.T) {
	svc := assistant.NewService(&MockGenerator{}, "m")

	_, err := svc.Analyze(context.Background(), nil, assistant.Request{})
	if assistant.KindOf(err) != assistant.KindValidation {
		t.Fatalf("KindOf(err) = %q, want %q", assistant.KindOf(err), assistant.KindValidation)
	}
}

func TestAnalyze_PublishesExchange(t *testing.T) {
	pub := &MockPublisher{}
	svc := assistant.NewService(&MockGenerator{}, "gemini-test", assistant.WithPublisher(pub))

	_, err := svc.Analyze(context.Background(), session.New("s1"), assistant.Request{
		UserPrompt: "U",
		Attachment: assistant.Image{Data: []byte("jpg"), MIMEType: "image/png"},
	})
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}

	if len(pub.Published) != 1 {
		t.Fatalf("published %d jobs, want 1", len(pub.Published))
	}
	job := pub.Published[0]
	if job.ExchangeID == "" || job.SessionID != "s1" || job.Model != "gemini-test" {
		t.Errorf("unexpected job identity: %+v", job)
	}
	if job.AttachmentKind != "image" || job.AttachmentMIMEType != "image/png" || string(job.Attachment) != "jpg" {
		t.Errorf("unexpected attachment fields: kind=%s mime=%s", job.AttachmentKind, job.AttachmentMIMEType)
	}
	if job.Response != "ok" || job.UserPrompt != "U" {
		t.Errorf("unexpected exchange text: %+v", job)
	}
}

func TestAnalyze_PublishFailureIsIgnored(t *testing.T) {
	pub := &MockPublisher{
		PublishFunc: func(ctx context.Context, job *jobs.RecordExchangeJob) error {
			return errors.New("queue is closed")
		},
	}
	svc := assistant.NewService(&MockGenerator{}, "m", assistant.WithPublisher(pub))

	reply, err := svc.Analyze(context.Background(), session.New("s"), assistant.Request{UserPrompt: "x"})
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if reply != "ok" {
		t.Errorf("reply = %q, want ok", reply)
	}
}

func TestAnalyze_HistoryWindowOption(t *testing.T) {
	gen := &MockGenerator{}
	svc := assistant.NewService(gen, "m", assistant.WithHistoryWindow(1))
	sess := session.New("s")
	ctx := context.Background()

	_, _ = svc.Analyze(ctx, sess, assistant.Request{SystemPrompt: strPtr("S"), UserPrompt: "first"})
	_, _ = svc.Analyze(ctx, sess, assistant.Request{SystemPrompt: strPtr("S"), UserPrompt: "second"})

	want := "Previous conversation:\nAssistant: ok\n\n\nSystem: S\n\nUser: second"
	if got := gen.lastText(t); got != want {
		t.Errorf("sent %q, want %q", got, want)
	}
}

func TestAnalyze_HistoryWindowCappedAtFive(t *testing.T) {
	gen := &MockGenerator{}
	svc := assistant.NewService(gen, "m", assistant.WithHistoryWindow(10))
	sess := session.New("s")
	ctx := context.Background()

	for _, prompt := range []string{"p1", "p2", "p3", "p4"} {
		if _, err := svc.Analyze(ctx, sess, assistant.Request{SystemPrompt: strPtr("S"), UserPrompt: prompt}); err != nil {
			t.Fatalf("Analyze err: %v", err)
		}
	}

	// 6 turns stored before the 4th request; only the last 5 may be sent.
	want := "Previous conversation:\n" +
		"Assistant: ok\n" +
		"User: p2\n" +
		"Assistant: ok\n" +
		"User: p3\n" +
		"Assistant: ok\n" +
		"\n\nSystem: S\n\nUser: p4"
	if sent := gen.lastText(t); sent != want {
		t.Errorf("sent %q, want %q", sent, want)
	}
}
