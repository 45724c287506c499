package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-assistant/internal/conversation"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/session"
	"github.com/google/uuid"
)

// Generator is the external multimodal model.
type Generator interface {
	// GenerateContent sends the ordered parts to model and returns its text.
	GenerateContent(ctx context.Context, model string, parts []Part) (string, error)
}

// Request is one analysis call as received at the boundary.
type Request struct {
	// SystemPrompt overrides DefaultSystemPrompt when non-nil, even if empty.
	SystemPrompt *string
	UserPrompt   string
	Attachment   Attachment
}

func (r Request) systemPrompt() string {
	if r.SystemPrompt == nil {
		return DefaultSystemPrompt
	}
	return *r.SystemPrompt
}

const publishTimeout = 2 * time.Second

// Service turns requests into model calls and keeps session history.
type Service struct {
	gen       Generator
	model     string
	window    int
	publisher jobs.Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithHistoryWindow narrows how many recent turns are sent as context. It is
// capped at conversation.DefaultWindow; non-positive values keep the default.
func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.window = min(n, conversation.DefaultWindow)
		}
	}
}

// WithPublisher enables exchange recording through p.
func WithPublisher(p jobs.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// NewService creates an orchestrator that calls gen with the given model.
func NewService(gen Generator, model string, opts ...Option) *Service {
	s := &Service{
		gen:    gen,
		model:  model,
		window: conversation.DefaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the configured model identifier.
func (s *Service) Model() string {
	return s.model
}

// Analyze assembles the request with the session's recent history, calls the
// model and, on success, appends the user and assistant turns. The reply is
// returned verbatim. History is left untouched on any failure.
func (s *Service) Analyze(ctx context.Context, sess *session.Session, req Request) (string, error) {
	if sess == nil {
		return "", NewError(KindValidation, "analyze", errors.New("session is required"))
	}

	log := logger.FromContext(ctx)
	systemPrompt := req.systemPrompt()
	kind, mimeType, data := Describe(req.Attachment)

	log.Info().
		Str("session_id", sess.ID).
		Int("system_prompt_len", len(systemPrompt)).
		Str("user_prompt", truncate(req.UserPrompt, 50)).
		Str("attachment", kind).
		Msg("Received analysis request")

	var reply string
	err := sess.Do(func(h *conversation.History) error {
		parts := Assemble(systemPrompt, req.UserPrompt, h.Recent(s.window), req.Attachment)

		log.Info().
			Str("model", s.model).
			Int("parts", len(parts)).
			Str("attachment", kind).
			Msg("Sending request to model")

		text, err := s.gen.GenerateContent(ctx, s.model, parts)
		if err != nil {
			return NewError(KindGeneration, "generate content", err)
		}

		h.AppendExchange(req.UserPrompt, text)
		reply = text
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Msg("Analysis failed")
		return "", err
	}

	log.Info().Int("response_len", len(reply)).Msg("Model responded")

	s.record(ctx, &jobs.RecordExchangeJob{
		ExchangeID:         uuid.NewString(),
		SessionID:          sess.ID,
		Model:              s.model,
		SystemPrompt:       systemPrompt,
		UserPrompt:         req.UserPrompt,
		Response:           reply,
		AttachmentKind:     kind,
		AttachmentMIMEType: mimeType,
		Attachment:         data,
		OccurredAt:         time.Now().UTC(),
	})

	return reply, nil
}

// ClearHistory empties the session's history. It always succeeds.
func (s *Service) ClearHistory(sess *session.Session) {
	if sess != nil {
		sess.ClearHistory()
	}
}

// record hands the exchange to the recording queue. Failures never reach
// the caller.
func (s *Service) record(ctx context.Context, job *jobs.RecordExchangeJob) {
	if s.publisher == nil {
		return
	}

	log := logger.FromContext(ctx)

	// Recording outlives the request but must not stall it.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishRecordExchange(pubCtx, job); err != nil {
		log.Warn().Err(err).Str("exchange_id", job.ExchangeID).Msg("Failed to enqueue exchange recording")
		return
	}
	log.Debug().Str("job_id", job.JobID).Str("exchange_id", job.ExchangeID).Msg("Exchange recording enqueued")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
