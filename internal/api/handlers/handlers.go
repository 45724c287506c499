package handlers

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// DefaultMaxUploadBytes bounds the whole /analyze request body.
const DefaultMaxUploadBytes = 16 << 20

// Parts beyond this size are spooled to temporary files by the multipart reader.
const multipartMemory = 8 << 20

// AssistantHandler serves the UI and the analysis endpoints.
type AssistantHandler struct {
	svc            *assistant.Service
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(svc *assistant.Service, maxUploadBytes int64, log zerolog.Logger) *AssistantHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &AssistantHandler{
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// Index handles GET /
func (h *AssistantHandler) Index(w http.ResponseWriter, r *http.Request) {
	// The Session middleware has already created the session.
	if _, ok := middleware.SessionFromContext(r.Context()); !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Session unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, struct{ SystemPrompt string }{assistant.DefaultSystemPrompt})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render index")
	}
}

// Analyze handles POST /analyze
func (h *AssistantHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	sess, ok := middleware.SessionFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Session unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge,
				"Upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		log.Warn().Err(err).Msg("Invalid form data")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	req := assistant.Request{UserPrompt: r.PostFormValue("user_prompt")}
	if vs, ok := r.PostForm["system_prompt"]; ok && len(vs) > 0 {
		system := vs[0]
		req.SystemPrompt = &system
	}

	att, err := assistant.SelectAttachment(ctx, formUpload(r, "image"), formUpload(r, "audio"))
	if err != nil {
		h.writeAnalysisError(w, log, err)
		return
	}
	req.Attachment = att

	reply, err := h.svc.Analyze(ctx, sess, req)
	if err != nil {
		h.writeAnalysisError(w, log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"response": reply})
}

// formUpload returns the first file sent under field, or nil.
func formUpload(r *http.Request, field string) *assistant.Upload {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	fh := files[0]
	return &assistant.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (h *AssistantHandler) writeAnalysisError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := StatusForError(err)
	log.Error().Err(err).Int("status", status).Str("kind", string(assistant.KindOf(err))).Msg("Analysis failed")
	middleware.WriteError(w, status, err.Error())
}

// StatusForError maps an analysis failure to an HTTP status.
func StatusForError(err error) int {
	switch assistant.KindOf(err) {
	case assistant.KindValidation:
		return http.StatusBadRequest
	case assistant.KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ClearHistory handles POST /clear_history
func (h *AssistantHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Session unavailable")
		return
	}

	h.svc.ClearHistory(sess)
	log := logger.FromContext(r.Context())
	log.Info().Msg("Chat history cleared")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// History handles GET /api/history
func (h *AssistantHandler) History(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Session unavailable")
		return
	}

	turns := sess.Turns()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sess.ID,
		"turns":      turns,
		"count":      len(turns),
	})
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler. A nil store means recording is off.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	if h.store == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Exchange recording is disabled")
		return
	}

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	// Jobs are only visible to the session that produced them.
	if sess, ok := middleware.SessionFromContext(ctx); !ok || sess.ID != job.SessionID {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Exchange recording is disabled")
		return
	}

	sess, ok := middleware.SessionFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Session unavailable")
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SessionID: sess.ID,
		Status:    jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	list, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
