// Package recorder persists completed exchanges: the attachment goes to the
// archive bucket and a summary row goes to the exchanges table.
package recorder

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-assistant/internal/archive"
	infraBQ "github.com/dvloznov/finance-assistant/internal/infra/bigquery"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// ExchangeWriter stores exchange rows.
type ExchangeWriter interface {
	InsertExchange(ctx context.Context, row *infraBQ.ExchangeRow) error
}

// Recorder handles RecordExchangeJob jobs. Either sink may be nil.
type Recorder struct {
	archiver archive.Archiver
	writer   ExchangeWriter
}

// New creates a Recorder.
func New(archiver archive.Archiver, writer ExchangeWriter) *Recorder {
	return &Recorder{archiver: archiver, writer: writer}
}

// Handle is a jobs.JobHandler.
func (r *Recorder) Handle(ctx context.Context, job jobs.Job) error {
	rec, ok := job.(*jobs.RecordExchangeJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}

	log := logger.FromContext(ctx).With().
		Str("job_id", rec.JobID).
		Str("exchange_id", rec.ExchangeID).
		Int("attempt", rec.RetryCount+1).
		Logger()

	if r.archiver != nil && len(rec.Attachment) > 0 && rec.ArchiveURI == "" {
		uri, err := r.archiver.Archive(ctx, rec.ExchangeID, rec.AttachmentMIMEType, rec.Attachment, rec.OccurredAt)
		if err != nil {
			return fmt.Errorf("archive attachment: %w", err)
		}
		rec.ArchiveURI = uri
		log.Debug().Str("uri", uri).Msg("Attachment archived")
	}

	if r.writer != nil {
		if err := r.writer.InsertExchange(ctx, ToRow(rec)); err != nil {
			return fmt.Errorf("insert exchange: %w", err)
		}
	}

	log.Info().Str("archive_uri", rec.ArchiveURI).Msg("Exchange recorded")
	return nil
}

// ToRow maps a recording job to its table row.
func ToRow(job *jobs.RecordExchangeJob) *infraBQ.ExchangeRow {
	at := job.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	return &infraBQ.ExchangeRow{
		ExchangeID:         job.ExchangeID,
		SessionID:          job.SessionID,
		ExchangeDate:       civil.DateOf(at),
		CreatedTS:          at,
		ModelName:          job.Model,
		SystemPrompt:       job.SystemPrompt,
		UserPrompt:         job.UserPrompt,
		ResponseText:       job.Response,
		AttachmentKind:     job.AttachmentKind,
		AttachmentMIMEType: nullString(job.AttachmentMIMEType),
		AttachmentURI:      nullString(job.ArchiveURI),
		AttachmentBytes:    int64(len(job.Attachment)),
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
