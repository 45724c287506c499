package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// ExchangeRepository reads and writes the exchanges table with a shared client.
type ExchangeRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewExchangeRepository opens a BigQuery client for projectID.
func NewExchangeRepository(ctx context.Context, projectID, datasetID string) (*ExchangeRepository, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewExchangeRepository: project and dataset are required")
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewExchangeRepository: creating client: %w", err)
	}
	return &ExchangeRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *ExchangeRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// tableRef returns the backtick-quoted fully qualified table name.
func (r *ExchangeRepository) tableRef() string {
	return qualifiedTable(r.projectID, r.datasetID, exchangesTable)
}

func qualifiedTable(projectID, datasetID, table string) string {
	return "`" + projectID + "." + datasetID + "." + table + "`"
}

// EnsureSchema creates the exchanges table if it does not exist.
func (r *ExchangeRepository) EnsureSchema(ctx context.Context) error {
	return r.runDML(ctx, "EnsureSchema", r.client.Query(fmt.Sprintf(exchangesDDL, r.tableRef())))
}

// InsertExchange writes one row. Uses DML INSERT to avoid streaming buffer issues.
func (r *ExchangeRepository) InsertExchange(ctx context.Context, row *ExchangeRow) error {
	q := r.client.Query(`
		INSERT INTO ` + r.tableRef() + ` (
			exchange_id, session_id, exchange_date, created_ts,
			model_name, system_prompt, user_prompt, response_text,
			attachment_kind, attachment_mime_type, attachment_uri, attachment_bytes
		)
		VALUES (
			@exchange_id, @session_id, @exchange_date, @created_ts,
			@model_name, @system_prompt, @user_prompt, @response_text,
			@attachment_kind, @attachment_mime_type, @attachment_uri, @attachment_bytes
		)
	`)
	q.Parameters = insertParameters(row)

	return r.runDML(ctx, "InsertExchange", q)
}

func insertParameters(row *ExchangeRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "exchange_id", Value: row.ExchangeID},
		{Name: "session_id", Value: row.SessionID},
		{Name: "exchange_date", Value: row.ExchangeDate},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "model_name", Value: row.ModelName},
		{Name: "system_prompt", Value: row.SystemPrompt},
		{Name: "user_prompt", Value: row.UserPrompt},
		{Name: "response_text", Value: row.ResponseText},
		{Name: "attachment_kind", Value: row.AttachmentKind},
		{Name: "attachment_mime_type", Value: row.AttachmentMIMEType},
		{Name: "attachment_uri", Value: row.AttachmentURI},
		{Name: "attachment_bytes", Value: row.AttachmentBytes},
	}
}

func (r *ExchangeRepository) runDML(ctx context.Context, op string, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}

// ListExchangesBySession returns a session's exchanges, oldest first.
// limit <= 0 means no limit.
func (r *ExchangeRepository) ListExchangesBySession(ctx context.Context, sessionID string, limit int) ([]*ExchangeRow, error) {
	sql := `
		SELECT
			exchange_id, session_id, exchange_date, created_ts,
			model_name, system_prompt, user_prompt, response_text,
			attachment_kind, attachment_mime_type, attachment_uri, attachment_bytes
		FROM ` + r.tableRef() + `
		WHERE session_id = @session_id
		ORDER BY created_ts`
	params := []bigquery.QueryParameter{
		{Name: "session_id", Value: sessionID},
	}
	if limit > 0 {
		sql += "\n\t\tLIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: limit})
	}

	q := r.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExchangesBySession: query read: %w", err)
	}

	var rows []*ExchangeRow
	for {
		var row ExchangeRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExchangesBySession: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}
