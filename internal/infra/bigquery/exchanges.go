package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

const exchangesTable = "exchanges"

// ExchangeRow is one recorded prompt/response exchange.
type ExchangeRow struct {
	ExchangeID string `bigquery:"exchange_id"` // REQUIRED
	SessionID  string `bigquery:"session_id"`  // REQUIRED

	ExchangeDate civil.Date `bigquery:"exchange_date"` // REQUIRED, partition column
	CreatedTS    time.Time  `bigquery:"created_ts"`    // REQUIRED

	ModelName string `bigquery:"model_name"` // REQUIRED

	SystemPrompt string `bigquery:"system_prompt"` // REQUIRED
	UserPrompt   string `bigquery:"user_prompt"`   // REQUIRED, may be empty
	ResponseText string `bigquery:"response_text"` // REQUIRED

	AttachmentKind     string              `bigquery:"attachment_kind"`      // text | image | audio
	AttachmentMIMEType bigquery.NullString `bigquery:"attachment_mime_type"` // NULLABLE
	AttachmentURI      bigquery.NullString `bigquery:"attachment_uri"`       // NULLABLE
	AttachmentBytes    int64               `bigquery:"attachment_bytes"`
}

// exchangesDDL creates the exchanges table; %s is the quoted table reference.
const exchangesDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		exchange_id          STRING NOT NULL,
		session_id           STRING NOT NULL,
		exchange_date        DATE NOT NULL,
		created_ts           TIMESTAMP NOT NULL,
		model_name           STRING NOT NULL,
		system_prompt        STRING,
		user_prompt          STRING,
		response_text        STRING,
		attachment_kind      STRING,
		attachment_mime_type STRING,
		attachment_uri       STRING,
		attachment_bytes     INT64
	)
	PARTITION BY exchange_date
	CLUSTER BY session_id
`
