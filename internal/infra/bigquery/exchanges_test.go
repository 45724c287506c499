package bigquery

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

func TestQualifiedTable(t *testing.T) {
	got := qualifiedTable("proj-1", "finance", exchangesTable)
	if got != "`proj-1.finance.exchanges`" {
		t.Errorf("qualifiedTable() = %s", got)
	}
}

func TestInsertParameters(t *testing.T) {
	created := time.Date(2026, 10, 19, 8, 15, 0, 0, time.UTC)
	row := &ExchangeRow{
		ExchangeID:         "ex-1",
		SessionID:          "s-1",
		ExchangeDate:       civil.DateOf(created),
		CreatedTS:          created,
		ModelName:          "gemini-2.0-flash",
		SystemPrompt:       "S",
		UserPrompt:         "lunch",
		ResponseText:       "```json\n[]\n```",
		AttachmentKind:     "image",
		AttachmentMIMEType: bigquery.NullString{StringVal: "image/jpeg", Valid: true},
		AttachmentBytes:    2048,
	}

	params := insertParameters(row)

	byName := make(map[string]interface{}, len(params))
	for _, p := range params {
		byName[p.Name] = p.Value
	}

	if len(byName) != 12 {
		t.Fatalf("got %d distinct parameters, want 12", len(byName))
	}
	if byName["exchange_id"] != "ex-1" || byName["session_id"] != "s-1" {
		t.Errorf("identity parameters wrong: %v / %v", byName["exchange_id"], byName["session_id"])
	}
	if d, ok := byName["exchange_date"].(civil.Date); !ok || d.String() != "2026-10-19" {
		t.Errorf("exchange_date = %v", byName["exchange_date"])
	}
	if uri, ok := byName["attachment_uri"].(bigquery.NullString); !ok || uri.Valid {
		t.Errorf("attachment_uri should be NULL, got %v", byName["attachment_uri"])
	}
	if byName["attachment_bytes"] != int64(2048) {
		t.Errorf("attachment_bytes = %v", byName["attachment_bytes"])
	}
}

func TestExchangesDDL(t *testing.T) {
	for _, col := range []string{"exchange_id", "session_id", "exchange_date", "response_text", "attachment_uri"} {
		if !strings.Contains(exchangesDDL, col) {
			t.Errorf("DDL missing column %s", col)
		}
	}
}
