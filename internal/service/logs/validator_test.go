package logs

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
)

const validPayload = `{
	"level": "error",
	"message": "Failed to connect to database.",
	"resourceId": "server-1234",
	"timestamp": "2023-09-15T08:00:00Z",
	"traceId": "abc-xyz-123",
	"spanId": "span-456",
	"commit": "5e5342f",
	"metadata": {"parentResourceId": "server-0987", "tags": ["db", 3]}
}`

func requireValidationCode(t *testing.T, err error, code Code, field string) *ValidationError {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, verr.Code, verr.Message)
	}
	if verr.Field != field {
		t.Fatalf("expected field %q, got %q", field, verr.Field)
	}
	return verr
}

func TestValidateAcceptsRecord(t *testing.T) {
	rec, err := Validate([]byte(validPayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.LogRecord{
		Level:      domain.LevelError,
		Message:    "Failed to connect to database.",
		ResourceID: "server-1234",
		Timestamp:  "2023-09-15T08:00:00Z",
		TraceID:    "abc-xyz-123",
		SpanID:     "span-456",
		Commit:     "5e5342f",
		Metadata: map[string]any{
			"parentResourceId": "server-0987",
			"tags":             []any{"db", float64(3)},
		},
	}
	if !rec.OccurredAt.Equal(time.Date(2023, 9, 15, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected occurredAt %v", rec.OccurredAt)
	}
	rec.OccurredAt = time.Time{}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("unexpected record\n got: %#v\nwant: %#v", rec, want)
	}
}

func TestValidateDefaultsMetadata(t *testing.T) {
	rec, err := Validate([]byte(`{"level":"info","message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00.123+05:30","traceId":"t","spanId":"s","commit":"c"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Metadata == nil || len(rec.Metadata) != 0 {
		t.Fatalf("expected empty non-nil metadata, got %#v", rec.Metadata)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		code  Code
		field string
	}{
		{"malformed json", `{"level":`, CodeMalformed, ""},
		{"array body", `[]`, CodeType, ""},
		{"missing level", `{"message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c"}`, CodeRequired, "level"},
		{"uppercase level", `{"level":"ERROR","message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c"}`, CodeEnum, "level"},
		{"unknown level", `{"level":"fatal","message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c"}`, CodeEnum, "level"},
		{"empty message", `{"level":"info","message":"","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c"}`, CodeEmpty, "message"},
		{"numeric resource", `{"level":"info","message":"m","resourceId":12,"timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c"}`, CodeType, "resourceId"},
		{"missing timestamp", `{"level":"info","message":"m","resourceId":"r","traceId":"t","spanId":"s","commit":"c"}`, CodeRequired, "timestamp"},
		{"bad timestamp", `{"level":"info","message":"m","resourceId":"r","timestamp":"yesterday","traceId":"t","spanId":"s","commit":"c"}`, CodeTimestamp, "timestamp"},
		{"missing commit", `{"level":"info","message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s"}`, CodeRequired, "commit"},
		{"metadata array", `{"level":"info","message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c","metadata":[1]}`, CodeType, "metadata"},
		{"unknown key", `{"level":"info","message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c","host":"h"}`, CodeUnknown, "host"},
		{"repeated level", `{"level":"info","message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c","level":"bogus"}`, CodeDuplicate, "level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate([]byte(tc.body))
			requireValidationCode(t, err, tc.code, tc.field)
		})
	}
}

func TestValidateTimestampMessages(t *testing.T) {
	_, err := Validate([]byte(`{"level":"info","message":"m","resourceId":"r","timestamp":"2023-13-45","traceId":"t","spanId":"s","commit":"c"}`))
	verr := requireValidationCode(t, err, CodeTimestamp, "timestamp")
	if got := verr.Error(); got != "Invalid timestamp format. Must be ISO 8601 format." {
		t.Fatalf("unexpected message %q", got)
	}

	_, err = Validate([]byte(`{"level":"info","message":"m","resourceId":"r","traceId":"t","spanId":"s","commit":"c"}`))
	verr = requireValidationCode(t, err, CodeRequired, "timestamp")
	if got := verr.Error(); got != `"timestamp" is required` {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestValidateReportsFirstFieldInSchemaOrder(t *testing.T) {
	_, err := Validate([]byte(`{"level":"nope"}`))
	verr := requireValidationCode(t, err, CodeEnum, "level")
	if verr.Message != `"level" must be one of [error, warn, info, debug]` {
		t.Fatalf("unexpected message %q", verr.Message)
	}
}

func TestValidateRejectsRepeatedKeyRegardlessOfValue(t *testing.T) {
	// the first occurrence is valid; accepting it would silently drop the second
	_, err := Validate([]byte(`{"level":"info","level":"info","message":"m","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c"}`))
	verr := requireValidationCode(t, err, CodeDuplicate, "level")
	if verr.Message != `"level" must not be repeated` {
		t.Fatalf("unexpected message %q", verr.Message)
	}
}

func TestValidateStructuralErrorsWinOverTimestamp(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		code  Code
		field string
	}{
		{"unknown key", `{"level":"info","message":"m","resourceId":"r","timestamp":"yesterday","traceId":"t","spanId":"s","commit":"c","extra":1}`, CodeUnknown, "extra"},
		{"metadata type", `{"level":"info","message":"m","resourceId":"r","timestamp":"yesterday","traceId":"t","spanId":"s","commit":"c","metadata":"x"}`, CodeType, "metadata"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate([]byte(tc.body))
			requireValidationCode(t, err, tc.code, tc.field)
		})
	}

	_, err := Validate([]byte(`{"level":"info","message":"m","resourceId":"r","timestamp":"yesterday","traceId":"t","spanId":"s","commit":"c","extra":1}`))
	if err.Error() != `"extra" is not allowed` {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestValidateReplacesLoneSurrogates(t *testing.T) {
	rec, err := Validate([]byte(`{"level":"info","message":"a\ud800b","resourceId":"r\udc00","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c","metadata":{"k":"\ud83d"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Message != "a\uFFFDb" {
		t.Fatalf("expected replacement character in message, got %q", rec.Message)
	}
	if rec.ResourceID != "r\uFFFD" {
		t.Fatalf("expected replacement character in resourceId, got %q", rec.ResourceID)
	}
	if rec.Metadata["k"] != "\uFFFD" {
		t.Fatalf("expected replacement character in metadata, got %q", rec.Metadata["k"])
	}
}

func TestValidateKeepsSurrogatePairs(t *testing.T) {
	rec, err := Validate([]byte(`{"level":"info","message":"\ud83d\ude00 \u00e9","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","spanId":"s","commit":"c"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Message != "\U0001F600 \u00e9" {
		t.Fatalf("unexpected message %q", rec.Message)
	}
}
