package logs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
)

// Code classifies why a payload was rejected.
type Code string

const (
	CodeMalformed Code = "malformed"
	CodeRequired  Code = "required"
	CodeType      Code = "type"
	CodeEmpty     Code = "empty"
	CodeEnum      Code = "enum"
	CodeTimestamp Code = "timestamp"
	CodeUnknown   Code = "unknown"
	CodeDuplicate Code = "duplicate"
)

// ValidationError reports the first problem found in an ingest payload.
type ValidationError struct {
	Field   string
	Code    Code
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const invalidTimestampMessage = "Invalid timestamp format. Must be ISO 8601 format."

const (
	fieldLevel      = "level"
	fieldMessage    = "message"
	fieldResourceID = "resourceId"
	fieldTimestamp  = "timestamp"
	fieldTraceID    = "traceId"
	fieldSpanID     = "spanId"
	fieldCommit     = "commit"
	fieldMetadata   = "metadata"
)

// requiredFields is checked in order; the first failure is reported.
var requiredFields = []string{
	fieldLevel,
	fieldMessage,
	fieldResourceID,
	fieldTimestamp,
	fieldTraceID,
	fieldSpanID,
	fieldCommit,
}

var knownFields = map[string]struct{}{
	fieldLevel: {}, fieldMessage: {}, fieldResourceID: {}, fieldTimestamp: {},
	fieldTraceID: {}, fieldSpanID: {}, fieldCommit: {}, fieldMetadata: {},
}

var parsers fastjson.ParserPool

// payload receives the decoded values once the structure has been checked.
// encoding/json replaces lone UTF-16 surrogates with U+FFFD, where fastjson
// would keep the escape text verbatim.
type payload struct {
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	ResourceID string         `json:"resourceId"`
	Timestamp  string         `json:"timestamp"`
	TraceID    string         `json:"traceId"`
	SpanID     string         `json:"spanId"`
	Commit     string         `json:"commit"`
	Metadata   map[string]any `json:"metadata"`
}

// Validate checks a raw JSON payload and returns the normalized record.
// Metadata defaults to an empty object and its contents are not inspected.
// The timestamp is parsed only after every structural check has passed.
func Validate(raw []byte) (domain.LogRecord, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return domain.LogRecord{}, &ValidationError{Code: CodeMalformed, Message: "invalid JSON body"}
	}
	obj, err := v.Object()
	if err != nil {
		return domain.LogRecord{}, &ValidationError{Code: CodeType, Message: `"value" must be of type object`}
	}

	var duplicate, unknown string
	seen := make(map[string]struct{}, obj.Len())
	obj.Visit(func(key []byte, _ *fastjson.Value) {
		k := string(key)
		if _, ok := seen[k]; ok {
			if duplicate == "" {
				duplicate = k
			}
			return
		}
		seen[k] = struct{}{}
		if _, ok := knownFields[k]; !ok && unknown == "" {
			unknown = k
		}
	})
	if duplicate != "" {
		return domain.LogRecord{}, &ValidationError{Field: duplicate, Code: CodeDuplicate, Message: fmt.Sprintf("%q must not be repeated", duplicate)}
	}

	for _, field := range requiredFields {
		s, verr := stringField(obj, field)
		if verr != nil {
			return domain.LogRecord{}, verr
		}
		if field == fieldLevel && !domain.Level(s).Valid() {
			return domain.LogRecord{}, &ValidationError{
				Field:   field,
				Code:    CodeEnum,
				Message: fmt.Sprintf("%q must be one of [%s]", field, levelList()),
			}
		}
	}

	if mv := obj.Get(fieldMetadata); mv != nil && mv.Type() != fastjson.TypeObject {
		return domain.LogRecord{}, &ValidationError{Field: fieldMetadata, Code: CodeType, Message: `"metadata" must be of type object`}
	}

	if unknown != "" {
		return domain.LogRecord{}, &ValidationError{Field: unknown, Code: CodeUnknown, Message: fmt.Sprintf("%q is not allowed", unknown)}
	}

	var body payload
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.LogRecord{}, &ValidationError{Code: CodeMalformed, Message: "invalid JSON body"}
	}
	if body.Metadata == nil {
		body.Metadata = map[string]any{}
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	if err != nil {
		return domain.LogRecord{}, &ValidationError{Field: fieldTimestamp, Code: CodeTimestamp, Message: invalidTimestampMessage}
	}

	return domain.LogRecord{
		Level:      domain.Level(body.Level),
		Message:    body.Message,
		ResourceID: body.ResourceID,
		Timestamp:  body.Timestamp,
		TraceID:    body.TraceID,
		SpanID:     body.SpanID,
		Commit:     body.Commit,
		Metadata:   body.Metadata,
		OccurredAt: occurredAt,
	}, nil
}

func stringField(obj *fastjson.Object, field string) (string, *ValidationError) {
	v := obj.Get(field)
	if v == nil {
		return "", &ValidationError{Field: field, Code: CodeRequired, Message: fmt.Sprintf("%q is required", field)}
	}
	if v.Type() != fastjson.TypeString {
		return "", &ValidationError{Field: field, Code: CodeType, Message: fmt.Sprintf("%q must be a string", field)}
	}
	b, _ := v.StringBytes()
	if len(b) == 0 {
		return "", &ValidationError{Field: field, Code: CodeEmpty, Message: fmt.Sprintf("%q is not allowed to be empty", field)}
	}
	return string(b), nil
}

func levelList() string {
	names := make([]string, len(domain.Levels))
	for i, l := range domain.Levels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}
