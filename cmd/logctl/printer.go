package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	apiclient "github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/pkg/api/client"
)

const ansiReset = "\x1b[0m"

var levelColors = map[string]string{
	"error": "\x1b[31m",
	"warn":  "\x1b[33m",
	"info":  "\x1b[36m",
	"debug": "\x1b[90m",
}

type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer, color bool) *printer {
	return &printer{w: w, color: color}
}

// print writes one line: timestamp, padded level, resource, message, then
// trace/span/commit and metadata when present.
func (p *printer) print(rec apiclient.Record) {
	level := fmt.Sprintf("%-5s", strings.ToUpper(rec.Level))
	if p.color {
		if c, ok := levelColors[rec.Level]; ok {
			level = c + level + ansiReset
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s] %s", rec.Timestamp, level, rec.ResourceID, rec.Message)
	fmt.Fprintf(&b, " trace=%s span=%s commit=%s", rec.TraceID, rec.SpanID, rec.Commit)
	if len(rec.Metadata) > 0 {
		if meta, err := json.Marshal(rec.Metadata); err == nil {
			b.WriteString(" ")
			b.Write(meta)
		}
	}
	b.WriteString("\n")
	_, _ = io.WriteString(p.w, b.String())
}
