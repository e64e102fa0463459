package logs

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
)

//go:embed seed.json
var seedJSON []byte

// SeedRecords returns the sample records loaded by Seed. Each one goes
// through Validate like any ingested payload.
func SeedRecords() ([]domain.LogRecord, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(seedJSON, &raws); err != nil {
		return nil, fmt.Errorf("decode seed fixtures: %w", err)
	}
	records := make([]domain.LogRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := Validate(raw)
		if err != nil {
			return nil, fmt.Errorf("seed fixture %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
