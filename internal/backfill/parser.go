package backfill

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

// Record is one line of a case export.
type Record struct {
	Line int
	Case appeal.TrainingCase
	Err  error
}

// ParseCasesFile reads a JSONL export of resolved cases, one case per line.
// Blank lines are skipped. Malformed lines are returned with Err set so the
// caller can report them without aborting the import.
func ParseCasesFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB line buffer
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		rec := Record{Line: line}
		if err := json.Unmarshal(raw, &rec.Case); err != nil {
			rec.Err = fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return records, nil
}
