package privacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"sentinel/internal/dto"
)

// ImportResult summarizes a round history import.
type ImportResult struct {
	Recorded int
	Skipped  []error
}

// Import records round reports read from r in round order. r holds either a
// JSON array of reports or one report per line. Reports that are invalid,
// already recorded, older than the latest round or over budget are skipped;
// a malformed document fails the whole import before anything is written.
func (a *Accountant) Import(r io.Reader) (ImportResult, error) {
	reports, err := decodeReports(r)
	if err != nil {
		return ImportResult{}, err
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Round < reports[j].Round })

	var result ImportResult
	for _, report := range reports {
		if _, err := a.RecordRound(report); err != nil {
			result.Skipped = append(result.Skipped, fmt.Errorf("round %d: %w", report.Round, err))
			continue
		}
		result.Recorded++
	}
	return result, nil
}

func decodeReports(r io.Reader) ([]dto.RoundReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read round history: %w", err)
	}

	var reports []dto.RoundReport
	if err := json.Unmarshal(data, &reports); err == nil {
		return reports, nil
	}

	reports = reports[:0]
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var report dto.RoundReport
		err := dec.Decode(&report)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode round history: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
