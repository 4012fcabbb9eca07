// Package input loads the ordered ticket-ID list the pipeline consumes.
package input

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"ticketlens/internal/domain"
	"ticketlens/internal/pipeline"
)

// LoadCSV reads ticket IDs from a CSV file: one ID per row, with an
// optional second column carrying the raw diagnostic-usage value. A header
// row and blank lines are tolerated. Order is preserved; the pipeline treats
// the list as already validated.
func LoadCSV(path string) ([]pipeline.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ids file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse ids file: %w", err)
	}

	var inputs []pipeline.Input
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			continue
		}
		if i == 0 && isHeader(id) {
			continue
		}
		in := pipeline.Input{ID: domain.TicketID(id)}
		if len(row) > 1 {
			in.UsageSignal = strings.TrimSpace(row[1])
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no ticket IDs in %s", path)
	}
	return inputs, nil
}

func isHeader(field string) bool {
	switch strings.ToLower(field) {
	case "id", "ticket_id", "ticket", "ticketid":
		return true
	}
	return false
}
