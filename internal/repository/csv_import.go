package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
)

// ParseLeadsCSV reads a lead sheet export and returns the rows eligible for
// import plus the count of skipped rows. Only rows whose status column reads
// "Not contacted" (case-insensitive) are imported; everything else has already
// been worked and would produce duplicate calls.
//
// Expected header columns (case-insensitive): Name, Phone number, notes, status.
func ParseLeadsCSV(r io.Reader) ([]*domain.CreateLeadRequest, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, 0, fmt.Errorf("csv file is empty")
		}
		return nil, 0, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	nameIdx, ok := columns["name"]
	if !ok {
		return nil, 0, fmt.Errorf("csv is missing the Name column")
	}
	phoneIdx, ok := columns["phone number"]
	if !ok {
		return nil, 0, fmt.Errorf("csv is missing the Phone number column")
	}
	notesIdx, hasNotes := columns["notes"]
	statusIdx, hasStatus := columns["status"]

	var reqs []*domain.CreateLeadRequest
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read csv row: %w", err)
		}

		status := ""
		if hasStatus {
			status = strings.TrimSpace(field(record, statusIdx))
		}
		if !strings.EqualFold(status, domain.LeadStatusNotContacted) {
			skipped++
			continue
		}

		name := strings.TrimSpace(field(record, nameIdx))
		phone := strings.TrimSpace(field(record, phoneIdx))
		if name == "" || phone == "" {
			skipped++
			continue
		}

		notes := ""
		if hasNotes {
			notes = strings.TrimSpace(field(record, notesIdx))
		}
		if notes == "" {
			notes = "Imported from CSV"
		}

		reqs = append(reqs, &domain.CreateLeadRequest{
			Name:   name,
			Phone:  phone,
			Notes:  notes,
			Status: domain.LeadStatusNotContacted,
		})
	}

	return reqs, skipped, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
