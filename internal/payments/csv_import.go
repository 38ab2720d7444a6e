package payments

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ImportResult summarises a bulk CSV ingest. Row failures are collected, not
// fatal: one bad statement line must not discard the rest of the file.
type ImportResult struct {
	Imported int
	Failed   int
	Errors   []string
}

// ImportCSV ingests bank-statement style rows: date, amount, paying entity,
// reference, notes. The first line is treated as a header and skipped.
func (s *Service) ImportCSV(ctx context.Context, src io.Reader, actorID int64) (ImportResult, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return ImportResult{}, nil
		}
		return ImportResult{}, fmt.Errorf("payments: read csv header: %w", err)
	}

	var result ImportResult
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		input, err := parseImportRow(record)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		input.ActorID = actorID
		if _, err := s.RecordPayment(ctx, input); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

func parseImportRow(record []string) (RecordPaymentInput, error) {
	if len(record) < 3 {
		return RecordPaymentInput{}, fmt.Errorf("expected at least 3 columns, got %d", len(record))
	}
	date, err := time.Parse("2006-01-02", record[0])
	if err != nil {
		return RecordPaymentInput{}, fmt.Errorf("could not parse date %q: %w", record[0], err)
	}
	amount, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return RecordPaymentInput{}, fmt.Errorf("could not parse amount %q: %w", record[1], err)
	}
	input := RecordPaymentInput{
		PaymentDate:  date,
		Amount:       amount,
		PayingEntity: record[2],
	}
	if len(record) > 3 {
		input.Reference = record[3]
	}
	if len(record) > 4 {
		input.Notes = record[4]
	}
	return input, nil
}
