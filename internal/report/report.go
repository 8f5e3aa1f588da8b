// Package report renders a call's execution ledger as an XLSX workbook for
// the manual-remediation workflow. The workbook is built from the ledger
// alone — it never re-derives state from anywhere else.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/vozline/tramita/internal/orchestrator"
	"github.com/vozline/tramita/internal/store"
)

const ledgerSheet = "Ledger"

// Remediation renders the workbook for one call record.
func Remediation(rec *store.CallRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(ledgerSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Action", "External ID", "Related Incident", "Incident Type", "Status", "Error"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(ledgerSheet, cell, h)
	}

	row := 2
	writeRow := func(values []any) {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(ledgerSheet, cell, v)
		}
		row++
	}

	for _, c := range rec.Ledger.ClientsCreated {
		writeRow([]any{"client", c.CustomerID, "", "", c.Status, c.Error})
	}
	for _, t := range rec.Ledger.TicketsCreated {
		writeRow([]any{"ticket", t.TicketID, "", t.IncidentType, t.Status, t.Error})
	}
	for _, fu := range rec.Ledger.FollowUpsCreated {
		writeRow([]any{"follow_up", fu.FollowUpID, fu.RelatedIncidentID, "", fu.Status, fu.Error})
	}

	writeSummary(f, rec)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, rec *store.CallRecord) {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return
	}

	failed := 0
	for _, t := range rec.Ledger.TicketsCreated {
		if t.Status == orchestrator.StatusFailed {
			failed++
		}
	}
	for _, c := range rec.Ledger.ClientsCreated {
		if c.Status == orchestrator.StatusFailed {
			failed++
		}
	}
	for _, fu := range rec.Ledger.FollowUpsCreated {
		if fu.Status == orchestrator.StatusFailed {
			failed++
		}
	}

	rows := [][]any{
		{"Conversation", rec.ConversationID},
		{"Processed", rec.ProcessedAt != nil},
		{"Failed actions", failed},
		{"Execution summary", rec.ExecutionSummary},
	}
	for i, r := range rows {
		for col, v := range r {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+1)
			f.SetCellValue(sheet, cell, v)
		}
	}
}
