package report

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/vozline/tramita/internal/orchestrator"
	"github.com/vozline/tramita/internal/store"
)

func TestRemediation_RendersLedgerRows(t *testing.T) {
	rec := &store.CallRecord{
		ConversationID:   "conv-1",
		ExecutionSummary: "1 ticket(s) created; 1 ticket(s) failed",
		Ledger: orchestrator.Ledger{
			ClientsCreated: []orchestrator.ClientRecord{{CustomerID: "CUST-1", Status: orchestrator.StatusCreated}},
			TicketsCreated: []orchestrator.TicketRecord{
				{TicketID: "TCK-1", IncidentType: "Siniestros", Status: orchestrator.StatusCreated},
				{IncidentType: "Consulta", Status: orchestrator.StatusFailed, Error: "caseman api error 502"},
			},
		},
	}

	data, err := Remediation(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Ledger")
	if err != nil {
		t.Fatalf("read ledger sheet: %v", err)
	}
	// header + client + 2 tickets
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[1][0] != "client" || rows[1][1] != "CUST-1" {
		t.Errorf("client row: %v", rows[1])
	}
	if rows[3][4] != orchestrator.StatusFailed {
		t.Errorf("failed ticket row: %v", rows[3])
	}

	summary, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("read summary sheet: %v", err)
	}
	if summary[0][1] != "conv-1" {
		t.Errorf("summary conversation: %v", summary[0])
	}
}
