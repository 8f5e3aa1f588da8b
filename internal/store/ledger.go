package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vozline/tramita/internal/orchestrator"
)

// Ledger entry kinds.
const (
	kindClient   = "client"
	kindTicket   = "ticket"
	kindFollowUp = "follow_up"
)

// HasLedger reports whether the call has completed processing. Implements
// orchestrator.LedgerStore.
func (s *Store) HasLedger(ctx context.Context, conversationID string) (bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT processed_at IS NOT NULL FROM calls WHERE conversation_id = $1`,
		conversationID,
	)
	var done bool
	err := row.Scan(&done)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return done, nil
}

// SaveExecution persists the full ledger and the execution summary in one
// transaction. Ticket identifiers live only in these rows; nothing else may
// hold a diverging copy. Implements orchestrator.LedgerStore.
func (s *Store) SaveExecution(ctx context.Context, conversationID string, ledger orchestrator.Ledger) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var callID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM calls WHERE conversation_id = $1`, conversationID).Scan(&callID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup call: %w", err)
	}

	insert := func(kind, externalID, relatedIncidentID, incidentType, status, errText string) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, call_id, kind, external_id, related_incident_id, incident_type, status, error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
			uuid.New(), callID, kind, externalID, relatedIncidentID, incidentType, status, errText,
		)
		return err
	}

	for _, c := range ledger.ClientsCreated {
		if err := insert(kindClient, c.CustomerID, "", "", c.Status, c.Error); err != nil {
			return fmt.Errorf("insert client entry: %w", err)
		}
	}
	for _, t := range ledger.TicketsCreated {
		if err := insert(kindTicket, t.TicketID, "", t.IncidentType, t.Status, t.Error); err != nil {
			return fmt.Errorf("insert ticket entry: %w", err)
		}
	}
	for _, f := range ledger.FollowUpsCreated {
		if err := insert(kindFollowUp, f.FollowUpID, f.RelatedIncidentID, "", f.Status, f.Error); err != nil {
			return fmt.Errorf("insert follow-up entry: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE calls SET execution_summary = $1, processed_at = now() WHERE id = $2`,
		ledger.Summary, callID,
	)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetLedger reassembles a call's ledger from its entry rows.
func (s *Store) GetLedger(ctx context.Context, callID uuid.UUID) (orchestrator.Ledger, error) {
	var ledger orchestrator.Ledger

	rows, err := s.pool.Query(ctx, `
		SELECT kind, external_id, related_incident_id, incident_type, status, error
		FROM ledger_entries
		WHERE call_id = $1
		ORDER BY created_at, id`,
		callID,
	)
	if err != nil {
		return ledger, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, externalID, relatedIncidentID, incidentType, status, errText string
		if err := rows.Scan(&kind, &externalID, &relatedIncidentID, &incidentType, &status, &errText); err != nil {
			return ledger, fmt.Errorf("scan ledger entry: %w", err)
		}
		switch kind {
		case kindClient:
			ledger.ClientsCreated = append(ledger.ClientsCreated, orchestrator.ClientRecord{
				CustomerID: externalID, Status: status, Error: errText,
			})
		case kindTicket:
			ledger.TicketsCreated = append(ledger.TicketsCreated, orchestrator.TicketRecord{
				TicketID: externalID, IncidentType: incidentType, Status: status, Error: errText,
			})
		case kindFollowUp:
			ledger.FollowUpsCreated = append(ledger.FollowUpsCreated, orchestrator.FollowUpRecord{
				FollowUpID: externalID, RelatedIncidentID: relatedIncidentID, Status: status, Error: errText,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return ledger, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return ledger, nil
}
