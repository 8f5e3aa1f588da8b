package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vozline/tramita/internal/decision"
	"github.com/vozline/tramita/internal/orchestrator"
	"github.com/vozline/tramita/internal/transcript"
)

// ErrNotFound is returned when no call exists for a conversation id.
var ErrNotFound = errors.New("call not found")

// CallRecord is one stored call with whatever has been attached so far.
type CallRecord struct {
	ID               uuid.UUID
	ConversationID   string
	Call             transcript.Call
	Decision         *decision.Decision
	Ledger           orchestrator.Ledger
	ExecutionSummary string
	ProcessedAt      *time.Time
	CreatedAt        time.Time
}

// InsertCall stores a received call. The unique constraint on conversation_id
// is the concurrency guard against duplicate webhook deliveries: the second
// insert reports created=false and the transcript is never overwritten.
func (s *Store) InsertCall(ctx context.Context, call *transcript.Call) (bool, error) {
	payload, err := json.Marshal(call)
	if err != nil {
		return false, fmt.Errorf("marshal call: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO calls (id, conversation_id, transcript, duration_secs, cost, end_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (conversation_id) DO NOTHING`,
		uuid.New(), call.ConversationID, payload, call.DurationSecs, call.Cost, call.EndReason,
	)
	if err != nil {
		return false, fmt.Errorf("insert call: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveDecision attaches the decision snapshot to the call.
func (s *Store) SaveDecision(ctx context.Context, conversationID string, dec decision.Decision) error {
	payload, err := json.Marshal(dec)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE calls SET decision = $1 WHERE conversation_id = $2`,
		payload, conversationID,
	)
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCall fetches a call with its decision snapshot and execution ledger.
func (s *Store) GetCall(ctx context.Context, conversationID string) (*CallRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, transcript, decision, execution_summary, processed_at, created_at
		FROM calls
		WHERE conversation_id = $1`,
		conversationID,
	)

	var rec CallRecord
	var transcriptRaw []byte
	var decisionRaw []byte
	var summary *string
	err := row.Scan(&rec.ID, &rec.ConversationID, &transcriptRaw, &decisionRaw, &summary, &rec.ProcessedAt, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan call: %w", err)
	}

	if err := json.Unmarshal(transcriptRaw, &rec.Call); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	if len(decisionRaw) > 0 {
		var dec decision.Decision
		if err := json.Unmarshal(decisionRaw, &dec); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		rec.Decision = &dec
	}
	if summary != nil {
		rec.ExecutionSummary = *summary
	}

	ledger, err := s.GetLedger(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	ledger.Summary = rec.ExecutionSummary
	rec.Ledger = ledger

	return &rec, nil
}
