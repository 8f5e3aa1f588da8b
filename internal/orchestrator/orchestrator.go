// Package orchestrator turns a decision record into real side effects against
// the case-management system, exactly once per call, with per-action failure
// isolation and a single atomic ledger write at the end.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vozline/tramita/internal/caseman"
	"github.com/vozline/tramita/internal/decision"
	"github.com/vozline/tramita/internal/transcript"
)

// Action statuses in the ledger.
const (
	StatusCreated = "created"
	StatusFailed  = "failed"
)

// ClientRecord is one customer-creation attempt.
type ClientRecord struct {
	CustomerID string `json:"customer_id,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// TicketRecord is one ticket-creation attempt.
type TicketRecord struct {
	TicketID     string `json:"ticket_id,omitempty"`
	IncidentType string `json:"incident_type"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// FollowUpRecord is one follow-up escalation attempt.
type FollowUpRecord struct {
	FollowUpID        string `json:"follow_up_id,omitempty"`
	RelatedIncidentID string `json:"related_incident_id"`
	Status            string `json:"status"`
	Error             string `json:"error,omitempty"`
}

// Ledger is the authoritative record of what actually happened for a call.
// Any other index of created identifiers must be derived from it.
type Ledger struct {
	ClientsCreated   []ClientRecord   `json:"clients_created,omitempty"`
	TicketsCreated   []TicketRecord   `json:"tickets_created,omitempty"`
	FollowUpsCreated []FollowUpRecord `json:"follow_ups_created,omitempty"`
	Summary          string           `json:"summary"`
}

// Result is what the pipeline reports back. Success covers partial success:
// a failed action is recorded, not fatal.
type Result struct {
	Success          bool    `json:"success"`
	AlreadyProcessed bool    `json:"already_processed"`
	Message          string  `json:"message"`
	Ledger           *Ledger `json:"ledger,omitempty"`
}

// LedgerStore is the persistence the orchestrator needs. *store.Store
// implements it.
type LedgerStore interface {
	HasLedger(ctx context.Context, conversationID string) (bool, error)
	SaveExecution(ctx context.Context, conversationID string, ledger Ledger) error
}

// Retry policy for transient caseman failures.
const (
	maxRetries        = 3
	maxElapsedPerCall = 15 * time.Second
)

type Orchestrator struct {
	caseman *caseman.Client
	store   LedgerStore
	logger  *slog.Logger
}

func New(cm *caseman.Client, store LedgerStore, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{caseman: cm, store: store, logger: logger}
}

// Execute performs the side effects a decision calls for.
//
// Ordering: customer creation completes (or definitively fails) before any
// ticket or follow-up action that needs its id; independent tickets run
// concurrently. The ledger is persisted in one write at the end — that write
// is the only marker of completed processing, so a crash before it leaves the
// call safely reprocessable.
func (o *Orchestrator) Execute(ctx context.Context, call *transcript.Call, dec decision.Decision) (*Result, error) {
	done, err := o.store.HasLedger(ctx, call.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("check ledger: %w", err)
	}
	if done {
		o.logger.Info("call already processed, skipping", "conversation_id", call.ConversationID)
		return &Result{Success: true, AlreadyProcessed: true, Message: "already processed"}, nil
	}

	ledger := Ledger{}

	customerID := o.executeClient(ctx, call, dec, &ledger)
	o.executeTickets(ctx, call, dec, customerID, &ledger)
	o.executeFollowUp(ctx, call, dec, &ledger)

	ledger.Summary = summarize(call, dec, &ledger)

	if err := o.store.SaveExecution(ctx, call.ConversationID, ledger); err != nil {
		return nil, fmt.Errorf("persist ledger: %w", err)
	}

	o.logger.Info("execution complete",
		"conversation_id", call.ConversationID,
		"clients", len(ledger.ClientsCreated),
		"tickets", len(ledger.TicketsCreated),
		"follow_ups", len(ledger.FollowUpsCreated),
	)
	return &Result{Success: true, Message: ledger.Summary, Ledger: &ledger}, nil
}

// executeClient creates the customer record when the decision calls for it and
// returns the customer id downstream actions should reference. On failure the
// id falls back to whatever partial identity exists — never an invented one.
func (o *Orchestrator) executeClient(ctx context.Context, call *transcript.Call, dec decision.Decision, ledger *Ledger) string {
	data := dec.Client.ClientData

	if dec.Client.UseExistingClient {
		return data.ClientCode
	}
	if !dec.Client.ShouldCreateClient {
		return ""
	}

	req := caseman.CustomerRequest{
		Name:         SanitizeField(data.Name),
		Phone:        data.Phone,
		Email:        data.Email,
		GovernmentID: data.GovernmentID,
		LeadID:       data.LeadID,
		Campaign:     data.Campaign,
	}

	var resp *caseman.CustomerResponse
	err := o.withRetry(ctx, func() error {
		var err error
		resp, err = o.caseman.CreateCustomer(ctx, req)
		return err
	})
	if err != nil {
		o.logger.Error("customer creation failed", "conversation_id", call.ConversationID, "error", err)
		ledger.ClientsCreated = append(ledger.ClientsCreated, ClientRecord{Status: StatusFailed, Error: err.Error()})
		return ""
	}

	ledger.ClientsCreated = append(ledger.ClientsCreated, ClientRecord{CustomerID: resp.CustomerID, Status: StatusCreated})
	return resp.CustomerID
}

// executeTickets creates the planned tickets concurrently. Each ticket's
// outcome lands in its own ledger slot; one failure never blocks the rest.
func (o *Orchestrator) executeTickets(ctx context.Context, call *transcript.Call, dec decision.Decision, customerID string, ledger *Ledger) {
	if !dec.Tickets.ShouldCreateTickets {
		return
	}

	policies := JoinPolicyNumbers(dec.Client.ClientData.Policies)
	records := make([]TicketRecord, len(dec.Tickets.Tickets))

	var wg sync.WaitGroup
	for i, plan := range dec.Tickets.Tickets {
		wg.Add(1)
		go func(i int, plan decision.TicketPlan) {
			defer wg.Done()

			req := caseman.TicketRequest{
				CustomerID:       customerID,
				CallID:           call.ConversationID,
				IncidentType:     plan.IncidentType,
				ManagementReason: plan.ManagementReason,
				InsuranceLine:    plan.InsuranceLine,
				PolicyNumbers:    policies,
				Notes:            SanitizeField(plan.Notes),
				AudioURL:         call.AudioURL,
			}

			var resp *caseman.TicketResponse
			err := o.withRetry(ctx, func() error {
				var err error
				resp, err = o.caseman.CreateTicket(ctx, req)
				return err
			})
			if err != nil {
				o.logger.Error("ticket creation failed",
					"conversation_id", call.ConversationID,
					"incident_type", plan.IncidentType,
					"error", err,
				)
				records[i] = TicketRecord{IncidentType: plan.IncidentType, Status: StatusFailed, Error: err.Error()}
				return
			}
			records[i] = TicketRecord{TicketID: resp.TicketID, IncidentType: plan.IncidentType, Status: StatusCreated}
		}(i, plan)
	}
	wg.Wait()

	ledger.TicketsCreated = append(ledger.TicketsCreated, records...)
}

func (o *Orchestrator) executeFollowUp(ctx context.Context, call *transcript.Call, dec decision.Decision, ledger *Ledger) {
	fu := dec.FollowUp
	if !fu.IsFollowUp || fu.CreateNewTicket || fu.RelatedIncidentID == "" {
		return
	}

	req := caseman.FollowUpRequest{
		RelatedIncidentID: fu.RelatedIncidentID,
		CallID:            call.ConversationID,
		Reason:            SanitizeField(dec.Rationale),
	}

	var resp *caseman.FollowUpResponse
	err := o.withRetry(ctx, func() error {
		var err error
		resp, err = o.caseman.CreateFollowUp(ctx, req)
		return err
	})
	if err != nil {
		o.logger.Error("follow-up creation failed", "conversation_id", call.ConversationID, "error", err)
		ledger.FollowUpsCreated = append(ledger.FollowUpsCreated, FollowUpRecord{
			RelatedIncidentID: fu.RelatedIncidentID, Status: StatusFailed, Error: err.Error(),
		})
		return
	}

	ledger.FollowUpsCreated = append(ledger.FollowUpsCreated, FollowUpRecord{
		FollowUpID: resp.FollowUpID, RelatedIncidentID: fu.RelatedIncidentID, Status: StatusCreated,
	})
}

// withRetry retries transient failures with exponential backoff. Validation
// rejections from the receiving system are permanent and fail immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsedPerCall
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !caseman.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// summarize renders the human-readable execution summary stored alongside the
// ledger.
func summarize(call *transcript.Call, dec decision.Decision, ledger *Ledger) string {
	var parts []string

	if !dec.Eligible {
		parts = append(parts, fmt.Sprintf("call below eligibility threshold (score %d)", dec.Score))
	}
	for _, c := range ledger.ClientsCreated {
		if c.Status == StatusCreated {
			parts = append(parts, fmt.Sprintf("customer %s created", c.CustomerID))
		} else {
			parts = append(parts, "customer creation failed: "+c.Error)
		}
	}
	created, failed := 0, 0
	for _, t := range ledger.TicketsCreated {
		if t.Status == StatusCreated {
			created++
		} else {
			failed++
		}
	}
	if created > 0 {
		parts = append(parts, fmt.Sprintf("%d ticket(s) created", created))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d ticket(s) failed", failed))
	}
	for _, f := range ledger.FollowUpsCreated {
		if f.Status == StatusCreated {
			parts = append(parts, fmt.Sprintf("follow-up %s on incident %s", f.FollowUpID, f.RelatedIncidentID))
		} else {
			parts = append(parts, "follow-up failed: "+f.Error)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "no side effects required")
	}
	return fmt.Sprintf("call %s: %s", call.ConversationID, strings.Join(parts, "; "))
}
