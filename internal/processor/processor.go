// Package processor drives the call decision pipeline: one completed call in,
// one decision and one execution ledger out.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vozline/tramita/internal/classify"
	"github.com/vozline/tramita/internal/decision"
	"github.com/vozline/tramita/internal/eligibility"
	"github.com/vozline/tramita/internal/events"
	"github.com/vozline/tramita/internal/identity"
	"github.com/vozline/tramita/internal/orchestrator"
	"github.com/vozline/tramita/internal/transcript"
)

// CallStore is the persistence the processor needs. *store.Store implements it.
type CallStore interface {
	InsertCall(ctx context.Context, call *transcript.Call) (bool, error)
	SaveDecision(ctx context.Context, conversationID string, dec decision.Decision) error
	HasLedger(ctx context.Context, conversationID string) (bool, error)
}

// Publisher announces processed calls. *events.Client implements it.
type Publisher interface {
	Publish(subject string, data any) error
}

type Processor struct {
	store      CallStore
	classifier *classify.Classifier
	orch       *orchestrator.Orchestrator
	publisher  Publisher
	logger     *slog.Logger
}

func New(store CallStore, classifier *classify.Classifier, orch *orchestrator.Orchestrator, publisher Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		store:      store,
		classifier: classifier,
		orch:       orch,
		publisher:  publisher,
		logger:     logger,
	}
}

// Process runs the full pipeline for one completed call. It always returns a
// summary; per-action failures are recorded in the ledger, not propagated.
func (p *Processor) Process(ctx context.Context, call *transcript.Call) (*orchestrator.Result, error) {
	if call == nil || strings.TrimSpace(call.ConversationID) == "" {
		return nil, fmt.Errorf("call without conversation id")
	}

	created, err := p.store.InsertCall(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("store call: %w", err)
	}
	if !created {
		// Duplicate delivery. If the earlier delivery finished, skip the
		// whole pipeline — including the classification capability.
		done, err := p.store.HasLedger(ctx, call.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("check ledger: %w", err)
		}
		if done {
			p.logger.Info("duplicate delivery of processed call", "conversation_id", call.ConversationID)
			return &orchestrator.Result{Success: true, AlreadyProcessed: true, Message: "already processed"}, nil
		}
	}

	p.logger.Info("processing call",
		"conversation_id", call.ConversationID,
		"segments", len(call.Segments),
		"duration_secs", call.DurationSecs,
	)

	res := identity.Resolve(call)

	cls, err := p.classifier.Classify(ctx, call)
	if err != nil {
		// Classify already degraded to unclassified; the scorer will gate it.
		p.logger.Error("classification degraded", "conversation_id", call.ConversationID, "error", err)
	}

	fu := classify.DetectFollowUp(cls, transcript.OpenIncidents(call))

	elig := eligibility.Score(eligibility.Input{
		Classification: cls,
		Resolution:     res,
		Summary:        callSummary(call, cls),
	})

	dec := decision.Assemble(res, cls, fu, elig)

	if err := p.store.SaveDecision(ctx, call.ConversationID, dec); err != nil {
		return nil, fmt.Errorf("save decision: %w", err)
	}

	p.logger.Info("decision assembled",
		"conversation_id", call.ConversationID,
		"client_type", string(res.Type),
		"incident_type", cls.Primary.IncidentType,
		"eligible", elig.Process,
		"score", elig.Score,
		"is_follow_up", fu.IsFollowUp,
	)

	result, err := p.orch.Execute(ctx, call, dec)
	if err != nil {
		return nil, fmt.Errorf("execute decision: %w", err)
	}

	p.announce(call, dec, result)
	return result, nil
}

// HandleCallReceived is the NATS handler for voice.call.received.
func (p *Processor) HandleCallReceived(subject string, data []byte) {
	var call transcript.Call
	if err := json.Unmarshal(data, &call); err != nil {
		p.logger.Error("failed to parse call event", "error", err)
		return
	}

	if _, err := p.Process(context.Background(), &call); err != nil {
		p.logger.Error("pipeline failed", "conversation_id", call.ConversationID, "error", err)
	}
}

func (p *Processor) announce(call *transcript.Call, dec decision.Decision, result *orchestrator.Result) {
	if p.publisher == nil || result.AlreadyProcessed {
		return
	}

	evt := events.ProcessedEvent{
		ConversationID: call.ConversationID,
		Success:        result.Success,
		Eligible:       dec.Eligible,
		Score:          dec.Score,
		Summary:        result.Message,
	}
	// Ticket ids are derived from the ledger, never tracked separately.
	if result.Ledger != nil {
		for _, t := range result.Ledger.TicketsCreated {
			if t.Status == orchestrator.StatusCreated {
				evt.TicketIDs = append(evt.TicketIDs, t.TicketID)
			}
		}
	}

	if err := p.publisher.Publish(events.SubjectCallProcessed, evt); err != nil {
		p.logger.Warn("failed to publish processed event", "conversation_id", call.ConversationID, "error", err)
	}
}

// callSummary prefers the gateway's own call summary, falling back to the
// classifier's rationale.
func callSummary(call *transcript.Call, cls classify.Classification) string {
	if s := strings.TrimSpace(call.Summary); s != "" {
		return s
	}
	return cls.Rationale
}
