package processor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/vozline/tramita/internal/anthropic"
	"github.com/vozline/tramita/internal/caseman"
	"github.com/vozline/tramita/internal/classify"
	"github.com/vozline/tramita/internal/decision"
	"github.com/vozline/tramita/internal/events"
	"github.com/vozline/tramita/internal/orchestrator"
	"github.com/vozline/tramita/internal/transcript"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore implements CallStore and orchestrator.LedgerStore in memory.
type memStore struct {
	mu        sync.Mutex
	calls     map[string]*transcript.Call
	decisions map[string]decision.Decision
	ledgers   map[string]orchestrator.Ledger
}

func newMemStore() *memStore {
	return &memStore{
		calls:     make(map[string]*transcript.Call),
		decisions: make(map[string]decision.Decision),
		ledgers:   make(map[string]orchestrator.Ledger),
	}
}

func (m *memStore) InsertCall(_ context.Context, call *transcript.Call) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calls[call.ConversationID]; ok {
		return false, nil
	}
	m.calls[call.ConversationID] = call
	return true, nil
}

func (m *memStore) SaveDecision(_ context.Context, conversationID string, dec decision.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[conversationID] = dec
	return nil
}

func (m *memStore) HasLedger(_ context.Context, conversationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ledgers[conversationID]
	return ok, nil
}

func (m *memStore) SaveExecution(_ context.Context, conversationID string, ledger orchestrator.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[conversationID] = ledger
	return nil
}

type stubLLM struct {
	response string
	calls    int
	mu       sync.Mutex
}

func (s *stubLLM) Complete(_ context.Context, _ string, _ []anthropic.Message, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.response, nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []events.ProcessedEvent
}

func (m *memPublisher) Publish(_ string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt, ok := data.(events.ProcessedEvent); ok {
		m.events = append(m.events, evt)
	}
	return nil
}

type casemanBackend struct {
	mu         sync.Mutex
	customers  int
	tickets    int
	followUps  int
	lastTicket caseman.TicketRequest
}

func (b *casemanBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/customers":
			b.customers++
			json.NewEncoder(w).Encode(caseman.CustomerResponse{CustomerID: "CUST-9"})
		case "/api/v1/tickets":
			b.tickets++
			json.NewDecoder(r.Body).Decode(&b.lastTicket)
			json.NewEncoder(w).Encode(caseman.TicketResponse{TicketID: "TCK-9"})
		case "/api/v1/follow-ups":
			b.followUps++
			json.NewEncoder(w).Encode(caseman.FollowUpResponse{FollowUpID: "FU-9"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestProcessor(t *testing.T, llmResponse string) (*Processor, *memStore, *casemanBackend, *memPublisher, *stubLLM) {
	t.Helper()

	backend := &casemanBackend{}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	store := newMemStore()
	llm := &stubLLM{response: llmResponse}
	classifier := classify.New(llm, discardLogger())
	orch := orchestrator.New(caseman.NewClient(server.URL, ""), store, discardLogger())
	publisher := &memPublisher{}

	return New(store, classifier, orch, publisher, discardLogger()), store, backend, publisher, llm
}

func retentionCall() *transcript.Call {
	return &transcript.Call{
		ConversationID: "conv-retention",
		Summary:        "El cliente llama para confirmar el estado de su solicitud de baja en curso.",
		Segments: []transcript.Segment{
			{Speaker: transcript.SpeakerUser, Message: "Llamo por lo de mi baja, la retención que tenía abierta"},
			{Speaker: transcript.SpeakerAgent, Message: "Un momento, le localizo", Results: []transcript.ToolResult{{
				RequestID: "req-1",
				ToolName:  transcript.ToolIdentify,
				Payload: json.RawMessage(`{
					"status": "ok",
					"data": {
						"clientes": [{"codigo": "076486F00", "nombre": "Carlos García", "email": "carlos@example.com"}],
						"leads": [],
						"detalle_polizas": [{"numero_poliza": "5951086", "ramo": "HOGAR"}],
						"incidencias": [{"id_incidencia": "INC-301", "tipo": "Retención de Cliente Cartera", "estado": "abierta"}]
					}
				}`),
			}}},
		},
	}
}

const retentionLLMResponse = `{
	"incidents": [{"incident_type": "Retención de Cliente Cartera", "management_reason": "Gestión Comercial"}],
	"rationale": "El cliente llama por la gestión de retención ya abierta",
	"confidence": 0.85
}`

func TestProcess_RetentionFollowUpScenario(t *testing.T) {
	p, store, backend, publisher, _ := newTestProcessor(t, retentionLLMResponse)

	res, err := p.Process(context.Background(), retentionCall())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("result: %+v", res)
	}

	dec := store.decisions["conv-retention"]
	if !dec.Client.UseExistingClient || dec.Client.ClientData.ClientCode != "076486F00" {
		t.Errorf("client decision: %+v", dec.Client)
	}
	if !dec.FollowUp.IsFollowUp || dec.FollowUp.RelatedIncidentID != "INC-301" {
		t.Errorf("follow-up decision: %+v", dec.FollowUp)
	}
	if dec.FollowUp.CreateNewTicket {
		t.Error("confirmatory retention call must not create a new ticket")
	}
	if backend.tickets != 0 || backend.customers != 0 {
		t.Errorf("unexpected side effects: %+v", backend)
	}
	if backend.followUps != 1 {
		t.Errorf("expected one follow-up call, got %d", backend.followUps)
	}

	ledger := store.ledgers["conv-retention"]
	if len(ledger.FollowUpsCreated) != 1 || ledger.FollowUpsCreated[0].FollowUpID != "FU-9" {
		t.Errorf("ledger: %+v", ledger)
	}
	if len(publisher.events) != 1 || publisher.events[0].ConversationID != "conv-retention" {
		t.Errorf("processed event not published: %+v", publisher.events)
	}
}

func newQuoteCall() *transcript.Call {
	return &transcript.Call{
		ConversationID: "conv-quote",
		Summary:        "Persona interesada en contratar un seguro de hogar, facilita nombre y teléfono.",
		Segments: []transcript.Segment{
			{Speaker: transcript.SpeakerAgent, Message: "Le busco en el sistema", Results: []transcript.ToolResult{{
				RequestID: "req-1",
				ToolName:  transcript.ToolIdentify,
				Payload:   json.RawMessage(`{"status": "ok", "data": {"clientes": [], "leads": []}}`),
			}}},
			{Speaker: transcript.SpeakerUser, Message: "Me llamo Lucía Fernández, mi teléfono es 655443322, quiero un presupuesto para un seguro de hogar"},
		},
	}
}

const quoteLLMResponse = `{
	"incidents": [{"incident_type": "Nueva Contratación", "management_reason": "Gestión Comercial", "insurance_line": "HOME"}],
	"rationale": "Solicita presupuesto de seguro de hogar",
	"confidence": 0.9
}`

func TestProcess_NewCustomerQuoteScenario(t *testing.T) {
	p, store, backend, _, _ := newTestProcessor(t, quoteLLMResponse)

	res, err := p.Process(context.Background(), newQuoteCall())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("result: %+v", res)
	}

	dec := store.decisions["conv-quote"]
	if dec.Client.ClientData.Type != "new" {
		t.Errorf("resolution type = %q", dec.Client.ClientData.Type)
	}
	if !dec.Client.ShouldCreateClient {
		t.Error("expected client creation")
	}
	if !dec.Tickets.ShouldCreateTickets {
		t.Error("expected ticket creation")
	}
	if backend.customers != 1 || backend.tickets != 1 {
		t.Errorf("side effects: customers=%d tickets=%d", backend.customers, backend.tickets)
	}
	if backend.lastTicket.InsuranceLine != classify.LineHome {
		t.Errorf("insurance line = %q", backend.lastTicket.InsuranceLine)
	}
	if backend.lastTicket.CustomerID != "CUST-9" {
		t.Errorf("ticket must use the created customer id, got %q", backend.lastTicket.CustomerID)
	}
}

func TestProcess_DuplicateDeliveryShortCircuits(t *testing.T) {
	p, _, backend, _, llm := newTestProcessor(t, quoteLLMResponse)

	if _, err := p.Process(context.Background(), newQuoteCall()); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	res, err := p.Process(context.Background(), newQuoteCall())
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !res.AlreadyProcessed {
		t.Error("duplicate delivery must short-circuit")
	}
	if llm.calls != 1 {
		t.Errorf("duplicate must not re-classify, llm calls = %d", llm.calls)
	}
	if backend.customers != 1 || backend.tickets != 1 {
		t.Errorf("duplicate made external calls: %+v", backend)
	}
}

func TestProcess_LowSignalCallCreatesNothing(t *testing.T) {
	lowLLM := `{
		"incidents": [{"incident_type": "No Clasificada", "management_reason": "Sin Determinar"}],
		"rationale": "no queda claro",
		"confidence": 0.2
	}`
	p, store, backend, _, _ := newTestProcessor(t, lowLLM)

	call := &transcript.Call{
		ConversationID: "conv-noise",
		Summary:        "ruido",
		Segments: []transcript.Segment{
			{Speaker: transcript.SpeakerUser, Message: "eh... hola? se oye?"},
		},
	}

	res, err := p.Process(context.Background(), call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Error("low-signal call still reports a summary")
	}

	dec := store.decisions["conv-noise"]
	if dec.Eligible {
		t.Errorf("score %d must be under threshold", dec.Score)
	}
	if backend.customers+backend.tickets+backend.followUps != 0 {
		t.Errorf("ineligible call made external calls: %+v", backend)
	}
	if _, ok := store.ledgers["conv-noise"]; !ok {
		t.Error("even a no-op execution must persist its ledger marker")
	}
}

func TestProcess_RejectsMissingConversationID(t *testing.T) {
	p, _, _, _, _ := newTestProcessor(t, quoteLLMResponse)
	if _, err := p.Process(context.Background(), &transcript.Call{}); err == nil {
		t.Error("expected error for missing conversation id")
	}
}

func TestHandleCallReceived_BadPayloadIgnored(t *testing.T) {
	p, store, _, _, _ := newTestProcessor(t, quoteLLMResponse)
	p.HandleCallReceived(events.SubjectCallReceived, []byte("{not json"))
	if len(store.calls) != 0 {
		t.Error("malformed event must not store a call")
	}
}
