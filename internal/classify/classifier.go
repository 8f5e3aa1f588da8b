package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vozline/tramita/internal/anthropic"
	"github.com/vozline/tramita/internal/transcript"
)

// CompletionClient is the text-classification capability. *anthropic.Client
// satisfies it; tests substitute their own.
type CompletionClient interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

// Incident is one classified management within a call.
type Incident struct {
	IncidentType     string `json:"incident_type"`
	ManagementReason string `json:"management_reason"`
	InsuranceLine    string `json:"insurance_line,omitempty"`
}

// Classification is the classifier's validated output. Primary is always set;
// Additional holds further distinct managements found in the same call.
type Classification struct {
	Primary    Incident   `json:"primary"`
	Additional []Incident `json:"additional,omitempty"`
	Rationale  string     `json:"rationale"`
	Confidence float64    `json:"confidence"`
}

// Incidents returns primary plus additional in order.
func (c Classification) Incidents() []Incident {
	return append([]Incident{c.Primary}, c.Additional...)
}

// Unclassified is the degraded classification used when the capability fails
// or returns garbage. The scorer penalizes it via the zero confidence.
func Unclassified() Classification {
	return Classification{
		Primary: Incident{
			IncidentType:     TypeUnclassified,
			ManagementReason: ReasonUnknown,
		},
		Rationale:  "clasificación no disponible",
		Confidence: 0,
	}
}

type Classifier struct {
	llm    CompletionClient
	logger *slog.Logger
}

func New(llm CompletionClient, logger *slog.Logger) *Classifier {
	return &Classifier{llm: llm, logger: logger}
}

// llmOutput mirrors the JSON contract in the system prompt.
type llmOutput struct {
	Incidents  []Incident `json:"incidents"`
	Rationale  string     `json:"rationale"`
	Confidence float64    `json:"confidence"`
}

// Classify builds the classification request deterministically from the
// transcript, calls the capability, and validates the result against the
// fixed taxonomy. A capability or parse failure returns Unclassified() and
// the error; callers log and continue with the degraded classification.
func (c *Classifier) Classify(ctx context.Context, call *transcript.Call) (Classification, error) {
	text := transcript.Text(call)
	if strings.TrimSpace(text) == "" {
		return Unclassified(), nil
	}

	prompt := fmt.Sprintf(userPromptTemplate, call.ConversationID, text)
	raw, err := c.llm.Complete(ctx, systemPrompt, []anthropic.Message{{Role: "user", Content: prompt}}, 1024)
	if err != nil {
		return Unclassified(), fmt.Errorf("classification capability: %w", err)
	}

	var out llmOutput
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		c.logger.Error("unparseable classification response", "conversation_id", call.ConversationID, "raw", raw)
		return Unclassified(), fmt.Errorf("parse classification: %w", err)
	}
	if len(out.Incidents) == 0 {
		return Unclassified(), nil
	}

	cls := Classification{
		Primary:    clampIncident(out.Incidents[0]),
		Rationale:  out.Rationale,
		Confidence: clampConfidence(out.Confidence),
	}
	for _, inc := range out.Incidents[1:] {
		clamped := clampIncident(inc)
		if clamped.IncidentType == TypeUnclassified {
			continue // an unknown secondary category is noise, not a second ticket
		}
		if clamped.IncidentType == cls.Primary.IncidentType {
			continue
		}
		cls.Additional = append(cls.Additional, clamped)
	}

	c.logger.Info("call classified",
		"conversation_id", call.ConversationID,
		"incident_type", cls.Primary.IncidentType,
		"confidence", cls.Confidence,
		"additional", len(cls.Additional),
	)
	return cls, nil
}

func clampIncident(inc Incident) Incident {
	return Incident{
		IncidentType:     ClampIncidentType(inc.IncidentType),
		ManagementReason: ClampManagementReason(inc.ManagementReason),
		InsuranceLine:    ClampInsuranceLine(inc.InsuranceLine),
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// extractJSON cuts the outermost JSON object out of a completion that may be
// wrapped in prose or code fences.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
