package transcript

import "encoding/json"

// Speaker identifies who produced a transcript segment.
type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

// Call is one completed conversation session as delivered by the voice gateway.
// The transcript is immutable once received; decision and execution results are
// attached separately by the store.
type Call struct {
	ConversationID string    `json:"conversation_id"`
	Segments       []Segment `json:"segments"`
	Summary        string    `json:"summary,omitempty"`
	DurationSecs   float64   `json:"duration_secs"`
	Cost           float64   `json:"cost"`
	EndReason      string    `json:"end_reason,omitempty"`
	AudioURL       string    `json:"audio_url,omitempty"`
}

// Segment is a single turn of speech. Tool results may answer an invocation
// made in an earlier segment; they are linked by request id.
type Segment struct {
	Speaker     Speaker          `json:"speaker"`
	Message     string           `json:"message"`
	StartSecs   float64          `json:"start_secs"`
	EndSecs     float64          `json:"end_secs"`
	Invocations []ToolInvocation `json:"tool_invocations,omitempty"`
	Results     []ToolResult     `json:"tool_results,omitempty"`
}

// ToolInvocation is a structured side-channel request embedded in the transcript.
type ToolInvocation struct {
	RequestID string          `json:"request_id"`
	ToolName  string          `json:"tool_name"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// ToolResult answers the ToolInvocation with the same request id.
// The payload is opaque JSON until parsed by the per-tool parsers in this package.
type ToolResult struct {
	RequestID string          `json:"request_id"`
	ToolName  string          `json:"tool_name"`
	IsError   bool            `json:"is_error"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
