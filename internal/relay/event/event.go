// Package event defines the canonical VLM result broadcast to subscribers and
// the normalizer that produces it from loosely-typed upstream records.
package event

// Defaults applied when a source field is absent or unparseable.
const (
	DefaultModelName = "default"
	TypeVLMResult    = "vlm_result"
)

// VLMResult is the canonical representation of one VLM analysis result as
// written by the DeepStream pipeline. Every field is always populated;
// normalization substitutes documented defaults for anything missing.
type VLMResult struct {
	MessageID   string `json:"message_id"`
	FrameNumber int    `json:"frame_number"`
	SourceID    int    `json:"source_id"`
	VLMResponse string `json:"vlm_response"`
	ModelName   string `json:"model_name"`
	Timestamp   int64  `json:"timestamp"`
	Type        string `json:"type"`
}

// Frame is the outbound message envelope delivered to subscribers.
type Frame struct {
	Type string    `json:"type"`
	Data VLMResult `json:"data"`
}

// NewFrame wraps a result in the outbound envelope.
func NewFrame(result VLMResult) Frame {
	return Frame{Type: TypeVLMResult, Data: result}
}
