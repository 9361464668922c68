package capture

import (
	"encoding/json"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

// Message types on the capture transport.
const (
	MsgBeginCapture  = "BEGIN_CAPTURE"
	MsgNetworkJSON   = "NETWORK_JSON"
	MsgDOMSnapshot   = "DOM_SNAPSHOT"
	MsgCaptureResult = "CAPTURE_RESULT"
)

// Message is one inbound envelope on the capture channel. NETWORK_JSON
// messages carry the KPS marker so intercepted bodies are distinguishable
// from unrelated page messaging sharing the channel.
type Message struct {
	KPS  bool            `json:"__KPS,omitempty"`
	Type string          `json:"type"`
	URL  string          `json:"url,omitempty"`
	Body json.RawMessage `json:"body,omitempty"`
	HTML string          `json:"html,omitempty"`
}

// ResultMessage is the single outbound report of a capture session.
// Payload is explicitly null when the session ended without an
// observation, so consumers always see the field.
type ResultMessage struct {
	Type    string                          `json:"type"`
	Payload *api.NormalizedPriceObservation `json:"payload"`
}

// NewResultMessage wraps an observation (nil included) for reporting.
func NewResultMessage(obs *api.NormalizedPriceObservation) ResultMessage {
	return ResultMessage{Type: MsgCaptureResult, Payload: obs}
}
