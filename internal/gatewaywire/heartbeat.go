package gatewaywire

import (
	"encoding/json"
	"time"
)

// HeartbeatInterval is the fixed period between gateway.heartbeat frames.
const HeartbeatInterval = 15 * time.Second

// HeartbeatPayload is the body of a gateway.heartbeat frame.
type HeartbeatPayload struct {
	ServerUnixMs int64 `json:"server_unix_ms"`
}

// HeartbeatFrame builds the periodic server-push heartbeat frame. It carries
// no request_id: it is unsolicited, not a response to a client request.
func HeartbeatFrame(nowUnixMs int64) (Frame, error) {
	body, err := json.Marshal(HeartbeatPayload{ServerUnixMs: nowUnixMs})
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		SchemaVersion: SupportedSchemaVersion,
		Kind:          KindHeartbeat,
		Payload:       body,
	}, nil
}
