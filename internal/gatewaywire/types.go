// Package gatewaywire implements the WebSocket control-plane frame schema:
// JSON-Schema validation of inbound request frames, the closed request-kind
// and error-code vocabularies, and the periodic heartbeat frame shape.
package gatewaywire

import "encoding/json"

// SupportedSchemaVersion is the only frame schema_version this gateway accepts.
const SupportedSchemaVersion = 1

// Kind is a request or response frame's discriminator.
type Kind string

const (
	KindCapabilitiesRequest       Kind = "capabilities.request"
	KindGatewayStatusRequest      Kind = "gateway.status.request"
	KindSessionStatusRequest      Kind = "session.status.request"
	KindSessionResetRequest       Kind = "session.reset.request"
	KindRunLifecycleStatusRequest Kind = "run.lifecycle.status.request"

	KindHeartbeat Kind = "gateway.heartbeat"
	KindError     Kind = "error"
)

// requestKinds is the closed set of kinds a client may send.
var requestKinds = map[Kind]bool{
	KindCapabilitiesRequest:       true,
	KindGatewayStatusRequest:      true,
	KindSessionStatusRequest:      true,
	KindSessionResetRequest:       true,
	KindRunLifecycleStatusRequest: true,
}

// responseKindFor returns the `*.response` kind paired with a request kind.
func responseKindFor(k Kind) Kind {
	return Kind(string(k[:len(k)-len("request")]) + "response")
}

// ErrorCode is the closed vocabulary of error payload codes.
type ErrorCode string

const (
	ErrorInvalidJSON       ErrorCode = "invalid_json"
	ErrorUnsupportedSchema ErrorCode = "unsupported_schema"
	ErrorUnsupportedKind   ErrorCode = "unsupported_kind"
	ErrorInvalidRequestID  ErrorCode = "invalid_request_id"
	ErrorInvalidPayload    ErrorCode = "invalid_payload"
	ErrorUnauthorized      ErrorCode = "unauthorized"
	ErrorRateLimited       ErrorCode = "rate_limited"
	ErrorInternal          ErrorCode = "internal_error"
)

// Frame is one inbound or outbound WebSocket message.
type Frame struct {
	SchemaVersion int             `json:"schema_version"`
	RequestID     string          `json:"request_id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the payload body of a Kind==error frame.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorFrame builds an error response frame. requestID may be empty when
// the inbound frame could not be parsed far enough to recover one.
func ErrorFrame(requestID string, code ErrorCode, message string) Frame {
	payload, _ := json.Marshal(ErrorPayload{Code: code, Message: message})
	return Frame{
		SchemaVersion: SupportedSchemaVersion,
		RequestID:     requestID,
		Kind:          KindError,
		Payload:       payload,
	}
}

// ResponseFrame builds a `<kind>.response` frame carrying payload, echoing
// the request's request_id.
func ResponseFrame(requestKind Kind, requestID string, payload any) (Frame, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		SchemaVersion: SupportedSchemaVersion,
		RequestID:     requestID,
		Kind:          responseKindFor(requestKind),
		Payload:       body,
	}, nil
}
