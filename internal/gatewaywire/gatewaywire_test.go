package gatewaywire

import (
	"encoding/json"
	"testing"
)

func TestValidateFrameAcceptsCapabilitiesRequest(t *testing.T) {
	raw := []byte(`{"schema_version":1,"request_id":"req-1","kind":"capabilities.request","payload":{}}`)
	frame, errPayload := ValidateFrame(raw)
	if errPayload != nil {
		t.Fatalf("unexpected error: %+v", errPayload)
	}
	if frame.Kind != KindCapabilitiesRequest || frame.RequestID != "req-1" {
		t.Fatalf("frame = %+v", frame)
	}
}

func TestValidateFrameRejectsInvalidJSON(t *testing.T) {
	_, errPayload := ValidateFrame([]byte(`{not json`))
	if errPayload == nil || errPayload.Code != ErrorInvalidJSON {
		t.Fatalf("errPayload = %+v", errPayload)
	}
}

func TestValidateFrameRejectsUnsupportedSchemaVersion(t *testing.T) {
	raw := []byte(`{"schema_version":2,"request_id":"req-1","kind":"capabilities.request","payload":{}}`)
	_, errPayload := ValidateFrame(raw)
	if errPayload == nil || errPayload.Code != ErrorUnsupportedSchema {
		t.Fatalf("errPayload = %+v", errPayload)
	}
}

func TestValidateFrameRejectsEmptyRequestID(t *testing.T) {
	raw := []byte(`{"schema_version":1,"request_id":"","kind":"capabilities.request","payload":{}}`)
	_, errPayload := ValidateFrame(raw)
	if errPayload == nil || errPayload.Code != ErrorInvalidRequestID {
		t.Fatalf("errPayload = %+v", errPayload)
	}
}

func TestValidateFrameRejectsUnsupportedKind(t *testing.T) {
	raw := []byte(`{"schema_version":1,"request_id":"req-1","kind":"unknown.request","payload":{}}`)
	_, errPayload := ValidateFrame(raw)
	if errPayload == nil || errPayload.Code != ErrorUnsupportedKind {
		t.Fatalf("errPayload = %+v", errPayload)
	}
}

func TestValidateFrameRejectsInvalidPayloadForSessionStatus(t *testing.T) {
	raw := []byte(`{"schema_version":1,"request_id":"req-1","kind":"session.status.request","payload":{}}`)
	_, errPayload := ValidateFrame(raw)
	if errPayload == nil || errPayload.Code != ErrorInvalidPayload {
		t.Fatalf("errPayload = %+v", errPayload)
	}
}

func TestValidateFrameAcceptsSessionStatusWithSessionID(t *testing.T) {
	raw := []byte(`{"schema_version":1,"request_id":"req-1","kind":"session.status.request","payload":{"session_id":"s-1"}}`)
	frame, errPayload := ValidateFrame(raw)
	if errPayload != nil {
		t.Fatalf("unexpected error: %+v", errPayload)
	}
	if frame.Kind != KindSessionStatusRequest {
		t.Fatalf("frame = %+v", frame)
	}
}

func TestResponseFrameEchoesRequestIDAndDerivesResponseKind(t *testing.T) {
	frame, err := ResponseFrame(KindGatewayStatusRequest, "req-2", map[string]string{"status": "ok"})
	if err != nil {
		t.Fatalf("response frame: %v", err)
	}
	if frame.Kind != "gateway.status.response" || frame.RequestID != "req-2" {
		t.Fatalf("frame = %+v", frame)
	}
}

func TestErrorFrameCarriesCodeAndMessage(t *testing.T) {
	frame := ErrorFrame("req-3", ErrorUnauthorized, "token expired")
	var payload ErrorPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Code != ErrorUnauthorized || payload.Message != "token expired" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestHeartbeatFrameCarriesNoRequestID(t *testing.T) {
	frame, err := HeartbeatFrame(12345)
	if err != nil {
		t.Fatalf("heartbeat frame: %v", err)
	}
	if frame.Kind != KindHeartbeat || frame.RequestID != "" {
		t.Fatalf("frame = %+v", frame)
	}
}
