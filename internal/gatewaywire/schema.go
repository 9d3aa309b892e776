package gatewaywire

import (
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type schemaRegistry struct {
	once    sync.Once
	initErr error
	frame   *jsonschema.Schema
	payload map[Kind]*jsonschema.Schema
}

var schemas schemaRegistry

func initSchemas() error {
	schemas.once.Do(func() {
		frameSchema, err := jsonschema.CompileString("gateway_frame", frameSchemaJSON)
		if err != nil {
			schemas.initErr = err
			return
		}
		schemas.frame = frameSchema

		payloadSchemas := map[Kind]string{
			KindCapabilitiesRequest:       emptyObjectPayloadSchema,
			KindGatewayStatusRequest:      emptyObjectPayloadSchema,
			KindSessionStatusRequest:      sessionIDPayloadSchema,
			KindSessionResetRequest:       sessionIDPayloadSchema,
			KindRunLifecycleStatusRequest: runIDPayloadSchema,
		}
		schemas.payload = make(map[Kind]*jsonschema.Schema, len(payloadSchemas))
		for kind, raw := range payloadSchemas {
			compiled, err := jsonschema.CompileString("gateway_payload_"+string(kind), raw)
			if err != nil {
				schemas.initErr = err
				return
			}
			schemas.payload[kind] = compiled
		}
	})
	return schemas.initErr
}

// ValidateFrame parses raw as a Frame and validates its envelope, schema
// version, kind, request_id, and kind-specific payload shape, in that
// order. On success it returns the parsed Frame; on failure it returns an
// ErrorPayload naming the first check that failed.
func ValidateFrame(raw []byte) (*Frame, *ErrorPayload) {
	if err := initSchemas(); err != nil {
		return nil, &ErrorPayload{Code: ErrorInternal, Message: "schema initialization failed"}
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, &ErrorPayload{Code: ErrorInvalidJSON, Message: err.Error()}
	}
	if err := schemas.frame.Validate(generic); err != nil {
		return nil, &ErrorPayload{Code: ErrorInvalidJSON, Message: err.Error()}
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, &ErrorPayload{Code: ErrorInvalidJSON, Message: err.Error()}
	}

	if frame.SchemaVersion != SupportedSchemaVersion {
		return nil, &ErrorPayload{Code: ErrorUnsupportedSchema, Message: "unsupported schema_version"}
	}
	if frame.RequestID == "" {
		return nil, &ErrorPayload{Code: ErrorInvalidRequestID, Message: "request_id must be non-empty"}
	}
	payloadSchema, ok := schemas.payload[frame.Kind]
	if !ok {
		return nil, &ErrorPayload{Code: ErrorUnsupportedKind, Message: "unsupported kind: " + string(frame.Kind)}
	}

	var payload any
	if len(frame.Payload) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		return nil, &ErrorPayload{Code: ErrorInvalidPayload, Message: err.Error()}
	}
	if err := payloadSchema.Validate(payload); err != nil {
		return nil, &ErrorPayload{Code: ErrorInvalidPayload, Message: err.Error()}
	}

	return &frame, nil
}

const frameSchemaJSON = `{
  "type": "object",
  "required": ["schema_version", "request_id", "kind", "payload"],
  "properties": {
    "schema_version": { "type": "integer" },
    "request_id": { "type": "string" },
    "kind": { "type": "string", "minLength": 1 },
    "payload": { "type": "object" }
  },
  "additionalProperties": false
}`

const emptyObjectPayloadSchema = `{
  "type": "object",
  "additionalProperties": true
}`

const sessionIDPayloadSchema = `{
  "type": "object",
  "required": ["session_id"],
  "properties": {
    "session_id": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": true
}`

const runIDPayloadSchema = `{
  "type": "object",
  "required": ["run_id"],
  "properties": {
    "run_id": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": true
}`
