// Package toolbuilder synthesizes, compiles, and persists generated WASM
// tool extensions from a natural-language spec, retrying WAT synthesis on
// compile failure up to a bounded attempt count.
package toolbuilder

import (
	"regexp"

	"github.com/tauhq/tau/internal/wasmsandbox"
)

var toolNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// BuildRequest is the input to Build.
type BuildRequest struct {
	ToolName     string
	Description  string
	Spec         string
	Parameters   map[string]any
	OutputRoot   string
	ExtensionRoot string
	MaxAttempts  int
	Limits       wasmsandbox.Limits
	Capabilities wasmsandbox.CapabilityProfile
	// SeedWAT, if set, is tried verbatim on attempt 1 before falling back
	// to the synthesized shell on later attempts.
	SeedWAT string
}

// AttemptRecord is one build attempt's outcome.
type AttemptRecord struct {
	Attempt    int      `json:"attempt"`
	Succeeded  bool     `json:"succeeded"`
	ReasonCode string   `json:"reason_code,omitempty"`
	Diagnostic string   `json:"diagnostic,omitempty"`
}

// BuildReport is the persisted metadata.json content.
type BuildReport struct {
	Attempts    []AttemptRecord `json:"attempts"`
	ReasonCodes []string        `json:"reason_codes"`
	Diagnostics []string        `json:"diagnostics"`
}

// Manifest is the persisted extension.json content.
type Manifest struct {
	SchemaVersion int        `json:"schema_version"`
	ID            string     `json:"id"`
	Version       string     `json:"version"`
	Runtime       string     `json:"runtime"`
	Entrypoint    string     `json:"entrypoint"`
	Permissions   []string   `json:"permissions"`
	Tools         []string   `json:"tools"`
	Timeout       uint64     `json:"timeout_ms"`
	Wasm          WasmBlock  `json:"wasm"`
}

// WasmBlock mirrors the sandbox limits/capabilities persisted alongside a
// generated tool's manifest.
type WasmBlock struct {
	FuelLimit        uint64                        `json:"fuel_limit"`
	MemoryLimitBytes uint64                        `json:"memory_limit_bytes"`
	MaxResponseBytes int                            `json:"max_response_bytes"`
	Capabilities     wasmsandbox.CapabilityProfile `json:"capabilities"`
}
