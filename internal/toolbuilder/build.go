package toolbuilder

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/tauhq/tau/internal/atomicfile"
	"github.com/tauhq/tau/internal/wasmsandbox"
)

func normalizeToolName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", fmt.Errorf("toolbuilder: tool_name is required")
	}
	if !toolNamePattern.MatchString(n) {
		return "", fmt.Errorf("toolbuilder: tool_name %q must be lowercase alphanumeric, '-', or '_'", name)
	}
	return n, nil
}

// Build runs the full synthesize/compile-retry/persist/validate pipeline
// for one generated tool.
func Build(req BuildRequest) (*BuildReport, error) {
	toolName, err := normalizeToolName(req.ToolName)
	if err != nil {
		return nil, err
	}
	if req.MaxAttempts < 1 || req.MaxAttempts > 8 {
		return nil, fmt.Errorf("toolbuilder: max_attempts must be in 1..=8, got %d", req.MaxAttempts)
	}

	report := &BuildReport{}
	var watSource string
	var wasmBytes []byte
	var lastErrMsg string

	for attempt := 1; attempt <= req.MaxAttempts; attempt++ {
		if attempt == 1 && req.SeedWAT != "" {
			watSource = req.SeedWAT
		} else {
			watSource = synthesizeShellWAT(toolName, req.Spec, lastErrMsg)
		}

		bytes, watErr := wasmtime.Wat2Wasm(watSource)
		if watErr != nil {
			lastErrMsg = watErr.Error()
			report.Attempts = append(report.Attempts, AttemptRecord{
				Attempt:    attempt,
				Succeeded:  false,
				ReasonCode: string(wasmsandbox.ReasonModuleParseFailed),
				Diagnostic: truncate(lastErrMsg, maxErrorChars),
			})
			report.ReasonCodes = append(report.ReasonCodes, string(wasmsandbox.ReasonModuleParseFailed))
			report.Diagnostics = append(report.Diagnostics, lastErrMsg)
			continue
		}

		wasmBytes = bytes
		report.Attempts = append(report.Attempts, AttemptRecord{Attempt: attempt, Succeeded: true})
		break
	}

	if wasmBytes == nil {
		return report, fmt.Errorf("toolbuilder: exhausted %d attempts synthesizing a valid wasm module for %q", req.MaxAttempts, toolName)
	}

	watPath := filepath.Join(req.ExtensionRoot, toolName, "tool.wat")
	wasmPath := filepath.Join(req.ExtensionRoot, toolName, "tool.wasm")
	manifestPath := filepath.Join(req.ExtensionRoot, toolName, "extension.json")
	metadataPath := filepath.Join(req.OutputRoot, toolName, "metadata.json")

	if err := atomicfile.WriteFileAtomic(watPath, []byte(watSource), 0o644); err != nil {
		return report, fmt.Errorf("toolbuilder: persist tool.wat: %w", err)
	}
	if err := atomicfile.WriteFileAtomic(wasmPath, wasmBytes, 0o644); err != nil {
		return report, fmt.Errorf("toolbuilder: persist tool.wasm: %w", err)
	}

	limits := req.Limits
	if limits.FuelLimit == 0 {
		limits = wasmsandbox.DefaultLimits()
	}
	manifest := Manifest{
		SchemaVersion: 1,
		ID:            toolName,
		Version:       "0.1.0",
		Runtime:       "wasm",
		Entrypoint:    "tool.wasm",
		Permissions:   []string{"run-commands"},
		Tools:         []string{toolName},
		Timeout:       limits.TimeoutMs,
		Wasm: WasmBlock{
			FuelLimit:        limits.FuelLimit,
			MemoryLimitBytes: limits.MemoryLimitBytes,
			MaxResponseBytes: limits.MaxResponseBytes,
			Capabilities:     req.Capabilities,
		},
	}
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return report, fmt.Errorf("toolbuilder: marshal extension.json: %w", err)
	}
	if err := atomicfile.WriteFileAtomic(manifestPath, manifestBytes, 0o644); err != nil {
		return report, fmt.Errorf("toolbuilder: persist extension.json: %w", err)
	}

	sandboxReport, sbErr := wasmsandbox.Run(wasmsandbox.Request{
		ModulePath:   wasmPath,
		RequestJSON:  `{"hook":"tool-call","tool":"` + toolName + `"}`,
		Limits:       limits,
		Capabilities: req.Capabilities,
	})
	if sbErr != nil {
		report.ReasonCodes = append(report.ReasonCodes, string(sbErr.Reason))
		report.Diagnostics = append(report.Diagnostics, sbErr.Message)
		_ = persistMetadata(metadataPath, report)
		return report, fmt.Errorf("toolbuilder: sandbox validation failed: %w", sbErr)
	}
	if !hasContentField(sandboxReport.ResponseJSON) {
		err := fmt.Errorf("toolbuilder: sandbox response for %q is missing a \"content\" field", toolName)
		report.ReasonCodes = append(report.ReasonCodes, "toolbuilder_response_missing_content")
		_ = persistMetadata(metadataPath, report)
		return report, err
	}

	for _, rc := range sandboxReport.ReasonCodes {
		report.ReasonCodes = append(report.ReasonCodes, string(rc))
	}
	report.Diagnostics = append(report.Diagnostics, sandboxReport.Diagnostics...)

	if err := persistMetadata(metadataPath, report); err != nil {
		return report, err
	}
	return report, nil
}

func persistMetadata(path string, report *BuildReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("toolbuilder: marshal metadata.json: %w", err)
	}
	if err := atomicfile.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("toolbuilder: persist metadata.json: %w", err)
	}
	return nil
}

func hasContentField(responseJSON string) bool {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(responseJSON), &parsed); err != nil {
		return false
	}
	_, ok := parsed["content"]
	return ok
}
