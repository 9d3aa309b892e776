package wasmsandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v25"
)

func okModuleWat() string {
	return `(module
  (memory (export "memory") 1)
  (global $heap (mut i32) (i32.const 1024))
  (data (i32.const 0) "{\"content\":{\"status\":\"ok\",\"message\":\"done\"},\"is_error\":false}")
  (func (export "tau_extension_alloc") (param $len i32) (result i32)
    (local $ptr i32)
    global.get $heap
    local.set $ptr
    global.get $heap
    local.get $len
    i32.add
    global.set $heap
    local.get $ptr)
  (func (export "tau_extension_invoke") (param i32 i32) (result i64)
    i64.const 61)
)`
}

func writeModule(t *testing.T, dir, name, wat string) string {
	t.Helper()
	bytes, err := wasmtime.Wat2Wasm(wat)
	if err != nil {
		t.Fatalf("Wat2Wasm: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// TestWasmValidationMemoryLimit verifies that a module exporting the
// required triple returns a JSON body with a "content" key and reports
// wasm_execution_succeeded; a module declaring 2 memory pages against a
// 64 KiB memory limit is denied with wasm_module_memory_declared_exceeds_limit.
func TestWasmValidationMemoryLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "ok.wasm", okModuleWat())

	report, sbErr := Run(Request{
		ModulePath:   path,
		RequestJSON:  `{"hook":"tool-call"}`,
		Limits:       DefaultLimits(),
		Capabilities: DefaultCapabilityProfile(),
	})
	if sbErr != nil {
		t.Fatalf("Run: %v", sbErr)
	}
	if !containsSubstring(report.ResponseJSON, `"content"`) {
		t.Fatalf("response = %q, want a content key", report.ResponseJSON)
	}
	if report.ReasonCodes[0] != ReasonExecutionSucceeded {
		t.Fatalf("reason = %v, want %v", report.ReasonCodes[0], ReasonExecutionSucceeded)
	}

	largeMemWat := `(module
  (memory (export "memory") 2)
  (func (export "tau_extension_alloc") (param i32) (result i32) i32.const 0)
  (func (export "tau_extension_invoke") (param i32 i32) (result i64) i64.const 0)
)`
	largePath := writeModule(t, dir, "large-memory.wasm", largeMemWat)

	_, denyErr := Run(Request{
		ModulePath:  largePath,
		RequestJSON: "{}",
		Limits: Limits{
			FuelLimit:        DefaultFuelLimit,
			MemoryLimitBytes: 65536,
			TimeoutMs:        DefaultTimeoutMs,
			MaxResponseBytes: DefaultMaxResponseBytes,
		},
		Capabilities: DefaultCapabilityProfile(),
	})
	if denyErr == nil {
		t.Fatal("expected deny for declared memory above limit")
	}
	if denyErr.Reason != ReasonModuleMemoryExceedsLimit {
		t.Fatalf("reason = %v, want %v", denyErr.Reason, ReasonModuleMemoryExceedsLimit)
	}
}

func TestCapabilityProfileUnsupportedFilesystem(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "ok.wasm", okModuleWat())

	_, sbErr := Run(Request{
		ModulePath:  path,
		RequestJSON: "{}",
		Limits:      DefaultLimits(),
		Capabilities: CapabilityProfile{
			FilesystemMode: FilesystemReadOnly,
		},
	})
	if sbErr == nil {
		t.Fatal("expected deny for unsupported filesystem capability")
	}
	if sbErr.Reason != ReasonCapabilityFilesystemUnsupported {
		t.Fatalf("reason = %v, want %v", sbErr.Reason, ReasonCapabilityFilesystemUnsupported)
	}
}

func TestInvalidModuleBytesParseFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.wasm")
	if err := os.WriteFile(path, []byte("not-wasm"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, sbErr := Run(Request{
		ModulePath:   path,
		RequestJSON:  "{}",
		Limits:       DefaultLimits(),
		Capabilities: DefaultCapabilityProfile(),
	})
	if sbErr == nil {
		t.Fatal("expected error for invalid module bytes")
	}
	if sbErr.Reason != ReasonModuleParseFailed && sbErr.Reason != ReasonModuleCompileFailed {
		t.Fatalf("reason = %v, want parse_failed or compile_failed", sbErr.Reason)
	}
}

func TestInvalidLimitsRejected(t *testing.T) {
	_, sbErr := Run(Request{
		ModulePath:   "/nonexistent",
		RequestJSON:  "{}",
		Limits:       Limits{},
		Capabilities: DefaultCapabilityProfile(),
	})
	if sbErr == nil {
		t.Fatal("expected error for zero-value limits")
	}
	if sbErr.Reason != ReasonLimitInvalidFuel {
		t.Fatalf("reason = %v, want %v", sbErr.Reason, ReasonLimitInvalidFuel)
	}
}

func containsSubstring(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
