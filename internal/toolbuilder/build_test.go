package toolbuilder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tauhq/tau/internal/wasmsandbox"
)

func TestBuildPersistsArtifactsAndValidates(t *testing.T) {
	root := t.TempDir()
	req := BuildRequest{
		ToolName:      "Echo-Tool",
		Description:   "echoes a fixed response",
		Spec:          "Return a canned JSON payload so callers can exercise the tool pipeline end to end.",
		OutputRoot:    filepath.Join(root, "out"),
		ExtensionRoot: filepath.Join(root, "ext"),
		MaxAttempts:   3,
		Limits:        wasmsandbox.DefaultLimits(),
		Capabilities:  wasmsandbox.DefaultCapabilityProfile(),
	}

	report, err := Build(req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(report.Attempts) != 1 || !report.Attempts[0].Succeeded {
		t.Fatalf("attempts = %+v, want one successful attempt", report.Attempts)
	}

	for _, p := range []string{
		filepath.Join(req.ExtensionRoot, "echo-tool", "tool.wat"),
		filepath.Join(req.ExtensionRoot, "echo-tool", "tool.wasm"),
		filepath.Join(req.ExtensionRoot, "echo-tool", "extension.json"),
		filepath.Join(req.OutputRoot, "echo-tool", "metadata.json"),
	} {
		if _, statErr := os.Stat(p); statErr != nil {
			t.Fatalf("expected %s to exist: %v", p, statErr)
		}
	}

	manifestBytes, _ := os.ReadFile(filepath.Join(req.ExtensionRoot, "echo-tool", "extension.json"))
	var manifest Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.ID != "echo-tool" || manifest.Runtime != "wasm" || len(manifest.Permissions) != 1 {
		t.Fatalf("manifest = %+v, unexpected shape", manifest)
	}
}

func TestBuildRejectsInvalidToolName(t *testing.T) {
	root := t.TempDir()
	_, err := Build(BuildRequest{
		ToolName:      "Not A Valid Name!",
		OutputRoot:    filepath.Join(root, "out"),
		ExtensionRoot: filepath.Join(root, "ext"),
		MaxAttempts:   1,
	})
	if err == nil {
		t.Fatal("expected error for invalid tool name")
	}
}

func TestBuildRecoversFromInvalidSeedWAT(t *testing.T) {
	root := t.TempDir()
	report, err := Build(BuildRequest{
		ToolName:      "recovers",
		Spec:          "seed is deliberately broken",
		OutputRoot:    filepath.Join(root, "out"),
		ExtensionRoot: filepath.Join(root, "ext"),
		MaxAttempts:   3,
		Limits:        wasmsandbox.DefaultLimits(),
		Capabilities:  wasmsandbox.DefaultCapabilityProfile(),
		SeedWAT:       "(module (not valid wat at all",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(report.Attempts) < 2 {
		t.Fatalf("attempts = %+v, want at least one failed attempt before recovery", report.Attempts)
	}
	if report.Attempts[0].Succeeded {
		t.Fatalf("attempt 1 should have failed on the broken seed WAT")
	}
	last := report.Attempts[len(report.Attempts)-1]
	if !last.Succeeded {
		t.Fatalf("final attempt should succeed after falling back to the synthesized shell")
	}
}

func TestSynthesizeShellWATIsDeterministic(t *testing.T) {
	a := synthesizeShellWAT("sample-tool", "a short spec", "")
	b := synthesizeShellWAT("sample-tool", "a short spec", "")
	if a != b {
		t.Fatal("synthesizeShellWAT must be deterministic for identical inputs")
	}
}

func TestTruncateRespectsSpecAndErrorCaps(t *testing.T) {
	long := make([]rune, 500)
	for i := range long {
		long[i] = 'x'
	}
	if got := len([]rune(truncate(string(long), maxSpecSummaryChars))); got != maxSpecSummaryChars {
		t.Fatalf("spec summary length = %d, want %d", got, maxSpecSummaryChars)
	}
	if got := len([]rune(truncate(string(long), maxErrorChars))); got != maxErrorChars {
		t.Fatalf("error length = %d, want %d", got, maxErrorChars)
	}
}
