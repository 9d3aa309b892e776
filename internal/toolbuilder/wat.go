package toolbuilder

import (
	"fmt"
	"strings"
	"text/template"
)

const maxSpecSummaryChars = 160
const maxErrorChars = 120

var shellTemplate = template.Must(template.New("tool-shell").Parse(`(module
  ;; tool_name={{.ToolName}}
  ;; spec_summary={{.SpecSummary}}
  {{if .LastError}};; last_error={{.LastError}}
  {{end}}(memory (export "memory") 2)
  (global $heap (mut i32) (i32.const 1024))
  (data (i32.const 0) "{{.ResponseEscaped}}")
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
    i64.const {{.PackedResponse}})
)`))

type shellParams struct {
	ToolName        string
	SpecSummary     string
	LastError       string
	ResponseEscaped string
	PackedResponse  int64
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func escapeWAT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// synthesizeShellWAT deterministically builds the fixed-shell WAT module
// for one attempt. Identical (toolName, specSummary, lastError) inputs
// always yield byte-identical WAT text, satisfying the determinism
// invariant: the embedded response payload and its packed (ptr<<32|len)
// return value are fixed at data offset 0, independent of the comment
// lines above it.
func synthesizeShellWAT(toolName, specSummary, lastError string) string {
	response := fmt.Sprintf(`{"content":{"status":"ok","tool":%q},"is_error":false}`, toolName)
	packed := int64(0)<<32 | int64(len(response))

	var b strings.Builder
	_ = shellTemplate.Execute(&b, shellParams{
		ToolName:        toolName,
		SpecSummary:     truncate(specSummary, maxSpecSummaryChars),
		LastError:       truncate(lastError, maxErrorChars),
		ResponseEscaped: escapeWAT(response),
		PackedResponse:  packed,
	})
	return b.String()
}
