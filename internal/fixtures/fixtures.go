// Package fixtures implements the contract-fixture runner shared by every
// ingress that needs deterministic replay of recorded request/response
// pairs: the signed-envelope gate's decision table and the dispatcher's
// provider-body contract tests both register their own CaseExecutor over
// the same schema-gated, case_id-unique, summarize-on-replay machinery.
package fixtures

import (
	"encoding/json"
	"fmt"
)

// Outcome is the closed set of expected results a fixture case may assert.
type Outcome string

const (
	OutcomeSuccess          Outcome = "Success"
	OutcomeMalformedInput   Outcome = "MalformedInput"
	OutcomeRetryableFailure Outcome = "RetryableFailure"
)

// Expected is the assertion block attached to one fixture case.
type Expected struct {
	Outcome      Outcome         `json:"outcome"`
	StatusCode   int             `json:"status_code"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ResponseBody json.RawMessage `json:"response_body,omitempty"`
}

// Case is one fixture entry: an opaque input payload plus its expected
// replay outcome.
type Case struct {
	CaseID string          `json:"case_id"`
	Input  json.RawMessage `json:"input"`
	Expected Expected      `json:"expected"`
}

// File is the top-level shape of one fixture document.
type File struct {
	SchemaVersion int    `json:"schema_version"`
	Cases         []Case `json:"cases"`
}

// ReplayResult is what a CaseExecutor computes for one case's input. It is
// asserted against that case's Expected block.
type ReplayResult struct {
	Step         string          `json:"step"`
	StatusCode   int             `json:"status_code"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ResponseBody json.RawMessage `json:"response_body,omitempty"`
}

// CaseExecutor computes a deterministic ReplayResult from one case's raw
// input. Executors must be pure functions over the input: no I/O, no
// wall-clock reads, no randomness — replaying the same fixture twice must
// produce identical results.
type CaseExecutor func(input json.RawMessage) ReplayResult

// SupportedSchemaVersion is the only schema_version this runner accepts.
const SupportedSchemaVersion = 1

// Mismatch describes one case whose replay result did not match its
// expected block.
type Mismatch struct {
	CaseID   string
	Expected Expected
	Actual   ReplayResult
	Reason   string
}

// Summary is the outcome of running every case in a fixture file.
type Summary struct {
	Total     int
	Passed    int
	Failed    int
	Mismatches []Mismatch
}

// Runner replays a fixture file's cases through a domain-specific executor
// and asserts each one's result against its expected block.
type Runner struct {
	Executor CaseExecutor
}

// NewRunner builds a Runner over the given executor.
func NewRunner(executor CaseExecutor) *Runner {
	return &Runner{Executor: executor}
}

// Run parses fixtureJSON, validates its schema_version and case_id
// uniqueness, replays every case, and returns a Summary. A schema or
// uniqueness violation is returned as an error and no cases are replayed.
func (r *Runner) Run(fixtureJSON []byte) (*Summary, error) {
	var file File
	if err := json.Unmarshal(fixtureJSON, &file); err != nil {
		return nil, fmt.Errorf("fixtures: parse fixture: %w", err)
	}
	if file.SchemaVersion != SupportedSchemaVersion {
		return nil, fmt.Errorf("fixtures: unsupported schema_version %d (want %d)", file.SchemaVersion, SupportedSchemaVersion)
	}

	seen := make(map[string]bool, len(file.Cases))
	for _, c := range file.Cases {
		if c.CaseID == "" {
			return nil, fmt.Errorf("fixtures: case with empty case_id")
		}
		if seen[c.CaseID] {
			return nil, fmt.Errorf("fixtures: duplicate case_id %q", c.CaseID)
		}
		seen[c.CaseID] = true
	}

	summary := &Summary{Total: len(file.Cases)}
	for _, c := range file.Cases {
		actual := r.Executor(c.Input)
		if mismatch := assertCase(c, actual); mismatch != nil {
			summary.Failed++
			summary.Mismatches = append(summary.Mismatches, *mismatch)
			continue
		}
		summary.Passed++
	}
	return summary, nil
}

func assertCase(c Case, actual ReplayResult) *Mismatch {
	exp := c.Expected
	if exp.StatusCode != actual.StatusCode {
		return &Mismatch{CaseID: c.CaseID, Expected: exp, Actual: actual,
			Reason: fmt.Sprintf("status_code: expected %d, got %d", exp.StatusCode, actual.StatusCode)}
	}
	if exp.ErrorCode != actual.ErrorCode {
		return &Mismatch{CaseID: c.CaseID, Expected: exp, Actual: actual,
			Reason: fmt.Sprintf("error_code: expected %q, got %q", exp.ErrorCode, actual.ErrorCode)}
	}
	switch exp.Outcome {
	case OutcomeSuccess:
		if actual.ErrorCode != "" {
			return &Mismatch{CaseID: c.CaseID, Expected: exp, Actual: actual, Reason: "expected success, got error_code set"}
		}
	case OutcomeMalformedInput, OutcomeRetryableFailure:
		if actual.ErrorCode == "" {
			return &Mismatch{CaseID: c.CaseID, Expected: exp, Actual: actual, Reason: "expected error_code set for failure outcome"}
		}
	default:
		return &Mismatch{CaseID: c.CaseID, Expected: exp, Actual: actual, Reason: fmt.Sprintf("unknown expected outcome %q", exp.Outcome)}
	}
	if len(exp.ResponseBody) > 0 && string(exp.ResponseBody) != string(actual.ResponseBody) {
		return &Mismatch{CaseID: c.CaseID, Expected: exp, Actual: actual, Reason: "response_body mismatch"}
	}
	return nil
}
