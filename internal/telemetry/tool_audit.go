// Package telemetry implements the two JSONL loggers that consume an
// agent loop's event stream: a tool-audit log (one line per tool
// start/end, sizes only, no content) and a prompt telemetry log (one
// record per completed AgentStart→AgentEnd window, with saturating
// token/cost rollups and a secret-leak pattern-class histogram), plus the
// Prometheus counters/histograms mirrored alongside them.
package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tauhq/tau/internal/agentloop"
	"github.com/tauhq/tau/internal/atomicfile"
)

// ToolAuditLogger appends one JSONL line per tool_execution_start/end
// event. Durations are measured against the start event's arrival time at
// the logger, independent of wall-clock, so a clock adjustment mid-run
// cannot produce a negative duration.
type ToolAuditLogger struct {
	path   string
	mu     sync.Mutex
	starts map[string]time.Time
}

// OpenToolAuditLogger opens (creating as needed) the JSONL file at path.
func OpenToolAuditLogger(path string) (*ToolAuditLogger, error) {
	return &ToolAuditLogger{path: path, starts: make(map[string]time.Time)}, nil
}

type toolAuditRecord struct {
	TimestampUnixMs int64  `json:"timestamp_unix_ms"`
	Event           string `json:"event"`
	ToolCallID      string `json:"tool_call_id"`
	ToolName        string `json:"tool_name"`
	ArgumentsBytes  *int   `json:"arguments_bytes,omitempty"`
	DurationMs      *int64 `json:"duration_ms,omitempty"`
	IsError         *bool  `json:"is_error,omitempty"`
	ResultBytes     *int   `json:"result_bytes,omitempty"`
}

// LogEvent appends the corresponding audit record for a tool start/end
// event; every other event type is a silent no-op.
func (l *ToolAuditLogger) LogEvent(e agentloop.Event, nowUnixMs int64) error {
	var record *toolAuditRecord

	l.mu.Lock()
	switch e.Type {
	case agentloop.EventToolExecutionStart:
		p := e.ToolStart
		l.starts[p.ToolCallID] = time.UnixMilli(nowUnixMs)
		argsBytes := p.ArgumentsLen
		record = &toolAuditRecord{
			TimestampUnixMs: nowUnixMs,
			Event:           "tool_execution_start",
			ToolCallID:      p.ToolCallID,
			ToolName:        p.ToolName,
			ArgumentsBytes:  &argsBytes,
		}
	case agentloop.EventToolExecutionEnd:
		p := e.ToolEnd
		var durationMs *int64
		if started, ok := l.starts[p.ToolCallID]; ok {
			d := time.UnixMilli(nowUnixMs).Sub(started).Milliseconds()
			durationMs = &d
			delete(l.starts, p.ToolCallID)
		}
		isError := p.Result.IsError
		resultBytes := p.Result.ResultBytes
		record = &toolAuditRecord{
			TimestampUnixMs: nowUnixMs,
			Event:           "tool_execution_end",
			ToolCallID:      p.ToolCallID,
			ToolName:        p.ToolName,
			DurationMs:      durationMs,
			IsError:         &isError,
			ResultBytes:     &resultBytes,
		}
	}
	l.mu.Unlock()

	if record == nil {
		return nil
	}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return atomicfile.AppendLine(l.path, line)
}
