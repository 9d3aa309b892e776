// Package channelstore implements the per-(transport, channel_id) JSONL
// log/context/artifact directory.
package channelstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tauhq/tau/internal/atomicfile"
	"github.com/tauhq/tau/pkg/tau"
)

type schemaDoc struct {
	SchemaVersion int    `json:"schema_version"`
	Transport     string `json:"transport"`
	ChannelID     string `json:"channel_id"`
}

const currentSchemaVersion = 1

// Store is one channel's on-disk directory.
type Store struct {
	dir string
	ref tau.ChannelRef
}

func channelDir(base string, ref tau.ChannelRef) string {
	return filepath.Join(append([]string{base}, ref.Dir()...)...)
}

// Open validates an existing schema.json at base/<ref.Dir()> or
// materializes a fresh layout (including a legacy directory with no
// schema.json, which is adopted in place).
func Open(base string, ref tau.ChannelRef) (*Store, error) {
	dir := channelDir(base, ref)
	if err := os.MkdirAll(filepath.Join(dir, "attachments"), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, "artifacts"), 0o755); err != nil {
		return nil, err
	}
	schemaPath := filepath.Join(dir, "schema.json")
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		doc := schemaDoc{SchemaVersion: currentSchemaVersion, Transport: ref.Transport, ChannelID: ref.ChannelID}
		data, _ := json.MarshalIndent(doc, "", "  ")
		if err := atomicfile.WriteFileAtomic(schemaPath, data, 0o644); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, err
		}
		var doc schemaDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("channelstore: invalid schema.json: %w", err)
		}
		if doc.SchemaVersion != currentSchemaVersion {
			return nil, fmt.Errorf("channelstore: unsupported schema_version %d", doc.SchemaVersion)
		}
	}
	return &Store{dir: dir, ref: ref}, nil
}

func (s *Store) logPath() string     { return filepath.Join(s.dir, "log.jsonl") }
func (s *Store) contextPath() string { return filepath.Join(s.dir, "context.jsonl") }

// AppendLogEntry appends one JSONL line to log.jsonl.
func (s *Store) AppendLogEntry(e tau.ChannelLogEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return atomicfile.AppendLine(s.logPath(), line)
}

// AppendContextEntry appends one JSONL line to context.jsonl.
func (s *Store) AppendContextEntry(m tau.Message) error {
	line, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return atomicfile.AppendLine(s.contextPath(), line)
}

// SyncContextFromMessages rewrites context.jsonl from a Message slice,
// skipping empty-text messages, preserving order.
func (s *Store) SyncContextFromMessages(msgs []tau.Message) error {
	var b strings.Builder
	for _, m := range msgs {
		if strings.TrimSpace(m.TextContent()) == "" {
			continue
		}
		line, err := json.Marshal(m)
		if err != nil {
			return err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return atomicfile.WriteFileAtomic(s.contextPath(), []byte(b.String()), 0o644)
}

// CompactContext retains the last maxRecords lines of context.jsonl,
// rewriting atomically.
func (s *Store) CompactContext(maxRecords int) error {
	lines, err := readLines(s.contextPath())
	if err != nil {
		return err
	}
	if len(lines) > maxRecords {
		lines = lines[len(lines)-maxRecords:]
	}
	return atomicfile.WriteFileAtomic(s.contextPath(), []byte(joinLines(lines)), 0o644)
}

// InspectResult reports line validity without mutating anything.
type InspectResult struct {
	Valid   int
	Invalid int
}

// Inspect counts valid/invalid JSONL lines in log.jsonl.
func (s *Store) Inspect() (InspectResult, error) {
	return inspectFile(s.logPath())
}

func inspectFile(path string) (InspectResult, error) {
	lines, err := readLines(path)
	if err != nil {
		return InspectResult{}, err
	}
	var res InspectResult
	for _, l := range lines {
		if json.Valid([]byte(l)) {
			res.Valid++
		} else {
			res.Invalid++
		}
	}
	return res, nil
}

// Repair moves invalid JSONL lines in log.jsonl to a timestamped
// ".corrupt" sidecar and rewrites the valid tail.
func (s *Store) Repair(nowUnixMs int64) error {
	return repairFile(s.logPath(), nowUnixMs)
}

func repairFile(path string, nowUnixMs int64) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}
	var valid, invalid []string
	for _, l := range lines {
		if json.Valid([]byte(l)) {
			valid = append(valid, l)
		} else {
			invalid = append(invalid, l)
		}
	}
	if len(invalid) > 0 {
		corruptPath := fmt.Sprintf("%s.%d.corrupt", path, nowUnixMs)
		if err := atomicfile.WriteFileAtomic(corruptPath, []byte(joinLines(invalid)), 0o644); err != nil {
			return err
		}
	}
	return atomicfile.WriteFileAtomic(path, []byte(joinLines(valid)), 0o644)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// WriteTextArtifact writes a content-addressed artifact under
// artifacts/<run_id>/<kind>.<format> and appends an index entry.
func (s *Store) WriteTextArtifact(runID, kind, visibility string, ttlDays *int, format, body string) (string, error) {
	artifactDir := filepath.Join(s.dir, "artifacts", runID)
	path := filepath.Join(artifactDir, fmt.Sprintf("%s.%s", kind, format))
	if err := atomicfile.WriteFileAtomic(path, []byte(body), 0o644); err != nil {
		return "", err
	}
	indexPath := filepath.Join(s.dir, "artifacts", "index.jsonl")
	entry := map[string]any{
		"run_id":     runID,
		"kind":       kind,
		"visibility": visibility,
		"format":     format,
		"path":       path,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if ttlDays != nil {
		entry["ttl_days"] = *ttlDays
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	if err := atomicfile.AppendLine(indexPath, line); err != nil {
		return "", err
	}
	return path, nil
}
