package channelstore

import (
	"os"
	"testing"

	"github.com/tauhq/tau/pkg/tau"
)

func TestOpenCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	ref := tau.ChannelRef{Transport: "discord", ChannelID: "ops-room"}
	s, err := Open(dir, ref)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AppendLogEntry(tau.ChannelLogEntry{TimestampUnixMs: 1, Direction: tau.DirectionInbound, Source: "test", Payload: map[string]any{"x": 1}}); err != nil {
		t.Fatal(err)
	}
	res, err := s.Inspect()
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid != 1 || res.Invalid != 0 {
		t.Fatalf("got %+v", res)
	}
}

func TestRepairMovesInvalidLines(t *testing.T) {
	dir := t.TempDir()
	ref := tau.ChannelRef{Transport: "t", ChannelID: "c"}
	s, err := Open(dir, ref)
	if err != nil {
		t.Fatal(err)
	}
	s.AppendLogEntry(tau.ChannelLogEntry{TimestampUnixMs: 1, Direction: tau.DirectionInbound, Source: "x", Payload: map[string]any{}})
	// corrupt the log by hand
	appendRaw(t, s.logPath(), "{not json")

	before, _ := s.Inspect()
	if before.Invalid != 1 {
		t.Fatalf("expected 1 invalid line before repair, got %+v", before)
	}
	if err := s.Repair(1234); err != nil {
		t.Fatal(err)
	}
	after, err := s.Inspect()
	if err != nil {
		t.Fatal(err)
	}
	if after.Invalid != 0 || after.Valid != 1 {
		t.Fatalf("got %+v after repair", after)
	}
}

func appendRaw(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatal(err)
	}
}
