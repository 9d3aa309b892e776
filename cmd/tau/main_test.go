package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "session", "envelope", "router", "dispatch", "fixtures"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestSessionSubcommandsRegistered(t *testing.T) {
	cmd := buildSessionCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"export", "import", "merge", "repair"} {
		if !names[name] {
			t.Fatalf("expected session subcommand %q to be registered", name)
		}
	}
}

func TestUsageErrorUnwraps(t *testing.T) {
	base := usageErrorf("bad flag %q", "--foo")
	if base.Error() != `bad flag "--foo"` {
		t.Fatalf("Error() = %q", base.Error())
	}
}
