package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tauhq/tau/internal/envelope"
	"github.com/tauhq/tau/internal/fixtures"
	"github.com/tauhq/tau/pkg/tau"
)

// buildFixturesCmd groups the contract-fixture runners. Exactly one
// --domain runner is active per invocation, mirroring the CLI surface's
// exclusive-flag contract-runner selection.
func buildFixturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Contract-fixture replay runners",
	}
	cmd.AddCommand(buildFixturesRunCmd())
	return cmd
}

func buildFixturesRunCmd() *cobra.Command {
	var (
		fixturePath string
		domain      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a fixture file's cases against a domain's decision table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixturePath == "" {
				return usageErrorf("fixtures run: --fixture is required")
			}
			executor, err := executorForDomain(domain)
			if err != nil {
				return usageErrorf("fixtures run: %w", err)
			}
			data, err := os.ReadFile(fixturePath)
			if err != nil {
				return usageErrorf("fixtures run: %w", err)
			}
			runner := fixtures.NewRunner(executor)
			summary, err := runner.Run(data)
			if err != nil {
				return fmt.Errorf("fixtures run: %w", err)
			}
			if err := printJSON(cmd, summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("fixtures run: %d of %d cases failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "Path to the fixture JSON file")
	cmd.Flags().StringVar(&domain, "domain", "", "Contract domain: envelope")
	cobra.CheckErr(cmd.MarkFlagRequired("domain"))
	return cmd
}

func executorForDomain(domain string) (fixtures.CaseExecutor, error) {
	switch domain {
	case "envelope":
		return envelopeCaseExecutor, nil
	default:
		return nil, fmt.Errorf("unknown fixture domain %q", domain)
	}
}

// envelopeCase is the input shape for the envelope fixture domain: a
// self-contained decision-table case carrying its own trust roots and
// replay history, so each case is independent of on-disk state.
type envelopeCase struct {
	Envelope    *tau.SignedEnvelope  `json:"envelope"`
	Event       envelope.EventContext `json:"event"`
	Config      envelope.Config       `json:"config"`
	TrustRoots  []tau.TrustedRoot     `json:"trust_roots"`
	SeenNonces  map[string]int64      `json:"seen_nonces"`
	NowUnixMs   int64                 `json:"now_unix_ms"`
}

type memTrustStore struct{ roots []tau.TrustedRoot }

func (m memTrustStore) Find(keyID string) (tau.TrustedRoot, bool, bool) {
	for _, r := range m.roots {
		if r.ID == keyID {
			return r, true, true
		}
	}
	return tau.TrustedRoot{}, false, true
}

type memReplayGuard struct{ seen map[string]int64 }

func replayKey(keyID, nonce string) string { return keyID + "\x00" + nonce }

func (m *memReplayGuard) Check(keyID, nonce string) (int64, bool, bool) {
	ts, ok := m.seen[replayKey(keyID, nonce)]
	return ts, ok, true
}

func (m *memReplayGuard) Record(keyID, nonce string, nowMs int64) bool {
	m.seen[replayKey(keyID, nonce)] = nowMs
	return true
}

func envelopeCaseExecutor(input json.RawMessage) fixtures.ReplayResult {
	var c envelopeCase
	if err := json.Unmarshal(input, &c); err != nil {
		return fixtures.ReplayResult{Step: "parse_input", StatusCode: 400, ErrorCode: "invalid_payload"}
	}
	nowMs := c.NowUnixMs
	if nowMs == 0 {
		nowMs = time.Now().UnixMilli()
	}
	guard := &memReplayGuard{seen: c.SeenNonces}
	if guard.seen == nil {
		guard.seen = map[string]int64{}
	}
	result := envelope.Evaluate(c.Config, c.Envelope, c.Event, nowMs, memTrustStore{roots: c.TrustRoots}, guard)

	statusCode := 200
	if !result.Allowed() && result.Reason != envelope.Missing {
		statusCode = 403
	}
	body, _ := json.Marshal(result)
	return fixtures.ReplayResult{Step: "evaluate", StatusCode: statusCode, ErrorCode: string(result.Reason), ResponseBody: body}
}
