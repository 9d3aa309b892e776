package media

import "sync"

// Policy configures what the gate accepts.
type Policy struct {
	// Enabled disables media understanding entirely: every attachment is
	// rejected with ReasonUnderstandingDisabled before any other check.
	Enabled bool
	// MaxAttachmentsPerTurn bounds how many attachments one turn may carry.
	// Zero means unlimited.
	MaxAttachmentsPerTurn int
	// SupportedKinds is the set of Kind values accepted; empty means all
	// kinds except KindUnknown are accepted.
	SupportedKinds []Kind
}

func (p Policy) supports(k Kind) bool {
	if k == KindUnknown {
		return false
	}
	if len(p.SupportedKinds) == 0 {
		return true
	}
	for _, allowed := range p.SupportedKinds {
		if allowed == k {
			return true
		}
	}
	return false
}

// Gate tracks, per session, the set of content hashes already seen and the
// count of attachments admitted this turn, so a caller can admit or reject
// each attachment in arrival order.
type Gate struct {
	policy Policy

	mu      sync.Mutex
	seen    map[string]map[string]bool // session key -> content hash -> seen
	counts  map[string]int             // session key -> admitted count this turn
}

// NewGate builds a Gate over policy.
func NewGate(policy Policy) *Gate {
	return &Gate{
		policy: policy,
		seen:   make(map[string]map[string]bool),
		counts: make(map[string]int),
	}
}

// ResetTurn clears the per-turn attachment count for sessionKey; duplicate
// detection persists across turns (ResetSession clears that).
func (g *Gate) ResetTurn(sessionKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.counts, sessionKey)
}

// ResetSession forgets everything tracked for sessionKey.
func (g *Gate) ResetSession(sessionKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, sessionKey)
	delete(g.counts, sessionKey)
}

// Admit evaluates attachment against the gate's policy and this session's
// history. On acceptance it records the attachment's content hash and
// increments the turn count. The returned ok is false whenever a non-empty
// ReasonCode is returned.
func (g *Gate) Admit(sessionKey string, att Attachment) (ReasonCode, bool) {
	if !g.policy.Enabled {
		return ReasonUnderstandingDisabled, false
	}

	kind := KindFromMIME(att.MIMEType)
	if !g.policy.supports(kind) {
		return ReasonUnsupportedAttachmentType, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.policy.MaxAttachmentsPerTurn > 0 && g.counts[sessionKey] >= g.policy.MaxAttachmentsPerTurn {
		return ReasonAttachmentLimitExceeded, false
	}

	if att.ContentHash != "" {
		sessionSeen := g.seen[sessionKey]
		if sessionSeen == nil {
			sessionSeen = make(map[string]bool)
			g.seen[sessionKey] = sessionSeen
		}
		if sessionSeen[att.ContentHash] {
			return ReasonDuplicateAttachment, false
		}
		sessionSeen[att.ContentHash] = true
	}

	g.counts[sessionKey]++
	return "", true
}
