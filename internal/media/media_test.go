package media

import (
	"context"
	"errors"
	"testing"
)

func TestGateRejectsWhenDisabled(t *testing.T) {
	gate := NewGate(Policy{Enabled: false})
	reason, ok := gate.Admit("session-1", Attachment{MIMEType: "image/png"})
	if ok || reason != ReasonUnderstandingDisabled {
		t.Fatalf("reason=%v ok=%v", reason, ok)
	}
}

func TestGateRejectsUnsupportedKind(t *testing.T) {
	gate := NewGate(Policy{Enabled: true, SupportedKinds: []Kind{KindImage}})
	reason, ok := gate.Admit("session-1", Attachment{MIMEType: "audio/mpeg"})
	if ok || reason != ReasonUnsupportedAttachmentType {
		t.Fatalf("reason=%v ok=%v", reason, ok)
	}
}

func TestGateRejectsDuplicateContentHash(t *testing.T) {
	gate := NewGate(Policy{Enabled: true})
	att := Attachment{MIMEType: "image/png", ContentHash: "hash-1"}

	if _, ok := gate.Admit("session-1", att); !ok {
		t.Fatal("first attachment should be admitted")
	}
	reason, ok := gate.Admit("session-1", att)
	if ok || reason != ReasonDuplicateAttachment {
		t.Fatalf("reason=%v ok=%v", reason, ok)
	}
}

func TestGateEnforcesPerTurnLimit(t *testing.T) {
	gate := NewGate(Policy{Enabled: true, MaxAttachmentsPerTurn: 1})
	if _, ok := gate.Admit("session-1", Attachment{MIMEType: "image/png", ContentHash: "h1"}); !ok {
		t.Fatal("first attachment should be admitted")
	}
	reason, ok := gate.Admit("session-1", Attachment{MIMEType: "image/png", ContentHash: "h2"})
	if ok || reason != ReasonAttachmentLimitExceeded {
		t.Fatalf("reason=%v ok=%v", reason, ok)
	}

	gate.ResetTurn("session-1")
	if _, ok := gate.Admit("session-1", Attachment{MIMEType: "image/png", ContentHash: "h2"}); !ok {
		t.Fatal("attachment should be admitted after turn reset")
	}
}

func TestGateDuplicateDetectionPersistsAcrossTurnReset(t *testing.T) {
	gate := NewGate(Policy{Enabled: true})
	att := Attachment{MIMEType: "image/png", ContentHash: "hash-1"}
	if _, ok := gate.Admit("session-1", att); !ok {
		t.Fatal("first attachment should be admitted")
	}
	gate.ResetTurn("session-1")
	reason, ok := gate.Admit("session-1", att)
	if ok || reason != ReasonDuplicateAttachment {
		t.Fatalf("reason=%v ok=%v, want duplicate after turn reset (not session reset)", reason, ok)
	}

	gate.ResetSession("session-1")
	if _, ok := gate.Admit("session-1", att); !ok {
		t.Fatal("attachment should be admitted after session reset")
	}
}

type stubImageDescriber struct {
	text string
	err  error
}

func (s stubImageDescriber) Describe(ctx context.Context, data []byte, mimeType string) (string, error) {
	return s.text, s.err
}

func TestProvidersProcessReturnsImageDescribedOnSuccess(t *testing.T) {
	providers := Providers{Image: stubImageDescriber{text: "a cat"}}
	outcome := providers.Process(context.Background(), Attachment{MIMEType: "image/png"}, nil)
	if outcome.Reason != ReasonImageDescribed || outcome.Text != "a cat" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestProvidersProcessReturnsProviderErrorOnFailure(t *testing.T) {
	providers := Providers{Image: stubImageDescriber{err: errors.New("boom")}}
	outcome := providers.Process(context.Background(), Attachment{MIMEType: "image/png"}, nil)
	if outcome.Reason != ReasonProviderError {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestProvidersProcessReturnsUnsupportedWhenProviderMissing(t *testing.T) {
	providers := Providers{}
	outcome := providers.Process(context.Background(), Attachment{MIMEType: "video/mp4"}, nil)
	if outcome.Reason != ReasonUnsupportedAttachmentType {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestKindFromMIMEAndMaxBytesForKind(t *testing.T) {
	cases := []struct {
		mime string
		kind Kind
	}{
		{"image/png", KindImage},
		{"audio/mpeg", KindAudio},
		{"video/mp4", KindVideo},
		{"application/pdf", KindDocument},
		{"", KindUnknown},
	}
	for _, c := range cases {
		if got := KindFromMIME(c.mime); got != c.kind {
			t.Errorf("KindFromMIME(%q) = %v, want %v", c.mime, got, c.kind)
		}
	}
	if MaxBytesForKind(KindImage) != MaxImageBytes {
		t.Fatal("image limit mismatch")
	}
}
