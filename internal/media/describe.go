package media

import "context"

// ImageDescriber describes the visual content of an image attachment.
type ImageDescriber interface {
	Describe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// AudioTranscriber transcribes spoken audio to text.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// VideoSummarizer summarizes a video attachment's content.
type VideoSummarizer interface {
	Summarize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Providers bundles the three multimodal capabilities the agent loop's
// attachment path can call. Any of them may be nil; a nil provider for an
// attachment's kind is reported as ReasonUnsupportedAttachmentType rather
// than attempted.
type Providers struct {
	Image ImageDescriber
	Audio AudioTranscriber
	Video VideoSummarizer
}

// Outcome is the result of running an admitted attachment through its
// matching provider.
type Outcome struct {
	Reason ReasonCode
	Text   string
}

// Process runs att's bytes through the provider matching its MIME kind and
// returns the matching success reason code (ReasonImageDescribed,
// ReasonAudioTranscribed, ReasonVideoSummarized) with the provider's text,
// or ReasonProviderError if the provider call fails.
func (p Providers) Process(ctx context.Context, att Attachment, data []byte) Outcome {
	switch KindFromMIME(att.MIMEType) {
	case KindImage:
		if p.Image == nil {
			return Outcome{Reason: ReasonUnsupportedAttachmentType}
		}
		text, err := p.Image.Describe(ctx, data, att.MIMEType)
		if err != nil {
			return Outcome{Reason: ReasonProviderError}
		}
		return Outcome{Reason: ReasonImageDescribed, Text: text}
	case KindAudio:
		if p.Audio == nil {
			return Outcome{Reason: ReasonUnsupportedAttachmentType}
		}
		text, err := p.Audio.Transcribe(ctx, data, att.MIMEType)
		if err != nil {
			return Outcome{Reason: ReasonProviderError}
		}
		return Outcome{Reason: ReasonAudioTranscribed, Text: text}
	case KindVideo:
		if p.Video == nil {
			return Outcome{Reason: ReasonUnsupportedAttachmentType}
		}
		text, err := p.Video.Summarize(ctx, data, att.MIMEType)
		if err != nil {
			return Outcome{Reason: ReasonProviderError}
		}
		return Outcome{Reason: ReasonVideoSummarized, Text: text}
	default:
		return Outcome{Reason: ReasonUnsupportedAttachmentType}
	}
}
