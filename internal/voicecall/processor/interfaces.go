package processor

import (
	"context"

	"voice-server/internal/callsession"
	"voice-server/internal/clients/telnyx"
)

// TelephonyClient defines the provider commands the processor issues.
type TelephonyClient interface {
	// CreateCall dials an outbound call and returns its call control ID.
	CreateCall(ctx context.Context, params telnyx.CreateCallParams) (string, error)

	// AnswerCall answers the call; already-answered is not an error.
	AnswerCall(ctx context.Context, callControlID string) error

	// PlayAudio commands playback of a network-reachable audio URL.
	PlayAudio(ctx context.Context, callControlID, audioURL string) error

	// HangupCall tears down the call.
	HangupCall(ctx context.Context, callControlID string) error
}

// Synthesizer converts text to a staged audio artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (callsession.AudioArtifact, error)
}

// Recognizer transcribes caller audio.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte) (string, error)
}

// Completer generates a spoken reply for a transcript.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
