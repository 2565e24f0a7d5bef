package processor

import (
	"context"
	"fmt"
	"time"

	"voice-server/internal/callsession"
	"voice-server/internal/observability"

	"github.com/google/uuid"
)

// SynthesisError indicates the speech backend could not produce usable audio.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// RecognitionError indicates the speech backend could not produce a
// confident transcript.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("speech recognition failed: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// SpeechClient is the backing speech service, text to audio and back.
type SpeechClient interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Recognize(ctx context.Context, wav []byte) (string, error)
}

const retryBackoff = 500 * time.Millisecond

// SpeechProcessor bridges the speech backend behind two pure functions,
// retrying transient failures once before surfacing a typed error.
type SpeechProcessor struct {
	client SpeechClient
	logger *observability.Logger
}

// New creates a new SpeechProcessor.
func New(client SpeechClient, logger *observability.Logger) *SpeechProcessor {
	return &SpeechProcessor{
		client: client,
		logger: logger,
	}
}

// Synthesize converts text to a staged audio artifact.
func (p *SpeechProcessor) Synthesize(ctx context.Context, text string) (callsession.AudioArtifact, error) {
	if text == "" {
		return callsession.AudioArtifact{}, &SynthesisError{Err: fmt.Errorf("text is empty")}
	}

	wav, err := p.client.Synthesize(ctx, text)
	if err != nil {
		p.logger.WarnWithError(ctx, "Speech synthesis failed, retrying once", err)
		time.Sleep(retryBackoff)
		wav, err = p.client.Synthesize(ctx, text)
	}
	if err != nil {
		return callsession.AudioArtifact{}, &SynthesisError{Err: err}
	}

	artifact := callsession.AudioArtifact{
		ID:        uuid.New(),
		Text:      text,
		WAV:       wav,
		CreatedAt: time.Now(),
	}
	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "artifact_id", Value: artifact.ID.String()},
		observability.Field{Key: "audio_bytes", Value: len(wav)},
	), "Speech synthesized")
	return artifact, nil
}

// Recognize transcribes caller audio. It never returns an empty transcript
// as success.
func (p *SpeechProcessor) Recognize(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", &RecognitionError{Err: fmt.Errorf("audio is empty")}
	}

	text, err := p.client.Recognize(ctx, wav)
	if err != nil {
		p.logger.WarnWithError(ctx, "Speech recognition failed, retrying once", err)
		time.Sleep(retryBackoff)
		text, err = p.client.Recognize(ctx, wav)
	}
	if err != nil {
		return "", &RecognitionError{Err: err}
	}
	return text, nil
}
