package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"voice-server/internal/callsession"
	"voice-server/internal/clients/telnyx"
	"voice-server/internal/observability"
)

// Provider webhook event types this service reacts to.
const (
	EventCallInitiated  = "call.initiated"
	EventCallAnswered   = "call.answered"
	EventCallHangup     = "call.hangup"
	EventRecordingSaved = "call.recording.saved"
)

// Event is a normalized provider lifecycle notification.
type Event struct {
	Type          string
	CallControlID string
	RecordingURL  string
}

// VoiceCallProcessor orchestrates outbound calls: it initiates them, stages
// synthesized audio in the session store, and drives state transitions from
// provider webhook events. The store is the only state shared between the
// two entry points.
type VoiceCallProcessor struct {
	telephony     TelephonyClient
	speech        Synthesizer
	recognizer    Recognizer
	completer     Completer
	store         *callsession.Store
	logger        *observability.Logger
	connectionID  string
	fromNumber    string
	publicBaseURL string

	// fetchRecording downloads a provider-hosted recording, replaced in tests.
	fetchRecording func(ctx context.Context, url string) ([]byte, error)
}

// Config carries the provider identifiers the processor dials with.
type Config struct {
	ConnectionID  string
	FromNumber    string
	PublicBaseURL string
}

// New creates a new VoiceCallProcessor.
func New(telephony TelephonyClient, speech Synthesizer, recognizer Recognizer, completer Completer,
	store *callsession.Store, cfg Config, logger *observability.Logger) *VoiceCallProcessor {
	p := &VoiceCallProcessor{
		telephony:     telephony,
		speech:        speech,
		recognizer:    recognizer,
		completer:     completer,
		store:         store,
		logger:        logger,
		connectionID:  cfg.ConnectionID,
		fromNumber:    cfg.FromNumber,
		publicBaseURL: cfg.PublicBaseURL,
	}
	p.fetchRecording = p.downloadRecording
	return p
}

// InitiateCall dials an outbound call and stages the synthesized message for
// playback once the provider reports the call initiated.
func (p *VoiceCallProcessor) InitiateCall(ctx context.Context, to, message string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("phone_number is required: %w", ErrInvalidRequest)
	}
	if message == "" {
		return "", fmt.Errorf("message is required: %w", ErrInvalidRequest)
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "to", Value: to})

	callControlID, err := p.telephony.CreateCall(ctx, telnyx.CreateCallParams{
		To:           to,
		From:         p.fromNumber,
		ConnectionID: p.connectionID,
	})
	if err != nil {
		// No audio resource has been allocated at this point.
		return "", &ProviderError{Err: err}
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "call_control_id", Value: callControlID})
	p.logger.Info(ctx, "Call initiated")

	artifact, err := p.speech.Synthesize(ctx, message)
	if err != nil {
		// The call already exists at the provider; surface that distinctly so
		// the operator knows playback will not happen.
		partial := &PartialFailure{CallControlID: callControlID, Err: err}
		p.logger.Error(ctx, "Call created but synthesis failed", partial)
		return callControlID, partial
	}

	p.store.Put(callControlID, to, p.fromNumber, artifact)
	return callControlID, nil
}

// Hangup tears down an in-flight call and evicts its session.
func (p *VoiceCallProcessor) Hangup(ctx context.Context, callControlID string) error {
	if _, err := p.store.GetSession(callControlID); err != nil {
		return err
	}
	if err := p.telephony.HangupCall(ctx, callControlID); err != nil {
		return &ProviderError{Err: err}
	}
	p.store.Evict(callControlID)
	return nil
}

// HandleWebhookEvent drives the call state machine from a provider event.
// Handlers are idempotent under at-least-once delivery, and failures are
// logged rather than surfaced so the provider's delivery still succeeds and
// no retry storm is triggered.
func (p *VoiceCallProcessor) HandleWebhookEvent(ctx context.Context, event Event) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "event_type", Value: event.Type},
		observability.Field{Key: "call_control_id", Value: event.CallControlID},
	)

	switch event.Type {
	case EventCallInitiated:
		p.handleCallInitiated(ctx, event)
	case EventCallAnswered:
		p.handleCallAnswered(ctx, event)
	case EventCallHangup:
		p.handleCallHangup(ctx, event)
	case EventRecordingSaved:
		p.handleRecordingSaved(ctx, event)
	default:
		p.logger.Info(ctx, "Ignoring unrecognized webhook event type")
	}
}

// handleCallInitiated answers the call and commands playback of the staged
// artifact. A missing artifact is the race where the webhook beat the
// initiator's registration, or a provider retry after expiry; both proceed
// without audio.
func (p *VoiceCallProcessor) handleCallInitiated(ctx context.Context, event Event) {
	if err := p.telephony.AnswerCall(ctx, event.CallControlID); err != nil {
		p.logger.Error(ctx, "Failed to answer call", err)
		return
	}
	p.logger.Info(ctx, "Call answered")

	if err := p.store.SetState(event.CallControlID, callsession.StateInitiated); err != nil {
		p.logger.Warn(ctx, "No session recorded for initiated call")
	}

	artifact, err := p.store.Get(event.CallControlID)
	if errors.Is(err, callsession.ErrNotFound) {
		p.logger.Warn(ctx, "No audio staged for call, proceeding without playback")
		return
	}

	if err := p.telephony.PlayAudio(ctx, event.CallControlID, p.artifactURL(artifact)); err != nil {
		p.logger.Error(ctx, "Failed to command playback", err)
		return
	}
	p.store.SetState(event.CallControlID, callsession.StatePlaying)
	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "artifact_id", Value: artifact.ID.String()},
	), "Playback commanded")
}

func (p *VoiceCallProcessor) handleCallAnswered(ctx context.Context, event Event) {
	if err := p.store.SetState(event.CallControlID, callsession.StateAnswered); err != nil {
		p.logger.Warn(ctx, "Answered event for unknown call")
		return
	}
	p.logger.Info(ctx, "Call answered by remote party")
}

func (p *VoiceCallProcessor) handleCallHangup(ctx context.Context, event Event) {
	session, err := p.store.GetSession(event.CallControlID)
	if err != nil {
		p.logger.Warn(ctx, "Hangup event for unknown call")
		return
	}
	p.store.Evict(event.CallControlID)
	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "call_duration_s", Value: time.Since(session.CreatedAt).Seconds()},
	), "Call hung up, session evicted")
}

// handleRecordingSaved runs one conversational turn: transcribe the caller,
// generate a reply, synthesize it, and play it back on the same call.
func (p *VoiceCallProcessor) handleRecordingSaved(ctx context.Context, event Event) {
	if event.RecordingURL == "" {
		p.logger.Warn(ctx, "Recording event without a recording URL")
		return
	}

	session, err := p.store.GetSession(event.CallControlID)
	if err != nil {
		p.logger.Warn(ctx, "Recording event for unknown call")
		return
	}

	wav, err := p.fetchRecording(ctx, event.RecordingURL)
	if err != nil {
		p.logger.Error(ctx, "Failed to fetch call recording", err)
		return
	}

	transcript, err := p.recognizer.Recognize(ctx, wav)
	if err != nil {
		p.logger.Error(ctx, "Failed to transcribe caller audio", err)
		return
	}

	reply, err := p.completer.Complete(ctx, transcript)
	if err != nil {
		p.logger.Error(ctx, "Failed to generate reply", err)
		return
	}

	artifact, err := p.speech.Synthesize(ctx, reply)
	if err != nil {
		p.logger.Error(ctx, "Failed to synthesize reply", err)
		return
	}

	p.store.Put(event.CallControlID, session.To, session.From, artifact)
	if err := p.telephony.PlayAudio(ctx, event.CallControlID, p.artifactURL(artifact)); err != nil {
		p.logger.Error(ctx, "Failed to command reply playback", err)
		return
	}
	p.store.SetState(event.CallControlID, callsession.StatePlaying)
	p.logger.Info(ctx, "Conversational reply playing")
}

// artifactURL builds the provider-fetchable URL for a staged artifact.
func (p *VoiceCallProcessor) artifactURL(artifact callsession.AudioArtifact) string {
	return fmt.Sprintf("%s/audio/%s.wav", p.publicBaseURL, artifact.ID.String())
}

func (p *VoiceCallProcessor) downloadRecording(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recording fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
