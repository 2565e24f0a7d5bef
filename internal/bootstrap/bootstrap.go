package bootstrap

import (
	"context"
	"fmt"

	"voice-server/internal/callsession"
	"voice-server/internal/clients/azurespeech"
	"voice-server/internal/clients/telnyx"
	completionProcessor "voice-server/internal/completion/processor"
	"voice-server/internal/config"
	"voice-server/internal/observability"
	speechProcessor "voice-server/internal/speech/processor"
	voiceCallHandler "voice-server/internal/voicecall/handler"
	voiceCallProcessor "voice-server/internal/voicecall/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	Logger           *observability.Logger
	SessionStore     *callsession.Store
	VoiceProcessor   *voiceCallProcessor.VoiceCallProcessor
	VoiceCallHandler voiceCallHandler.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	telnyxClient, err := telnyx.NewClient(cfg.Telnyx.APIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telnyx client: %w", err)
	}

	speechClient, err := azurespeech.NewClient(cfg.Speech.Key, cfg.Speech.Region, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize speech client: %w", err)
	}

	chatClient, err := completionProcessor.NewOpenAIChatClient(cfg.Services.OpenAIAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat client: %w", err)
	}

	speech := speechProcessor.New(speechClient, logger)
	completion := completionProcessor.New(chatClient, logger)

	deps.SessionStore = callsession.New(logger)
	deps.SessionStore.StartSweeper(ctx, cfg.Session.SweepInterval, cfg.Session.MaxAge)

	deps.VoiceProcessor = voiceCallProcessor.New(
		telnyxClient,
		speech,
		speech,
		completion,
		deps.SessionStore,
		voiceCallProcessor.Config{
			ConnectionID:  cfg.Telnyx.ConnectionID,
			FromNumber:    cfg.Telnyx.PhoneNumber,
			PublicBaseURL: cfg.Services.PublicBaseURL,
		},
		logger,
	)
	deps.VoiceCallHandler = voiceCallHandler.New(deps.VoiceProcessor, deps.SessionStore, logger)

	return deps, nil
}
