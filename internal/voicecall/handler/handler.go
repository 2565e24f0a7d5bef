package handler

import (
	"errors"
	"net/http"
	"strings"

	"voice-server/internal/apierrors"
	"voice-server/internal/callsession"
	"voice-server/internal/observability"
	"voice-server/internal/voicecall/processor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the call orchestration endpoints.
type Handler struct {
	voiceProcessor *processor.VoiceCallProcessor
	store          *callsession.Store
	logger         *observability.Logger
}

// New creates a new Handler.
func New(voiceProcessor *processor.VoiceCallProcessor, store *callsession.Store,
	logger *observability.Logger) Handler {
	return Handler{
		voiceProcessor: voiceProcessor,
		store:          store,
		logger:         logger,
	}
}

// InitiateCallRequest is the body of POST /initiate_call.
type InitiateCallRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Message     string `json:"message" binding:"required"`
}

// InitiateCallResponse carries the provider-assigned call ID.
type InitiateCallResponse struct {
	CallID string `json:"call_id"`
}

// HandleInitiateCall handles POST /initiate_call.
func (h *Handler) HandleInitiateCall(c *gin.Context) {
	ctx := c.Request.Context()

	var req InitiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", "phone_number and message are required")
		return
	}

	callID, err := h.voiceProcessor.InitiateCall(ctx, req.PhoneNumber, req.Message)
	if err != nil {
		h.handleInitiateError(c, callID, err)
		return
	}

	c.JSON(http.StatusOK, InitiateCallResponse{CallID: callID})
}

func (h *Handler) handleInitiateError(c *gin.Context, callID string, err error) {
	var partial *processor.PartialFailure
	var providerErr *processor.ProviderError
	switch {
	case errors.Is(err, processor.ErrInvalidRequest):
		apierrors.BadRequest(c, "INVALID_REQUEST", err.Error())
	case errors.As(err, &partial):
		apierrors.PartialFailure(c, partial.CallControlID,
			"call created but audio unavailable", err)
	case errors.As(err, &providerErr):
		apierrors.BadGateway(c, "PROVIDER_ERROR", err.Error(), err)
	default:
		apierrors.InternalError(c, err)
	}
}

// webhookEnvelope is the provider's webhook payload shape.
type webhookEnvelope struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			CallControlID string `json:"call_control_id"`
			RecordingURLs struct {
				WAV string `json:"wav"`
			} `json:"recording_urls"`
		} `json:"payload"`
	} `json:"data"`
}

// HandleWebhook handles POST /webhook. Every delivery is acknowledged with a
// 204 unless the envelope itself does not parse; provider retries of already
// processed events land on idempotent handlers.
func (h *Handler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	var envelope webhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		h.logger.Error(ctx, "Failed to parse webhook envelope", err)
		apierrors.BadRequest(c, "MALFORMED_ENVELOPE", "could not parse webhook envelope")
		return
	}

	if envelope.Data.EventType == "" || envelope.Data.Payload.CallControlID == "" {
		h.logger.Warn(observability.WithFields(ctx,
			observability.Field{Key: "event_type", Value: envelope.Data.EventType},
		), "Webhook event missing type or call control ID, ignoring")
		c.Status(http.StatusNoContent)
		return
	}

	h.voiceProcessor.HandleWebhookEvent(ctx, processor.Event{
		Type:          envelope.Data.EventType,
		CallControlID: envelope.Data.Payload.CallControlID,
		RecordingURL:  envelope.Data.Payload.RecordingURLs.WAV,
	})

	c.Status(http.StatusNoContent)
}

// HandleAudio handles GET /audio/:artifact. The telephony provider fetches
// staged clips from here, so the path must stay stable for the lifetime of
// the owning call.
func (h *Handler) HandleAudio(c *gin.Context) {
	ctx := c.Request.Context()

	name := strings.TrimSuffix(c.Param("artifact"), ".wav")
	artifactID, err := uuid.Parse(name)
	if err != nil {
		apierrors.BadRequest(c, "INVALID_ARTIFACT_ID", "artifact ID must be a UUID")
		return
	}

	artifact, err := h.store.GetArtifact(artifactID)
	if err != nil {
		h.logger.Warn(observability.WithFields(ctx,
			observability.Field{Key: "artifact_id", Value: artifactID.String()},
		), "Audio requested for unknown artifact")
		apierrors.NotFound(c, "audio artifact not found")
		return
	}

	c.Data(http.StatusOK, "audio/wav", artifact.WAV)
}

// HandleHangup handles POST /hangup/:call_control_id.
func (h *Handler) HandleHangup(c *gin.Context) {
	ctx := c.Request.Context()
	callControlID := c.Param("call_control_id")

	err := h.voiceProcessor.Hangup(ctx, callControlID)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, callsession.ErrNotFound):
		apierrors.NotFound(c, "no active call with that ID")
	default:
		apierrors.BadGateway(c, "PROVIDER_ERROR", err.Error(), err)
	}
}
