package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voice-server/internal/callsession"
	"voice-server/internal/clients/telnyx"
	"voice-server/internal/observability"
	"voice-server/internal/voicecall/processor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTelephony struct {
	createErr     error
	answeredCalls int
	playedURLs    []string
}

func (s *stubTelephony) CreateCall(ctx context.Context, params telnyx.CreateCallParams) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	return "abc123", nil
}

func (s *stubTelephony) AnswerCall(ctx context.Context, callControlID string) error {
	s.answeredCalls++
	return nil
}

func (s *stubTelephony) PlayAudio(ctx context.Context, callControlID, audioURL string) error {
	s.playedURLs = append(s.playedURLs, audioURL)
	return nil
}

func (s *stubTelephony) HangupCall(ctx context.Context, callControlID string) error {
	return nil
}

type stubSynthesizer struct {
	err error
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string) (callsession.AudioArtifact, error) {
	if s.err != nil {
		return callsession.AudioArtifact{}, s.err
	}
	return callsession.AudioArtifact{
		ID:        uuid.New(),
		Text:      text,
		WAV:       []byte("RIFF " + text),
		CreatedAt: time.Now(),
	}, nil
}

type stubRecognizer struct{}

func (s *stubRecognizer) Recognize(ctx context.Context, wav []byte) (string, error) {
	return "transcript", nil
}

type stubCompleter struct{}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return "reply", nil
}

func newTestRouter(telephony *stubTelephony, synth *stubSynthesizer) (*gin.Engine, *callsession.Store) {
	gin.SetMode(gin.TestMode)
	logger := observability.NewLogger()
	store := callsession.New(logger)
	p := processor.New(telephony, synth, &stubRecognizer{}, &stubCompleter{}, store,
		processor.Config{
			ConnectionID:  "conn-1",
			FromNumber:    "+15550000000",
			PublicBaseURL: "https://voice.example.com",
		}, logger)
	h := New(p, store, logger)

	router := gin.New()
	router.POST("/initiate_call", h.HandleInitiateCall)
	router.POST("/webhook", h.HandleWebhook)
	router.GET("/audio/:artifact", h.HandleAudio)
	router.POST("/hangup/:call_control_id", h.HandleHangup)
	return router, store
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func webhookBody(eventType, callControlID string) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"event_type": eventType,
			"payload": map[string]interface{}{
				"call_control_id": callControlID,
			},
		},
	}
}

func TestHandleInitiateCall(t *testing.T) {
	router, store := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := postJSON(router, "/initiate_call", map[string]string{
		"phone_number": "+15551234567",
		"message":      "Hello there",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp InitiateCallResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.CallID)

	artifact, err := store.Get("abc123")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", artifact.Text)
}

func TestHandleInitiateCall_MissingFields(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := postJSON(router, "/initiate_call", map[string]string{
		"phone_number": "+15551234567",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleInitiateCall_ProviderError(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{createErr: fmt.Errorf("upstream down")}, &stubSynthesizer{})

	w := postJSON(router, "/initiate_call", map[string]string{
		"phone_number": "+15551234567",
		"message":      "Hello",
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestHandleInitiateCall_PartialFailure(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{err: fmt.Errorf("tts down")})

	w := postJSON(router, "/initiate_call", map[string]string{
		"phone_number": "+15551234567",
		"message":      "Hello",
	})

	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PARTIAL_FAILURE", resp["code"])
	// The operator must learn the call that was created without audio.
	assert.Equal(t, "abc123", resp["call_id"])
}

func TestHandleWebhook_CallInitiated(t *testing.T) {
	telephony := &stubTelephony{}
	router, _ := newTestRouter(telephony, &stubSynthesizer{})

	postJSON(router, "/initiate_call", map[string]string{
		"phone_number": "+15551234567",
		"message":      "Hello",
	})

	w := postJSON(router, "/webhook", webhookBody("call.initiated", "abc123"))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, telephony.answeredCalls)
	require.Len(t, telephony.playedURLs, 1)
}

func TestHandleWebhook_UnknownCallID(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := postJSON(router, "/webhook", webhookBody("call.hangup", "never-seen"))

	// Unknown call IDs are a normal consequence of provider retries and
	// expiry; the delivery must still succeed.
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleWebhook_UnknownEventType(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := postJSON(router, "/webhook", webhookBody("call.machine.detection.ended", "abc123"))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleWebhook_Hangup(t *testing.T) {
	router, store := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	postJSON(router, "/initiate_call", map[string]string{
		"phone_number": "+15551234567",
		"message":      "Hello",
	})
	require.Equal(t, 1, store.Len())

	w := postJSON(router, "/webhook", webhookBody("call.hangup", "abc123"))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, store.Len())
}

func TestHandleWebhook_MalformedEnvelope(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleWebhook_MissingEventFields(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := postJSON(router, "/webhook", map[string]interface{}{"data": map[string]interface{}{}})

	// Parseable but incomplete events are logged and acknowledged.
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleAudio(t *testing.T) {
	router, store := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	postJSON(router, "/initiate_call", map[string]string{
		"phone_number": "+15551234567",
		"message":      "Hello",
	})
	artifact, err := store.Get("abc123")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audio/"+artifact.ID.String()+".wav", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	assert.Equal(t, artifact.WAV, w.Body.Bytes())
}

func TestHandleAudio_UnknownArtifact(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audio/"+uuid.NewString()+".wav", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleAudio_InvalidArtifactID(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audio/not-a-uuid.wav", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHangup(t *testing.T) {
	router, store := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	postJSON(router, "/initiate_call", map[string]string{
		"phone_number": "+15551234567",
		"message":      "Hello",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hangup/abc123", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, store.Len())
}

func TestHandleHangup_UnknownCall(t *testing.T) {
	router, _ := newTestRouter(&stubTelephony{}, &stubSynthesizer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hangup/never-seen", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
