package azurespeech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-server/internal/observability"
)

func newTestClient(t *testing.T, tts, stt http.HandlerFunc) *Client {
	t.Helper()
	ttsServer := httptest.NewServer(tts)
	sttServer := httptest.NewServer(stt)
	t.Cleanup(ttsServer.Close)
	t.Cleanup(sttServer.Close)

	client, err := NewClient("test-key", "eastus", observability.NewLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client.WithEndpoints(ttsServer.URL, sttServer.URL)
}

func TestSynthesize(t *testing.T) {
	client := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "test-key" {
				t.Errorf("unexpected subscription key %q", got)
			}
			if got := r.Header.Get("X-Microsoft-OutputFormat"); got != "riff-24khz-16bit-mono-pcm" {
				t.Errorf("unexpected output format %q", got)
			}
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), "Hello there") {
				t.Errorf("expected SSML to carry the text, got %s", body)
			}
			w.Write([]byte("RIFF synthesized wave"))
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	audio, err := client.Synthesize(context.Background(), "Hello there")
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if string(audio) != "RIFF synthesized wave" {
		t.Errorf("unexpected audio %q", audio)
	}
}

func TestSynthesize_BackendError(t *testing.T) {
	client := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	if _, err := client.Synthesize(context.Background(), "Hello"); err == nil {
		t.Fatal("expected error for non-200 TTS response")
	}
}

func TestSynthesize_EmptyAudioIsError(t *testing.T) {
	client := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	if _, err := client.Synthesize(context.Background(), "Hello"); err == nil {
		t.Fatal("expected error for empty audio stream")
	}
}

func TestRecognize(t *testing.T) {
	client := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"RecognitionStatus":"Success","DisplayText":"I need help"}`))
		},
	)

	text, err := client.Recognize(context.Background(), []byte("RIFF caller audio"))
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if text != "I need help" {
		t.Errorf("unexpected transcript %q", text)
	}
}

func TestRecognize_NoMatchIsError(t *testing.T) {
	client := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"RecognitionStatus":"NoMatch","DisplayText":""}`))
		},
	)

	// Absence of a transcript is an explicit failure, never an empty success.
	if _, err := client.Recognize(context.Background(), []byte("RIFF audio")); err == nil {
		t.Fatal("expected error for NoMatch recognition status")
	}
}

func TestRecognize_EmptyTranscriptIsError(t *testing.T) {
	client := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"RecognitionStatus":"Success","DisplayText":""}`))
		},
	)

	if _, err := client.Recognize(context.Background(), []byte("RIFF audio")); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	if _, err := NewClient("", "eastus", observability.NewLogger()); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := NewClient("key", "", observability.NewLogger()); err == nil {
		t.Fatal("expected error for empty region")
	}
}
