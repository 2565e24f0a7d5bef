package azurespeech

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"voice-server/internal/observability"
)

// Single-channel PCM wave, the format the telephony provider decodes.
const outputFormat = "riff-24khz-16bit-mono-pcm"

const defaultVoice = "en-US-JennyNeural"

// Client is an Azure Speech Services REST client covering short-form
// text-to-speech and speech-to-text.
type Client struct {
	key        string
	ttsURL     string
	sttURL     string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a new Azure Speech client for the given service region.
func NewClient(key, region string, logger *observability.Logger) (*Client, error) {
	if key == "" || region == "" {
		return nil, fmt.Errorf("azure speech key and region are required")
	}
	return &Client{
		key:    key,
		ttsURL: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		sttURL: fmt.Sprintf(
			"https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1?language=en-US",
			region),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// WithEndpoints overrides the service endpoints, used in tests.
func (c *Client) WithEndpoints(ttsURL, sttURL string) *Client {
	c.ttsURL = ttsURL
	c.sttURL = sttURL
	return c
}

type ssmlSpeak struct {
	XMLName xml.Name  `xml:"speak"`
	Version string    `xml:"version,attr"`
	Lang    string    `xml:"xml:lang,attr"`
	Voice   ssmlVoice `xml:"voice"`
}

type ssmlVoice struct {
	Name string `xml:"name,attr"`
	Text string `xml:",chardata"`
}

// Synthesize converts text to a mono PCM WAV clip.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ssml, err := xml.Marshal(ssmlSpeak{
		Version: "1.0",
		Lang:    "en-US",
		Voice:   ssmlVoice{Name: defaultVoice, Text: text},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build SSML: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ttsURL, bytes.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure TTS error: status %d: %s", resp.StatusCode, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("azure TTS returned an empty audio stream")
	}
	return audio, nil
}

type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
}

// Recognize transcribes a WAV clip. Absence of a transcript is always an
// explicit failure, never an empty success.
func (c *Client) Recognize(ctx context.Context, wav []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sttURL, bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("failed to create STT request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("azure STT request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read recognition response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("azure STT error: status %d: %s", resp.StatusCode, string(respBody))
	}

	var recognition recognitionResponse
	if err := json.Unmarshal(respBody, &recognition); err != nil {
		return "", fmt.Errorf("failed to decode recognition response: %w", err)
	}
	if recognition.RecognitionStatus != "Success" {
		return "", fmt.Errorf("azure STT recognition status %q", recognition.RecognitionStatus)
	}
	if recognition.DisplayText == "" {
		return "", fmt.Errorf("azure STT produced no transcript")
	}
	return recognition.DisplayText, nil
}
