package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"avito-assist/internal/core/ports"
)

// Ensure SpeechKitClient implements Transcriber
var _ ports.Transcriber = (*SpeechKitClient)(nil)

// DefaultSpeechKitEndpoint is the synchronous recognition endpoint (audio up to 30s)
const DefaultSpeechKitEndpoint = "https://stt.api.cloud.yandex.net/speech/v1/stt:recognize"

// maxAudioBytes is the SpeechKit v1 limit for synchronous recognition
const maxAudioBytes = 1 << 20

// SpeechKitClient transcribes voice messages with Yandex SpeechKit.
// Credentials are checked per call so a missing key only fails voice events.
type SpeechKitClient struct {
	apiKey          string
	folderID        string
	endpoint        string
	downloadClient  *http.Client
	recognizeClient *http.Client
}

// NewSpeechKitClient creates a new SpeechKit client
func NewSpeechKitClient(apiKey, folderID, endpoint string) *SpeechKitClient {
	if endpoint == "" {
		endpoint = DefaultSpeechKitEndpoint
	}
	return &SpeechKitClient{
		apiKey:          apiKey,
		folderID:        folderID,
		endpoint:        endpoint,
		downloadClient:  &http.Client{Timeout: 10 * time.Second},
		recognizeClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type speechKitResponse struct {
	Result       string `json:"result"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Transcribe downloads the audio file and returns the recognized text
func (c *SpeechKitClient) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("YANDEX_SPEECHKIT_API_KEY is not set")
	}
	if c.folderID == "" {
		return "", errors.New("YANDEX_SPEECHKIT_FOLDER_ID is not set")
	}

	audio, err := c.download(ctx, audioURL)
	if err != nil {
		return "", err
	}

	query := url.Values{
		"lang":     {"ru-RU"},
		"topic":    {"general"},
		"folderId": {c.folderID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+query.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.recognizeClient.Do(req)
	if err != nil {
		slog.Error("Error while calling Yandex SpeechKit STT API", "error", err)
		return "", errors.New("Failed to call SpeechKit STT API")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		slog.Error("SpeechKit STT returned non-200 status",
			"status_code", resp.StatusCode,
			"body", truncate(string(body), 512),
		)
		return "", fmt.Errorf("SpeechKit STT returned status %d", resp.StatusCode)
	}

	var payload speechKitResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errors.New("Invalid JSON from SpeechKit STT")
	}
	if payload.ErrorCode != "" {
		slog.Error("SpeechKit STT error",
			"error_code", payload.ErrorCode,
			"error_message", payload.ErrorMessage,
		)
		return "", fmt.Errorf("SpeechKit STT error: %s", payload.ErrorCode)
	}
	if payload.Result == "" {
		return "", errors.New("SpeechKit STT returned empty result")
	}

	return payload.Result, nil
}

func (c *SpeechKitClient) download(ctx context.Context, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Invalid audio URL: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		slog.Error("Failed to download audio", "error", err, "audio_url", audioURL)
		return nil, errors.New("Failed to download audio file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("Failed to download audio",
			"audio_url", audioURL,
			"status_code", resp.StatusCode,
		)
		return nil, fmt.Errorf("Failed to download audio file, status=%d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, errors.New("Failed to download audio file")
	}
	if len(audio) > maxAudioBytes {
		return nil, errors.New("Audio file is too large for synchronous recognition")
	}
	return audio, nil
}
