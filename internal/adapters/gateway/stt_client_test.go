package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpeechKitServers(t *testing.T, recognize http.HandlerFunc) (audio, stt *httptest.Server) {
	t.Helper()
	audio = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.ogg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("OggS-fake-audio"))
	}))
	stt = httptest.NewServer(recognize)
	t.Cleanup(func() {
		audio.Close()
		stt.Close()
	})
	return audio, stt
}

func TestSpeechKit_Transcribe(t *testing.T) {
	audio, stt := newSpeechKitServers(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Api-Key key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "ru-RU", r.URL.Query().Get("lang"))
		assert.Equal(t, "general", r.URL.Query().Get("topic"))
		assert.Equal(t, "folder-1", r.URL.Query().Get("folderId"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "OggS-fake-audio", string(body))
		w.Write([]byte(`{"result":"Spoken text"}`))
	})

	client := NewSpeechKitClient("key-1", "folder-1", stt.URL)
	text, err := client.Transcribe(t.Context(), audio.URL+"/voice.ogg")

	require.NoError(t, err)
	assert.Equal(t, "Spoken text", text)
}

func TestSpeechKit_Failures(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		audio    string
		response string
		status   int
		want     string
	}{
		{"missing key", "", "/voice.ogg", "", 200, "YANDEX_SPEECHKIT_API_KEY is not set"},
		{"download fails", "key", "/missing.ogg", "", 200, "Failed to download audio file, status=404"},
		{"error code", "key", "/voice.ogg", `{"error_code":"BAD_REQUEST","error_message":"bad audio"}`, 200, "SpeechKit STT error: BAD_REQUEST"},
		{"empty result", "key", "/voice.ogg", `{"result":""}`, 200, "SpeechKit STT returned empty result"},
		{"bad status", "key", "/voice.ogg", `{}`, 500, "SpeechKit STT returned status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audio, stt := newSpeechKitServers(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			})

			_, err := NewSpeechKitClient(tt.apiKey, "folder", stt.URL).Transcribe(t.Context(), audio.URL+tt.audio)
			assert.EqualError(t, err, tt.want)
		})
	}
}
