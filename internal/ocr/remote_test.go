package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recognizerServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/recognize", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteEngineRecognize(t *testing.T) {
	var got map[string]interface{}
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(RecognitionOutput{Text: "WALMART\nTOTAL $6.48", Confidence: 91.5})
	})

	engine := NewRemoteEngine(&RemoteEngineConfig{BaseURL: srv.URL})
	require.NoError(t, engine.Configure(EngineParams{
		Whitelist:   ReceiptWhitelist,
		PageSegMode: PageSegSingleBlock,
		DPI:         HighQualityDPI,
		MinLineSize: HighQualityMinLineSize,
	}))

	out, err := engine.Recognize(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "WALMART\nTOTAL $6.48", out.Text)
	assert.Equal(t, 91.5, out.Confidence)

	assert.Equal(t, "data:image/png;base64,AAAA", got["image"])
	assert.Equal(t, ReceiptWhitelist, got["whitelist"])
	assert.Equal(t, "single_block", got["page_seg_mode"])
	assert.Equal(t, float64(HighQualityDPI), got["dpi"])
	assert.Equal(t, float64(HighQualityMinLineSize), got["min_line_size"])
}

func TestRemoteEngineOmitsDefaultTuning(t *testing.T) {
	var got map[string]interface{}
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(RecognitionOutput{Text: "x", Confidence: 50})
	})

	engine := NewRemoteEngine(&RemoteEngineConfig{BaseURL: srv.URL})
	require.NoError(t, engine.Configure(EngineParams{Whitelist: ReceiptWhitelist, PageSegMode: PageSegSingleBlock}))

	_, err := engine.Recognize(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)

	_, hasDPI := got["dpi"]
	assert.False(t, hasDPI)
	_, hasMinLine := got["min_line_size"]
	assert.False(t, hasMinLine)
}

func TestRemoteEngineSurfacesBackendError(t *testing.T) {
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
	})

	engine := NewRemoteEngine(&RemoteEngineConfig{BaseURL: srv.URL})
	_, err := engine.Recognize(context.Background(), "data:image/png;base64,AAAA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestRemoteEngineFactoryRequiresHealthyRecognizer(t *testing.T) {
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {})
	factory := RemoteEngineFactory(&RemoteEngineConfig{BaseURL: srv.URL})

	engine, err := factory(context.Background())
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	_, err = RemoteEngineFactory(&RemoteEngineConfig{BaseURL: down.URL})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}
