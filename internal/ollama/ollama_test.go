package ollama_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arcana-family/arcana/internal/ollama"
	"github.com/arcana-family/arcana/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	image := []byte("fake-png")
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"[{\"title\":\"Dune\"}]"}`))
	}))
	t.Cleanup(server.Close)

	provider := ollama.New(server.URL+"/", server.Client())
	text, err := provider.ExtractText(t.Context(), providers.Config{
		Model:    "llava",
		Prompt:   "list the books",
		Image:    image,
		MIMEType: "image/png",
		JSON:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"Dune"}]`, text)

	assert.Equal(t, "llava", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, "json", got["format"])
	assert.Equal(t, []any{base64.StdEncoding.EncodeToString(image)}, got["images"])
}

func TestExtractTextWithoutImage(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	t.Cleanup(server.Close)

	_, err := ollama.New(server.URL, nil).ExtractText(t.Context(), providers.Config{Model: "llama3", Prompt: "hi"})
	require.NoError(t, err)
	assert.NotContains(t, got, "images")
	assert.NotContains(t, got, "format")
}

func TestExtractTextStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	_, err := ollama.New(server.URL, nil).ExtractText(t.Context(), providers.Config{Model: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}
