package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmill/internal/generation/openai"
)

func TestGenerateImageHappyPath(t *testing.T) {
	png := []byte("\x89PNG fake image bytes")

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "dall-e-3", req["model"])
		assert.Equal(t, "a reindeer", req["prompt"])
		assert.Equal(t, float64(1), req["n"])
		assert.Equal(t, "1024x1024", req["size"])

		fmt.Fprintf(w, `{"data":[{"url":%q}]}`, srv.URL+"/download/img.png")
	})
	mux.HandleFunc("/download/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(png)
	})

	client := openai.New(srv.URL, "test-key", "dall-e-3", "1024x1024")

	got, err := client.GenerateImage(context.Background(), "a reindeer")
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestGenerateImageMapsUpstreamStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, openai.ErrUpstreamRateLimited},
		{"bad key", http.StatusUnauthorized, openai.ErrUpstreamAuth},
		{"rejected prompt", http.StatusBadRequest, openai.ErrInvalidPrompt},
		{"server error", http.StatusInternalServerError, openai.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := openai.New(srv.URL, "test-key", "dall-e-3", "1024x1024")

			_, err := client.GenerateImage(context.Background(), "a reindeer")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerateImageEmptyDataIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := openai.New(srv.URL, "test-key", "dall-e-3", "1024x1024")

	_, err := client.GenerateImage(context.Background(), "a reindeer")
	assert.ErrorIs(t, err, openai.ErrUpstreamUnavailable)
}

func TestGenerateImageFailedDownloadIsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"url":%q}]}`, srv.URL+"/download/img.png")
	})
	mux.HandleFunc("/download/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := openai.New(srv.URL, "test-key", "dall-e-3", "1024x1024")

	_, err := client.GenerateImage(context.Background(), "a reindeer")
	assert.ErrorIs(t, err, openai.ErrUpstreamUnavailable)
}
