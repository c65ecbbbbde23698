package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "transcripción", req.Messages[1].Content)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": `{"sentiment":"NEUTRO"}`}}},
		})
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "secret", "test-model", 10*time.Second)
	out, err := g.Generate(context.Background(), Request{SystemInstruction: "sys", Content: "transcripción"})
	require.NoError(t, err)
	assert.Equal(t, `{"sentiment":"NEUTRO"}`, out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGatewayClient_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "secret", "m", 10*time.Second)
	_, err := g.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGatewayClient_NotConfigured(t *testing.T) {
	_, err := NewGatewayClient("", "", "", time.Second).Generate(context.Background(), Request{})
	assert.Error(t, err)
}

func TestGeminiClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sys", req.SystemInstruction.Parts[0].Text)
		assert.Equal(t, "hola", req.Contents[0].Parts[0].Text)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": `{"industry":`},
					map[string]any{"text": `"banca"}`},
				}},
			}},
		})
	}))
	defer srv.Close()

	g := NewGeminiClient("key", "", time.Second)
	g.BaseURL = srv.URL
	out, err := g.Generate(context.Background(), Request{SystemInstruction: "sys", Content: "hola"})
	require.NoError(t, err)
	assert.Equal(t, `{"industry":"banca"}`, out)
}
