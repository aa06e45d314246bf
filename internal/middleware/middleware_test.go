package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	t.Run("preflight answers 200 without calling next", func(t *testing.T) {
		called := false
		handler := NewCORSMiddleware("").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, called)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Empty(t, rec.Body.String())
	})

	t.Run("headers on regular responses", func(t *testing.T) {
		handler := NewCORSMiddleware("https://chat.example").Handler(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://chat.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	})
}

func TestBodyLimitMiddleware(t *testing.T) {
	t.Run("rejects declared oversize body", func(t *testing.T) {
		handler := NewBodyLimitMiddleware(8).Handler(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(strings.Repeat("x", 32)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "BODY_TOO_LARGE")
	})

	t.Run("caps undeclared body", func(t *testing.T) {
		var readErr error
		handler := NewBodyLimitMiddleware(8).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, readErr = io.ReadAll(r.Body)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(strings.Repeat("x", 32)))
		req.ContentLength = -1
		handler.ServeHTTP(httptest.NewRecorder(), req)

		var maxBytesErr *http.MaxBytesError
		assert.ErrorAs(t, readErr, &maxBytesErr)
	})

	t.Run("passes small body", func(t *testing.T) {
		handler := NewBodyLimitMiddleware(0).Handler(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"action":"stats"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	handler := chimiddleware.RequestID(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := w.(http.Flusher)
		assert.True(t, ok, "writer must stay flushable")
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/api/chat"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"requestId"`)
}
