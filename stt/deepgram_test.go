package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
)

func TestDeepgramTranscribe(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotContentType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"results": {
					"channels": [
						{"alternatives": [{"transcript": " hello world ", "confidence": 0.98}]}
					]
				}
			}`))
		}),
	)
	defer server.Close()

	client := NewDeepgramClient("test-key", log.New(io.Discard)).
		WithBaseURL(server.URL)

	text, err := client.Transcribe(context.Background(), []byte("oggdata"))
	if err != nil {
		t.Fatalf("Transcribe() = %v", err)
	}

	if text != "hello world" {
		t.Errorf("transcript = %q, want %q", text, "hello world")
	}
	if gotAuth != "Token test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "audio/ogg" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if string(gotBody) != "oggdata" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestDeepgramTranscribeEmptyResult(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results": {"channels": [{"alternatives": [{"transcript": ""}]}]}}`))
		}),
	)
	defer server.Close()

	client := NewDeepgramClient("test-key", log.New(io.Discard)).
		WithBaseURL(server.URL)

	text, err := client.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Transcribe() = %v", err)
	}
	if text != "" {
		t.Errorf("transcript = %q, want empty", text)
	}
}

func TestDeepgramTranscribeErrorStatus(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"err_msg": "bad key"}`, http.StatusUnauthorized)
		}),
	)
	defer server.Close()

	client := NewDeepgramClient("bad-key", log.New(io.Discard)).
		WithBaseURL(server.URL)

	if _, err := client.Transcribe(context.Background(), nil); err == nil {
		t.Fatal("Transcribe() = nil error, want failure")
	}
}
