package completion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/complete" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "hello back"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret", 5*time.Second)
	got, err := c.Complete(context.Background(), "hello", "fast-model")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "hello back" {
		t.Errorf("expected %q, got %q", "hello back", got)
	}
}

func TestHTTPClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second)
	_, err := c.Complete(context.Background(), "p", "m")
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error should carry status and snippet: %v", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"```json\n[1, 2]\n```", "[1, 2]"},
		{"```\n[1, 2]\n```", "[1, 2]"},
		{"  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
