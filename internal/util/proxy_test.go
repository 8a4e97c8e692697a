package util

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestNewProxyFunc_SchemeSelection(t *testing.T) {
	proxy := NewProxyFunc("http://plain:8080", "http://secure:8443")

	tests := []struct {
		target string
		want   string
	}{
		{"https://api.openai.com/v1/chat/completions", "http://secure:8443"},
		{"http://localhost:11434/api/generate", "http://plain:8080"},
	}

	for _, tt := range tests {
		req := &http.Request{URL: mustParse(t, tt.target)}
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s) error: %v", tt.target, err)
		}
		if got.String() != tt.want {
			t.Errorf("proxy(%s) = %s, want %s", tt.target, got, tt.want)
		}
	}
}

func TestNewProxyFunc_HTTPSFallsBackToHTTPProxy(t *testing.T) {
	proxy := NewProxyFunc("http://plain:8080", "")

	got, err := proxy(&http.Request{URL: mustParse(t, "https://example.org")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "http://plain:8080" {
		t.Errorf("got %s, want http://plain:8080", got)
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(5*time.Second, "", "")
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport is %T, want *http.Transport", client.Transport)
	}
	if transport.Proxy == nil {
		t.Error("expected a proxy function")
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u
}
