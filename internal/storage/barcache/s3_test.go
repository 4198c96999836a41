package barcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestS3_ImplementsStore(t *testing.T) {
	var _ Store = (*S3)(nil)
}

func TestS3_Key(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "yahoo/AAPL/a.json", "yahoo/AAPL/a.json"},
		{"bars", "yahoo/AAPL/a.json", "bars/yahoo/AAPL/a.json"},
		{"bars/", "yahoo/AAPL/a.json", "bars/yahoo/AAPL/a.json"},
	}

	for _, tt := range tests {
		s := &S3{prefix: strings.TrimSuffix(tt.prefix, "/")}
		if got := s.key(tt.key); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestS3_Load(t *testing.T) {
	payload, err := encodeBars(sampleBars())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/bars-bucket/cache/yahoo/AAPL/hit.json" {
			w.Header().Set("Content-Type", "application/json")
			w.Write(payload)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
	}))
	defer srv.Close()

	s, err := NewS3(S3Config{
		Bucket:    "bars-bucket",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    "cache/",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}

	ctx := context.Background()
	bars, ok, err := s.Load(ctx, "yahoo/AAPL/hit.json")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(bars) != 2 {
		t.Errorf("expected 2 bars, got %d", len(bars))
	}

	_, ok, err = s.Load(ctx, "yahoo/AAPL/miss.json")
	if err != nil || ok {
		t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if len(paths) == 0 || paths[0] != "/bars-bucket/cache/yahoo/AAPL/hit.json" {
		t.Errorf("expected path-style request, got %v", paths)
	}
}
