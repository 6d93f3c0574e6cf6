package scraper

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestHTTPFetcherOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") == "" || r.Header.Get("User-Agent") == "" {
			t.Errorf("browser headers missing: %v", r.Header)
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)
	defer f.Close()

	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Errorf("body: got %q", body)
	}
}

func TestHTTPFetcherBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("<html>compressed</html>"))
		_ = bw.Close()
	}))
	defer srv.Close()

	body, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "<html>compressed</html>" {
		t.Errorf("body: got %q", body)
	}
}

func TestHTTPFetcherDeflate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "deflate")
		zw := zlib.NewWriter(w)
		_, _ = zw.Write([]byte("<html>deflated</html>"))
		_ = zw.Close()
	}))
	defer srv.Close()

	body, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "<html>deflated</html>" {
		t.Errorf("body: got %q", body)
	}
}

func TestHTTPFetcherCapsDecodedBody(t *testing.T) {
	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	_, _ = gw.Write(make([]byte, maxBodySize+1))
	_ = gw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError for an oversized body, got %v", err)
	}
}

func TestHTTPFetcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "robot check", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode: got %d, want 503", fe.StatusCode)
	}
}

func TestHTTPFetcherNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), url)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.StatusCode != 0 {
		t.Errorf("transport failures carry no status, got %d", fe.StatusCode)
	}
}
