package scraper

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

const maxBodySize = 10 << 20

// defaultHeaders mimic a desktop browser; search pages answer bare clients
// with a 503.
var defaultHeaders = map[string]string{
	"Referer":            "https://www.amazon.com/",
	"Sec-Ch-Ua":          "Not_A Brand",
	"Sec-Ch-Ua-Mobile":   "?0",
	"Sec-Ch-Ua-Platform": "macOS",
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
}

// HTTPFetcher implements PageFetcher using net/http.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
	}
	return &HTTPFetcher{
		client: &http.Client{Transport: transport, Timeout: timeout},
	}
}

// Fetch returns the decoded body of a 2xx response.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	reader, err := decompressReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}
	if len(body) > maxBodySize {
		return nil, &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decoded body exceeds %d bytes", maxBodySize),
		}
	}
	return body, nil
}

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// decompressReader wraps r for gzip, deflate and brotli encodings. HTTP
// deflate is the zlib format, not a raw deflate stream.
func decompressReader(encoding string, r io.Reader) (io.Reader, error) {
	switch encoding {
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		return zlib.NewReader(r)
	case "br":
		return brotli.NewReader(r), nil
	default:
		return r, nil
	}
}
