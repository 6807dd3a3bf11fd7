package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFetcher_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sunset.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html></html>"))
		case "/huge.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte(strings.Repeat("x", 64)))
		case "/empty.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	fetcher := NewImageFetcher()

	t.Run("success", func(t *testing.T) {
		file, err := fetcher.Fetch(context.Background(), ts.URL+"/sunset.jpg")
		require.NoError(t, err)
		assert.Equal(t, "sunset.jpg", file.Name)
		assert.Equal(t, "image/jpeg", file.MimeType)
		assert.Equal(t, []byte("jpeg-bytes"), file.Data)
	})

	t.Run("non-image content type", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(), ts.URL+"/page.html")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid content type")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(), ts.URL+"/missing.jpg")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})

	t.Run("too large", func(t *testing.T) {
		small := NewImageFetcher().WithMaxSize(16)
		_, err := small.Fetch(context.Background(), ts.URL+"/huge.jpg")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image too large")
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(), ts.URL+"/empty.jpg")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty response body")
	})
}

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/photos/sunset.jpg", "sunset.jpg"},
		{"https://example.com/photos/sunset.jpg?w=800", "sunset.jpg"},
		{"https://example.com/", "image"},
		{"https://example.com", "image"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, fileNameFromURL(tt.url), tt.url)
	}
}
