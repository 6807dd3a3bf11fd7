// Package fetch downloads remote images for ingestion by URL.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockstudio/internal/asset"
)

const (
	// DefaultTimeout is the default timeout for image downloads
	DefaultTimeout = 30 * time.Second
	// DefaultMaxImageSize is the default maximum image size (10MB)
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// ImageFetcher downloads images over HTTP with size and content-type guards.
type ImageFetcher struct {
	client  *resty.Client
	maxSize int64
}

// NewImageFetcher creates an ImageFetcher with default settings.
func NewImageFetcher() *ImageFetcher {
	return &ImageFetcher{
		client: resty.New().
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "image/*"),
		maxSize: DefaultMaxImageSize,
	}
}

// WithTimeout sets a custom timeout for downloads.
func (f *ImageFetcher) WithTimeout(timeout time.Duration) *ImageFetcher {
	f.client.SetTimeout(timeout)
	return f
}

// WithMaxSize sets a custom maximum image size.
func (f *ImageFetcher) WithMaxSize(maxSize int64) *ImageFetcher {
	f.maxSize = maxSize
	return f
}

// Fetch downloads one image and returns it as an ingestable file. The
// response must be an image content type and fit under the size limit.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (asset.File, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(imageURL)
	if err != nil {
		return asset.File{}, fmt.Errorf("failed to download image: %w", err)
	}
	if resp.StatusCode() != 200 {
		return asset.File{}, fmt.Errorf("download failed: status %d", resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !strings.HasPrefix(contentType, "image/") {
		return asset.File{}, fmt.Errorf("invalid content type: expected image/*, got %s", contentType)
	}

	body := resp.Body()
	if len(body) == 0 {
		return asset.File{}, fmt.Errorf("empty response body")
	}
	if int64(len(body)) > f.maxSize {
		return asset.File{}, fmt.Errorf("image too large: %d bytes (max %d)", len(body), f.maxSize)
	}

	return asset.File{
		Name:     fileNameFromURL(imageURL),
		MimeType: contentType,
		Data:     body,
	}, nil
}

// fileNameFromURL derives a display filename from the URL path.
func fileNameFromURL(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "image"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}
