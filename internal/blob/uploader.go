// Package blob stores uploaded message attachments and hands back URLs.
// The chat core treats the returned URL as an opaque payload reference.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// Uploader stores a file and returns a URL for it.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Kinds of content the chat accepts as attachments, keyed by the sniffed
// top-level mime type.
var allowedPrefixes = []string{"image/", "video/", "application/", "text/"}

// DiskUploader writes files under a local directory served at
// baseURL/uploads/. It stands in for a hosted blob store.
type DiskUploader struct {
	dir     string
	baseURL string
}

func NewDiskUploader(dir, baseURL string) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &DiskUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (u *DiskUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("empty upload")
	}

	mtype := mimetype.Detect(data)
	if !allowed(mtype.String()) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	ext := mtype.Extension()
	if ext == "" {
		ext = filepath.Ext(filename)
	}
	name := uuid.NewString() + ext

	path := filepath.Join(u.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}

	return u.baseURL + "/uploads/" + name, nil
}

func allowed(mime string) bool {
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}
