package blob

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Minimal valid PNG header plus IEND, enough for mime sniffing.
var pngBytes = []byte{
	0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A,
	0, 0, 0, 0x0D, 'I', 'H', 'D', 'R',
	0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0,
}

func TestDiskUploader_StoresAndReturnsURL(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	up, err := NewDiskUploader(dir, "http://localhost:8080/")
	req.NoError(err)

	url, err := up.Upload(context.Background(), "photo.png", bytes.NewReader(pngBytes))
	req.NoError(err)
	req.True(strings.HasPrefix(url, "http://localhost:8080/uploads/"))
	req.True(strings.HasSuffix(url, ".png"))

	name := url[strings.LastIndex(url, "/")+1:]
	data, err := os.ReadFile(filepath.Join(dir, name))
	req.NoError(err)
	req.Equal(pngBytes, data)
}

func TestDiskUploader_RejectsEmptyUpload(t *testing.T) {
	req := require.New(t)
	up, err := NewDiskUploader(t.TempDir(), "http://localhost:8080")
	req.NoError(err)

	_, err = up.Upload(context.Background(), "empty.bin", bytes.NewReader(nil))
	req.Error(err)
}
