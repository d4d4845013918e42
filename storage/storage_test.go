package storage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, maxKB int) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "/uploads", maxKB, zap.NewNop())
	require.NoError(t, err)
	return s
}

func makeUpload(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	_, header, err := req.FormFile("file")
	require.NoError(t, err)
	return header
}

func TestSave_WritesFileAndReturnsURL(t *testing.T) {
	s := newTestStore(t, 64)
	header := makeUpload(t, "avatar.png", []byte("pretend png bytes"))

	url, err := s.Save(header)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	// The stored name is generated, never the client's filename.
	assert.NotContains(t, url, "avatar")

	stored := filepath.Join(s.Root(), strings.TrimPrefix(url, "/uploads/"))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, []byte("pretend png bytes"), data)
}

func TestSave_RejectsBadExtension(t *testing.T) {
	s := newTestStore(t, 64)
	header := makeUpload(t, "payload.exe", []byte("nope"))

	_, err := s.Save(header)
	assert.ErrorIs(t, err, ErrBadContentType)
}

func TestSave_RejectsOversized(t *testing.T) {
	s := newTestStore(t, 1) // 1 KB cap
	header := makeUpload(t, "big.png", bytes.Repeat([]byte("x"), 2048))

	_, err := s.Save(header)
	assert.ErrorIs(t, err, ErrTooLarge)
}
