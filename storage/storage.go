package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Errors returned by Save.
var (
	ErrTooLarge       = errors.New("file too large")
	ErrBadContentType = errors.New("unsupported file type")
)

var allowedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Store writes uploaded avatars to local disk and hands back the public
// URL they will be served from.
type Store struct {
	root       string
	publicPath string
	maxBytes   int64
	logger     *zap.Logger
}

// New creates a Store rooted at dir. maxKB caps upload size; publicPath
// is the URL prefix the root is served under (e.g. "/uploads").
func New(dir, publicPath string, maxKB int, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	if maxKB <= 0 {
		maxKB = 2048
	}
	return &Store{
		root:       dir,
		publicPath: strings.TrimRight(publicPath, "/"),
		maxBytes:   int64(maxKB) * 1024,
		logger:     logger,
	}, nil
}

// Root returns the directory files are written to.
func (s *Store) Root() string { return s.root }

// Save validates and writes one uploaded file, returning its public URL.
// The stored name is a fresh UUID so uploads can never collide or
// traverse out of the root.
func (s *Store) Save(file *multipart.FileHeader) (string, error) {
	if file.Size > s.maxBytes {
		return "", ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExts[ext] {
		return "", ErrBadContentType
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(s.root, name)

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	// Size was checked from the header; the LimitReader backstops a
	// client lying about Content-Length.
	if _, err := io.Copy(out, io.LimitReader(src, s.maxBytes+1)); err != nil {
		os.Remove(dst)
		return "", err
	}
	s.logger.Debug("file stored", zap.String("name", name), zap.Int64("size", file.Size))
	return s.publicPath + "/" + name, nil
}
