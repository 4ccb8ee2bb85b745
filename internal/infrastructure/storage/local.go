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
	"github.com/hansol-oss/intrachat/internal/infrastructure/configs"
)

var (
	ErrFileTooLarge   = errors.New("file exceeds the configured size limit")
	ErrExtNotAllowed  = errors.New("file extension is not allowed")
	ErrNoFileUploaded = errors.New("no file uploaded")
)

// LocalStorage stores chat attachments on the local filesystem under unique
// names, keeping the original file name only in the database row.
type LocalStorage struct {
	basePath    string
	maxBytes    int64
	allowedExts map[string]struct{}
}

func NewLocalStorage(cfg configs.UploadConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedExts))
	for _, ext := range cfg.AllowedExts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	return &LocalStorage{
		basePath:    cfg.Dir,
		maxBytes:    cfg.MaxFileMB * 1024 * 1024,
		allowedExts: allowed,
	}, nil
}

func (s *LocalStorage) MaxBytes() int64 { return s.maxBytes }

// SaveAttachment writes the uploaded file and returns its web path. An empty
// allowed-extension set accepts everything.
func (s *LocalStorage) SaveAttachment(file *multipart.FileHeader) (string, error) {
	if file.Size > s.maxBytes {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if len(s.allowedExts) > 0 && ext != "" {
		if _, ok := s.allowedExts[ext]; !ok {
			return "", fmt.Errorf("%w: %s", ErrExtNotAllowed, ext)
		}
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	unique := fmt.Sprintf("chat-%s%s", uuid.NewString(), ext)
	dst, err := os.Create(filepath.Join(s.basePath, unique))
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return "/uploads/" + unique, nil
}

func (s *LocalStorage) Delete(webPath string) error {
	name := strings.TrimPrefix(webPath, "/uploads/")
	fullPath := filepath.Join(s.basePath, filepath.Base(name))

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(fullPath)
}

// Dir exposes the base path so the router can serve /uploads/* statically.
func (s *LocalStorage) Dir() string { return s.basePath }
