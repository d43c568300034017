// Package media validates uploaded listing images and hands them to a storage backend.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	FieldName   = "images"
	MaxFiles    = 3
	MaxFileSize = 5 << 20
	keyPrefix   = "properties/"
)

var (
	ErrTooManyFiles = fmt.Errorf("at most %d images are allowed", MaxFiles)
	ErrFileTooLarge = fmt.Errorf("each image must be at most %d bytes", MaxFileSize)
	ErrNotImage     = errors.New("only image files are allowed")
)

// Storage persists one object and returns the public path recorded on the listing.
type Storage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, publicPath string) error
}

type Uploader struct {
	storage Storage
}

func NewUploader(storage Storage) *Uploader {
	return &Uploader{storage: storage}
}

// SaveImages validates and stores files in order. Nothing is kept when any file
// is rejected or fails to store.
func (u *Uploader) SaveImages(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if len(files) > MaxFiles {
		return nil, ErrTooManyFiles
	}

	paths := make([]string, 0, len(files))
	for _, header := range files {
		path, err := u.saveOne(ctx, header)
		if err != nil {
			u.Remove(ctx, paths)
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (u *Uploader) saveOne(ctx context.Context, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxFileSize {
		return "", ErrFileTooLarge
	}
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	if len(data) > MaxFileSize {
		return "", ErrFileTooLarge
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", ErrNotImage
	}

	ext := detected.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(header.Filename))
	}
	key := keyPrefix + uuid.NewString() + ext
	return u.storage.Put(ctx, key, detected.String(), bytes.NewReader(data), int64(len(data)))
}

// Remove deletes stored images, logging failures.
func (u *Uploader) Remove(ctx context.Context, paths []string) {
	for _, path := range paths {
		if err := u.storage.Delete(ctx, path); err != nil {
			log.Printf("media: remove %s: %v", path, err)
		}
	}
}
