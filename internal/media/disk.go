package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DiskStorage writes uploads below Root and records them under BasePath, which
// the HTTP server maps back onto Root.
type DiskStorage struct {
	Root     string
	BasePath string
}

func NewDiskStorage(root, basePath string) *DiskStorage {
	return &DiskStorage{Root: root, BasePath: "/" + strings.Trim(basePath, "/")}
}

func (d *DiskStorage) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	target := filepath.Join(d.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload %s: %w", key, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write upload %s: %w", key, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close upload %s: %w", key, err)
	}
	return path.Join(d.BasePath, key), nil
}

// Delete removes a file previously returned by Put. Paths outside BasePath are ignored.
func (d *DiskStorage) Delete(_ context.Context, publicPath string) error {
	key, ok := strings.CutPrefix(publicPath, d.BasePath+"/")
	if !ok || key == "" || strings.Contains(key, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(d.Root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload %s: %w", key, err)
	}
	return nil
}
