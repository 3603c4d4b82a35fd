// Package uploads stores multipart file uploads on local disk under
// collision-free names.
package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Save writes the uploaded file into dir under a uuid-based name, preserving
// the original extension, and returns the stored path.
func Save(dir string, fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := uuid.New().String() + filepath.Ext(fh.Filename)
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// SaveAll stores up to max files from fhs, returning the stored paths.
func SaveAll(dir string, fhs []*multipart.FileHeader, max int) ([]string, error) {
	if len(fhs) > max {
		fhs = fhs[:max]
	}
	paths := make([]string, 0, len(fhs))
	for _, fh := range fhs {
		p, err := Save(dir, fh)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
