// Package storage saves downloaded payloads to disk. The write goes
// through a uniquely named temp file that is always cleaned up, so a
// half-written download never shadows a real file.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type DownloadDir struct {
	basePath string
}

func NewDownloadDir(basePath string) (*DownloadDir, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &DownloadDir{basePath: basePath}, nil
}

// Save writes data under name inside the download directory and returns
// the final path. Any directory components in name are stripped.
func (d *DownloadDir) Save(name string, data io.Reader) (string, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	tmpPath := filepath.Join(d.basePath, fmt.Sprintf(".%s.%s.part", name, uuid.NewString()))
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	finalPath := filepath.Join(d.basePath, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return finalPath, nil
}
