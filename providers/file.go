package providers

import (
	"context"
	"io"
	"os"
)

// FileSource liest den Dump aus dem lokalen Dateisystem.
type FileSource struct {
	Path string
}

// NewFileSource erstellt eine Quelle für einen lokalen Pfad.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f *FileSource) Name() string {
	return "file"
}
