package providers

import (
	"context"
	"io"
)

// Source ist das Interface, das jede Bezugsquelle für den Bulk-Dump
// implementieren muss (lokale Datei, S3-Objekt).
type Source interface {
	// Open liefert den Roh-Dump als Stream. Der Aufrufer schließt ihn.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "file").
	Name() string
}
