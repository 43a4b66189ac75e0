package render

import "context"

// Renderer opens a conversion session. A batch opens exactly one session and
// closes it when the conversion phase ends.
type Renderer interface {
	Open(ctx context.Context) (Session, error)
}

// Session converts documents to PDF until closed
type Session interface {
	Convert(ctx context.Context, docPath, pdfPath string) error
	Close() error
}
