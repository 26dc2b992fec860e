package port

import "context"

// StoredFile is the stable reference and download location of a saved file
type StoredFile struct {
	Ref string
	URL string
}

// FileStorage stores uploaded receipt files
type FileStorage interface {
	Save(ctx context.Context, key string, content []byte) (StoredFile, error)
	Read(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}
