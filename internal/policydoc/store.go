package policydoc

import (
	"context"
	"os"
)

// FileStore is a DocumentStore that reads each environment's policy
// document from a local file path via a plain os.ReadFile, no remote
// fetch.
type FileStore struct{}

// NewFileStore creates a FileStore.
func NewFileStore() FileStore { return FileStore{} }

// Fetch reads source as a filesystem path.
func (FileStore) Fetch(_ context.Context, source string) (string, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
