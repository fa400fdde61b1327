package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Object describes an uploaded file handed to a storage driver.
type Object struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service persists uploaded files and returns a reference that can be stored on a record.
type Service interface {
	Save(ctx context.Context, obj Object) (string, error)
	Delete(ctx context.Context, ref string) error
}

// UniqueName builds "<field>-<uuid><ext>" from the client supplied filename.
func UniqueName(field, filename string) string {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "file"
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return field + "-" + uuid.NewString() + ext
}
