// Package export writes a finished document set as a zip bundle, a directory
// of markdown files, or objects in an S3 bucket.
package export

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"vibedocs/internal/documents"
)

// BundleDir is the folder every zip entry lives under.
const BundleDir = "VIBEDOCS"

// File is one exported document.
type File struct {
	Key     documents.Key
	Name    string
	Content string
}

// Files returns the ten documents in pipeline order. A document missing from
// docs is exported as the partial placeholder.
func Files(docs map[documents.Key]string) []File {
	out := make([]File, 0, documents.Count)
	for _, k := range documents.Keys() {
		content, ok := docs[k]
		if !ok {
			content = documents.PartialPlaceholder(k)
		}
		out = append(out, File{Key: k, Name: documents.FileName(k), Content: content})
	}
	return out
}

// WriteZip writes docs as VIBEDOCS/<FILE>.md entries.
func WriteZip(w io.Writer, docs map[documents.Key]string) error {
	zw := zip.NewWriter(w)
	modified := time.Now()
	for _, f := range Files(docs) {
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     path.Join(BundleDir, f.Name),
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("zip %s: %w", f.Name, err)
		}
		if _, err := io.WriteString(entry, f.Content); err != nil {
			return fmt.Errorf("zip %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// WriteZipFile creates target and writes the bundle into it.
func WriteZipFile(target string, docs map[documents.Key]string) error {
	if dir := filepath.Dir(target); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if err := WriteZip(out, docs); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// WriteDir writes one markdown file per document and returns their paths.
func WriteDir(dir string, docs map[documents.Key]string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	written := make([]string, 0, documents.Count)
	for _, f := range Files(docs) {
		target := filepath.Join(dir, f.Name)
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", f.Name, err)
		}
		written = append(written, target)
	}
	return written, nil
}
