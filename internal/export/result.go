package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// FileType is the delivered format.
type FileType string

const (
	FileXML  FileType = "xml"
	FileCSV  FileType = "csv"
	FileXLSX FileType = "xlsx"
	FileZip  FileType = "zip"
)

// Result is the packaged export file. Warnings carry the non-blocking
// findings that accompanied a successful run.
type Result struct {
	FileName string
	FileType FileType
	Content  []byte
	Warnings ErrorMap
}

// FileName builds the conventional export file name:
// <dialect>_<model>_<YYYY-MM-DD>_<YYYY-MM-DD>.<ext>.
func FileName(dialect, model string, from, to time.Time, ext FileType) string {
	return fmt.Sprintf("%s_%s_%s_%s.%s",
		dialect, model, from.Format("2006-01-02"), to.Format("2006-01-02"), ext)
}

// ZipEntry is one file inside a multi-file export.
type ZipEntry struct {
	Name    string
	Content []byte
}

// Zip packs entries into a single zip archive.
func Zip(entries []ZipEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.Name)
		if err != nil {
			return nil, fmt.Errorf("creating zip entry %s: %w", e.Name, err)
		}
		if _, err := f.Write(e.Content); err != nil {
			return nil, fmt.Errorf("writing zip entry %s: %w", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing zip: %w", err)
	}
	return buf.Bytes(), nil
}
