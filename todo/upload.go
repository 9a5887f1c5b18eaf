package todo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/amonks/taskdash/api"
	"github.com/gabriel-vasile/mimetype"
)

// MaxAttachmentSize is the largest attachment accepted, 20 MiB inclusive.
const MaxAttachmentSize = 20 << 20

// Upload is a PDF to send with a create or update.
type Upload struct {
	Name     string
	Size     int64
	MIMEType string
	Open     func() (io.ReadCloser, error)
}

// OpenUpload describes the file at path. The MIME type is sniffed from
// the content, not taken from the extension.
func OpenUpload(path string) (*Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("attachment %s is a directory", path)
	}
	return SniffUpload(filepath.Base(path), info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// SniffUpload describes content reachable through open.
func SniffUpload(name string, size int64, open func() (io.ReadCloser, error)) (*Upload, error) {
	content, err := open()
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer content.Close()
	mtype, err := mimetype.DetectReader(content)
	if err != nil {
		return nil, fmt.Errorf("detect attachment type: %w", err)
	}
	return &Upload{
		Name:     name,
		Size:     size,
		MIMEType: mimeOf(mtype),
		Open:     open,
	}, nil
}

func mimeOf(mtype *mimetype.MIME) string {
	if mtype.Is(api.PDFMIMEType) {
		return api.PDFMIMEType
	}
	return mtype.String()
}

// Check enforces the attachment constraints.
func (u *Upload) Check() error {
	if u.MIMEType != api.PDFMIMEType {
		return api.FieldError("pdf", "Only PDF files are accepted.",
			fmt.Errorf("%w: got %s", ErrNotPDF, u.MIMEType))
	}
	if u.Size > MaxAttachmentSize {
		return api.FieldError("pdf", "File size must be under 20MB.",
			fmt.Errorf("%w: %d > %d bytes", ErrAttachmentTooLarge, u.Size, MaxAttachmentSize))
	}
	return nil
}

func (u *Upload) file() *api.File {
	if u == nil {
		return nil
	}
	return &api.File{Name: u.Name, ContentType: u.MIMEType, Open: u.Open}
}
