package todo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amonks/taskdash/api"
)

func TestUploadSizeBoundary(t *testing.T) {
	tests := []struct {
		size    int64
		wantErr bool
	}{
		{0, false},
		{MaxAttachmentSize - 1, false},
		{MaxAttachmentSize, false},
		{MaxAttachmentSize + 1, true},
	}
	for _, tt := range tests {
		upload := &Upload{Name: "a.pdf", Size: tt.size, MIMEType: api.PDFMIMEType}
		err := upload.Check()
		if tt.wantErr != (err != nil) {
			t.Errorf("size %d: got err %v", tt.size, err)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrAttachmentTooLarge) {
				t.Errorf("size %d: expected ErrAttachmentTooLarge, got %v", tt.size, err)
			}
			if api.Message(err) != "File size must be under 20MB." {
				t.Errorf("size %d: unexpected message %q", tt.size, api.Message(err))
			}
		}
	}
}

func TestUploadTypeCheckedBeforeSize(t *testing.T) {
	upload := &Upload{Name: "a.png", Size: MaxAttachmentSize + 1, MIMEType: "image/png"}
	if err := upload.Check(); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestOpenUploadSniffsContent(t *testing.T) {
	dir := t.TempDir()

	pdf := filepath.Join(dir, "renamed.txt")
	if err := os.WriteFile(pdf, pdfContent, 0o644); err != nil {
		t.Fatal(err)
	}
	upload, err := OpenUpload(pdf)
	if err != nil {
		t.Fatal(err)
	}
	if upload.MIMEType != api.PDFMIMEType || upload.Name != "renamed.txt" || upload.Size != int64(len(pdfContent)) {
		t.Fatalf("unexpected upload %+v", upload)
	}
	if err := upload.Check(); err != nil {
		t.Fatalf("expected pdf content to pass, got %v", err)
	}

	fake := filepath.Join(dir, "fake.pdf")
	if err := os.WriteFile(fake, []byte("just some text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	upload, err = OpenUpload(fake)
	if err != nil {
		t.Fatal(err)
	}
	if err := upload.Check(); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected text with .pdf extension to be rejected, got %v", err)
	}
}

func TestOpenUploadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenUpload(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := OpenUpload(dir); err == nil {
		t.Fatal("expected error for directory")
	}
}
