package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
)

// MethodOverrideField carries the real verb when a multipart body has to
// travel as POST.
const MethodOverrideField = "_method"

// AttachmentField is the multipart part name for the PDF.
const AttachmentField = "pdf"

// File is an attachment to stream in a multipart body.
type File struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

type multipartForm struct {
	fields [][2]string
	file   *File

	mu      sync.Mutex
	readErr error
}

// reader streams the form through a pipe so large attachments are never
// buffered in memory. The transport closes the read side on failure, which
// unblocks the writer goroutine. The attachment is opened up front so a
// missing file fails before any request is sent.
func (f *multipartForm) reader() (io.Reader, string, error) {
	var content io.ReadCloser
	if f.file != nil {
		var err error
		if content, err = openAttachment(f.file); err != nil {
			return nil, "", err
		}
	}
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		if content != nil {
			defer content.Close()
		}
		pw.CloseWithError(f.write(writer, content))
	}()
	return pr, writer.FormDataContentType(), nil
}

// localErr returns the attachment read failure that cut the body short.
func (f *multipartForm) localErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readErr
}

func (f *multipartForm) write(writer *multipart.Writer, content io.Reader) error {
	for _, field := range f.fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	if content != nil {
		source := &attachmentReader{name: f.file.Name, r: content}
		err := writeFilePart(writer, f.file, source)
		if source.err != nil {
			f.mu.Lock()
			f.readErr = source.err
			f.mu.Unlock()
			return source.err
		}
		if err != nil {
			return err
		}
	}
	return writer.Close()
}

func openAttachment(file *File) (io.ReadCloser, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("%w: %q has no content", ErrAttachmentUnreadable, file.Name)
	}
	content, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrAttachmentUnreadable, file.Name, err)
	}
	return content, nil
}

func writeFilePart(writer *multipart.Writer, file *File, content io.Reader) error {
	contentType := file.ContentType
	if contentType == "" {
		contentType = PDFMIMEType
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		AttachmentField, escapeQuotes(file.Name)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}
	return nil
}

// attachmentReader tells local read failures apart from a closed pipe.
type attachmentReader struct {
	name string
	r    io.Reader
	err  error
}

func (a *attachmentReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if err != nil && err != io.EOF {
		a.err = fmt.Errorf("%w: read %s: %w", ErrAttachmentUnreadable, a.name, err)
		return n, a.err
	}
	return n, err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
