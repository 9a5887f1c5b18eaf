package todo

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amonks/taskdash/api"
)

// DownloadAttachment saves the todo's PDF into dir and returns its path.
// An empty filename uses the attachment's original name. The content is
// staged in a temporary file that is always released, whether or not the
// download succeeds.
func (s *Syncer) DownloadAttachment(ctx context.Context, todoID int64, filename, dir string) (string, error) {
	if _, err := s.begin(); err != nil {
		return "", err
	}
	name := s.downloadName(todoID, filename)

	body, err := s.client.DownloadAttachment(ctx, todoID)
	if err != nil {
		return "", api.Classify(err)
	}
	defer body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".taskdash-download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	kept := false
	defer func() {
		tmp.Close()
		if !kept {
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return "", fmt.Errorf("%w: download attachment: %v", api.ErrNetworkUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	target := filepath.Join(dir, name)
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("save attachment: %w", err)
	}
	kept = true
	return target, nil
}

// downloadName picks a safe file name for a download.
func (s *Syncer) downloadName(todoID int64, filename string) string {
	if filename == "" {
		if item, ok := s.collection.Get(todoID); ok && len(item.Attachments) > 0 {
			filename = item.Attachments[0].OriginalName
		}
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == string(filepath.Separator) || filename == "" || strings.HasPrefix(filename, ".") {
		return fmt.Sprintf("attachment-%d.pdf", todoID)
	}
	return filename
}
