package gmail

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/teemow/mailwarm/internal/config"
)

// MaxAttachmentSize is the largest single attachment accepted for sending (25MB).
const MaxAttachmentSize = 25 * 1024 * 1024

// ResolveAttachment returns the filename and bytes of an outgoing
// attachment, reading them from disk when the attachment names a path.
func ResolveAttachment(a OutgoingAttachment) (string, []byte, error) {
	hasData := a.Data != nil
	hasPath := a.Path != ""
	switch {
	case hasData && hasPath:
		return "", nil, fmt.Errorf("%w: both inline data and path given", ErrInvalidAttachment)
	case !hasData && !hasPath:
		return "", nil, fmt.Errorf("%w: attachment must have 'path' or 'data'", ErrInvalidAttachment)
	}

	name := a.Filename
	data := a.Data
	if hasPath {
		path, err := config.ExpandPath(a.Path)
		if err != nil {
			return "", nil, err
		}
		data, err = readAttachmentFile(path)
		if err != nil {
			return "", nil, err
		}
		if name == "" {
			name = filepath.Base(path)
		}
	}

	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", nil, ErrMissingFilename
	}
	if len(data) > MaxAttachmentSize {
		return "", nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidAttachment, name, len(data), MaxAttachmentSize)
	}
	return name, data, nil
}

func readAttachmentFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, path)
		}
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidAttachment, path)
	}
	if info.Size() > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidAttachment, path, info.Size(), MaxAttachmentSize)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, nil
}

// SaveAttachment writes data to path, creating parent directories and
// replacing an existing file. It returns the expanded path written.
func SaveAttachment(path string, data []byte) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(expanded); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(expanded, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	return expanded, nil
}
