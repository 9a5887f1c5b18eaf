package credstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"
)

// FileBackend keeps string values in a JSON file. Writes go through an
// exclusive lock and an atomic rename, so concurrent taskdash processes see
// either the old or the new file.
type FileBackend struct {
	dir  string
	name string
}

// NewFileBackend stores values in dir/name.
func NewFileBackend(dir, name string) *FileBackend {
	return &FileBackend{dir: dir, name: name}
}

// Path returns the file holding the values.
func (b *FileBackend) Path() string {
	return filepath.Join(b.dir, b.name)
}

func (b *FileBackend) lockPath() string {
	return filepath.Join(b.dir, b.name+".lock")
}

// Get implements Backend.
func (b *FileBackend) Get(key string) (string, bool, error) {
	values, err := b.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// Set implements Backend.
func (b *FileBackend) Set(key, value string) error {
	return b.update(func(values map[string]string) {
		values[key] = value
	})
}

// Delete implements Backend.
func (b *FileBackend) Delete(key string) error {
	return b.update(func(values map[string]string) {
		delete(values, key)
	})
}

// Clear implements Backend.
func (b *FileBackend) Clear() error {
	return b.update(func(values map[string]string) {
		for key := range values {
			delete(values, key)
		}
	})
}

// Keys returns the stored keys in sorted order.
func (b *FileBackend) Keys() ([]string, error) {
	values, err := b.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(b.Path())
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.name, err)
	}
	values := map[string]string{}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", b.name, err)
	}
	return values, nil
}

func (b *FileBackend) save(values map[string]string) error {
	if len(values) == 0 {
		if err := os.Remove(b.Path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", b.name, err)
		}
		return nil
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", b.name, err)
	}

	if existing, err := os.ReadFile(b.Path()); err == nil {
		if bytes.Equal(existing, data) {
			return nil
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", b.name, err)
	}

	tmpFile, err := os.CreateTemp(b.dir, b.name+".tmp")
	if err != nil {
		return fmt.Errorf("create temp %s: %w", b.name, err)
	}
	name := tmpFile.Name()
	if err := tmpFile.Chmod(0o600); err != nil {
		tmpFile.Close()
		os.Remove(name)
		return fmt.Errorf("chmod temp %s: %w", b.name, err)
	}
	_, err = tmpFile.Write(data)
	if err1 := tmpFile.Close(); err1 != nil && err == nil {
		err = err1
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("write temp %s: %w", b.name, err)
	}

	if err := os.Rename(name, b.Path()); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", b.name, err)
	}
	return nil
}

func (b *FileBackend) update(fn func(values map[string]string)) error {
	if err := os.MkdirAll(b.dir, 0o700); err != nil {
		return fmt.Errorf("create %s dir: %w", b.name, err)
	}

	lockFile, err := os.OpenFile(b.lockPath(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)

	values, err := b.load()
	if err != nil {
		return err
	}
	fn(values)
	return b.save(values)
}
