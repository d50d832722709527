package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DiskStore writes images below a directory that is served statically under
// URLPrefix.
type DiskStore struct {
	Dir       string
	URLPrefix string
}

func NewDiskStore(dir, urlPrefix string) *DiskStore {
	return &DiskStore{Dir: dir, URLPrefix: "/" + strings.Trim(urlPrefix, "/")}
}

func (d *DiskStore) Save(_ context.Context, name string, body io.Reader, _ string) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name = filepath.Base(name)
	dst, err := os.OpenFile(filepath.Join(d.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(dst, body); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return path.Join(d.URLPrefix, name), nil
}

// Remove deletes the file behind ref. A file that is already gone is not an
// error.
func (d *DiskStore) Remove(_ context.Context, ref string) error {
	p, ok := d.pathFor(ref)
	if !ok {
		return fmt.Errorf("image %q is not under %s", ref, d.URLPrefix)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *DiskStore) pathFor(ref string) (string, bool) {
	if !strings.HasPrefix(ref, d.URLPrefix+"/") {
		return "", false
	}
	name := strings.TrimPrefix(ref, d.URLPrefix+"/")
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", false
	}
	return filepath.Join(d.Dir, name), true
}
