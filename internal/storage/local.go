package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements FileStore on the local filesystem rooted at a
// data directory. MoveTree is a single os.Rename, so a crash mid-move
// leaves either the old or the new tree fully present.
type LocalStore struct {
	root string
}

// NewLocal creates a local filesystem store rooted at dir, creating the
// directory if needed.
func NewLocal(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

var _ FileStore = (*LocalStore)(nil)

// abs converts a slash-separated storage key into an absolute path under
// the root, rejecting traversal outside it.
func (l *LocalStore) abs(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.root, clean), nil
}

// Put writes the object atomically: content lands in a temp file next to
// the destination and is renamed into place.
func (l *LocalStore) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	dst, err := l.abs(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("create parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return ObjectInfo{}, fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return ObjectInfo{}, fmt.Errorf("finalize object: %w", err)
	}
	st, err := os.Stat(dst)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  contentTypeOf(key, opt.ContentType),
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens the file at key.
func (l *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	p, err := l.abs(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrNotExist
		}
		return nil, ObjectInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	info := ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  contentTypeOf(key, ""),
		LastModified: st.ModTime(),
	}
	return f, info, nil
}

// Delete removes the file and prunes now-empty parent directories up to
// the root. Missing files are not an error.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.abs(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	for dir := filepath.Dir(p); strings.HasPrefix(dir, l.root) && dir != l.root; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break // not empty or still in use
		}
	}
	return nil
}

// Exists reports whether key is a real file, or a directory containing at
// least one real file.
func (l *LocalStore) Exists(ctx context.Context, keyOrPrefix string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := l.abs(keyOrPrefix)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !st.IsDir() {
		return realFile(st.Name()), nil
	}
	found := false
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && realFile(d.Name()) {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found, err
}

// List returns every real file under the prefix directory.
func (l *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := l.abs(prefix)
	if err != nil {
		return nil, err
	}
	var out []ObjectInfo
	err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !realFile(d.Name()) {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{
			Key:          filepath.ToSlash(rel),
			Size:         st.Size(),
			ContentType:  contentTypeOf(path, ""),
			LastModified: st.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MoveTree renames the directory at oldPrefix to newPrefix. The rename is
// the atomicity boundary: no copy+delete, so there is never a moment with
// both trees half-populated.
func (l *LocalStore) MoveTree(ctx context.Context, oldPrefix, newPrefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	oldDir, err := l.abs(oldPrefix)
	if err != nil {
		return err
	}
	newDir, err := l.abs(newPrefix)
	if err != nil {
		return err
	}
	if _, err := os.Stat(oldDir); err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to relocate
		}
		return err
	}
	if has, err := l.Exists(ctx, newPrefix); err != nil {
		return err
	} else if has {
		return ErrDestinationExists
	}
	// A stale destination directory holding only placeholder entries
	// would make os.Rename fail. Exists above already ruled out real
	// files under it, so clearing the whole tree loses nothing.
	if err := os.RemoveAll(newDir); err != nil {
		return fmt.Errorf("clear destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(newDir), 0o755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("rename tree: %w", err)
	}
	return nil
}

func contentTypeOf(key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
