package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage contains the physical file-tree abstraction and the
// canonical path resolver. Backends are selected by configuration and
// injected at startup; nothing in the codebase reaches for a global
// storage handle.

// ErrDestinationExists is returned by MoveTree when the destination
// already holds files. Moves fail closed instead of silently merging
// directory contents.
var ErrDestinationExists = errors.New("destination tree already exists")

// ErrNotExist is returned by Get for a missing key.
var ErrNotExist = errors.New("object does not exist")

// PutObjectOptions define optional parameters for storing files.
// Size should be the exact number of bytes if known; if unknown, set to -1
// and the implementation will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored file.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// FileStore is the storage backend for document bytes and flat tabular
// files. Keys are slash-separated relative paths produced by the path
// resolver.
type FileStore interface {
	// Put stores an object under the given key using the provided reader.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its
	// info. Returns ErrNotExist when the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether any real file lives at the given key or under
	// it as a prefix. Dotfiles and placeholder entries do not count.
	Exists(ctx context.Context, keyOrPrefix string) (bool, error)
	// List returns the real files stored under a prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// MoveTree relocates every file under oldPrefix to newPrefix. A failed
	// move must leave either the old or the new tree fully present, never a
	// partial split, and MoveTree must fail with ErrDestinationExists when
	// newPrefix already holds files. Moving a missing tree is a no-op.
	MoveTree(ctx context.Context, oldPrefix, newPrefix string) error
}

// placeholderName matches the empty-folder marker some tools drop into
// otherwise empty directories; it never counts as a real file.
const placeholderName = ".emptyFolderPlaceholder"

// realFile reports whether a base name denotes actual document content.
func realFile(name string) bool {
	return name != "" && name != placeholderName && name[0] != '.'
}
