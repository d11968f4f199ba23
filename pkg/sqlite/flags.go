package sqlite

import (
	"net/url"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// OpenFlags select the access mode and threading mode of a connection. The
// values match the engine's SQLITE_OPEN_* constants.
type OpenFlags int

const (
	OpenReadOnly     OpenFlags = 0x00000001
	OpenReadWrite    OpenFlags = 0x00000002
	OpenCreate       OpenFlags = 0x00000004
	OpenMemory       OpenFlags = 0x00000080
	OpenNoMutex      OpenFlags = 0x00008000
	OpenFullMutex    OpenFlags = 0x00010000
	OpenSharedCache  OpenFlags = 0x00020000
	OpenPrivateCache OpenFlags = 0x00040000
)

// MemoryPath opens a private, non-persistent store.
const MemoryPath = ":memory:"

// Has reports whether every bit in o is set in f.
func (f OpenFlags) Has(o OpenFlags) bool { return f&o == o }

// Serialized reports whether the engine locks the connection internally.
func (f OpenFlags) Serialized() bool { return !f.Has(OpenNoMutex) }

// ThreadingMode names the threading mode the flags select.
func (f OpenFlags) ThreadingMode() string {
	switch {
	case f.Has(OpenNoMutex):
		return "multi-thread"
	case f.Has(OpenFullMutex):
		return "serialized"
	default:
		return "default"
	}
}

func (f OpenFlags) validate() *Exception {
	switch {
	case f.Has(OpenReadOnly) && f.Has(OpenReadWrite):
		return newException("open", sqlite3.ErrMisuse, "open flags select both read-only and read-write")
	case !f.Has(OpenReadOnly) && !f.Has(OpenReadWrite):
		return newException("open", sqlite3.ErrMisuse, "open flags select neither read-only nor read-write")
	case f.Has(OpenCreate) && !f.Has(OpenReadWrite):
		return newException("open", sqlite3.ErrMisuse, "create requires read-write access")
	case f.Has(OpenNoMutex) && f.Has(OpenFullMutex):
		return newException("open", sqlite3.ErrMisuse, "open flags select both no-mutex and full-mutex")
	case f.Has(OpenSharedCache) && f.Has(OpenPrivateCache):
		return newException("open", sqlite3.ErrMisuse, "open flags select both shared and private cache")
	}
	return nil
}

var pathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// dsn renders path, flags and vfs as a file: URI understood by both the
// driver and the engine.
func (f OpenFlags) dsn(path, vfs string) string {
	params := url.Values{}
	switch {
	case f.Has(OpenMemory):
		params.Set("mode", "memory")
	case f.Has(OpenReadOnly):
		params.Set("mode", "ro")
	case f.Has(OpenCreate):
		params.Set("mode", "rwc")
	default:
		params.Set("mode", "rw")
	}
	switch {
	case f.Has(OpenNoMutex):
		params.Set("_mutex", "no")
	case f.Has(OpenFullMutex):
		params.Set("_mutex", "full")
	}
	switch {
	case f.Has(OpenSharedCache):
		params.Set("cache", "shared")
	case f.Has(OpenPrivateCache):
		params.Set("cache", "private")
	}
	if vfs != "" {
		params.Set("vfs", vfs)
	}

	name := pathEscaper.Replace(path)
	if path == MemoryPath {
		params.Del("mode")
	}
	if enc := params.Encode(); enc != "" {
		return "file:" + name + "?" + enc
	}
	return "file:" + name
}
