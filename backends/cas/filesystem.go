package cas

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/types"
)

// FilesystemAdapter removes blobs from a worker's CAS directory. Blob files
// are named <hash>, <hash>_exec or <digestFunction>_<hash>_exec; directory
// markers end in _dir and are never touched.
type FilesystemAdapter struct {
	logger types.Logger
	root   string
}

func NewFilesystemAdapter(logger types.Logger, root string) *FilesystemAdapter {
	return &FilesystemAdapter{logger: logger, root: root}
}

func (a *FilesystemAdapter) ID() types.BackendID {
	return types.BackendFilesystem
}

func (a *FilesystemAdapter) Family() types.CacheFamily {
	return types.FamilyCAS
}

func (a *FilesystemAdapter) Flush(ctx context.Context, scope types.Scope) (backends.Removal, error) {
	var match func(name string) bool

	switch scope.Kind {
	case types.ScopeAll:
		match = func(string) bool { return true }
	case types.ScopeInstance:
		// blobs are shared across instances on disk
		return backends.Removal{}, nil
	case types.ScopeDigestPrefix:
		match = func(name string) bool { return HasDigestPrefix(name, scope.DigestPrefix) }
	default:
		return backends.Removal{}, types.Errorf(types.ErrInvalidParameter, "unknown flush scope: %s", scope.Kind)
	}

	var removal backends.Removal

	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() || !IsCASFile(d.Name()) || !match(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			a.logger.Warn("Failed to stat CAS file", zap.String("path", path), zap.Error(err))
			return nil
		}

		if err := os.Remove(path); err != nil {
			a.logger.Warn("Failed to delete CAS file", zap.String("path", path), zap.Error(err))
			return nil
		}

		removal.Entries++
		removal.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return removal, types.WrapError(err, "failed to walk CAS root "+a.root)
	}

	return removal, nil
}

// IsCASFile reports whether a file name looks like a stored blob.
func IsCASFile(name string) bool {
	if strings.HasSuffix(name, "_dir") {
		return false
	}
	return strings.Contains(name, "_") || isLikelyHash(name)
}

// HasDigestPrefix extracts the hash part of a blob file name and matches it.
func HasDigestPrefix(name, prefix string) bool {
	hash := name
	if strings.Contains(name, "_") {
		parts := strings.Split(name, "_")
		switch len(parts) {
		case 2:
			hash = parts[0]
		case 3:
			hash = parts[1]
		default:
			return false
		}
	}
	return strings.HasPrefix(hash, prefix)
}

func isLikelyHash(name string) bool {
	if len(name) < 8 {
		return false
	}
	for _, c := range name {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
