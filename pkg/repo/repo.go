// Package repo implements the on-disk repository: layout, refs,
// staging, commits, merges, and synchronization with remotes.
package repo

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// MetaDir is the repository metadata directory name.
const MetaDir = ".grit"

// Repo is an opened repository. Root is the working tree; Dir is the
// metadata directory inside it.
type Repo struct {
	Root  string
	Dir   string
	Store *object.Store

	log *zap.Logger
}

// Init creates a fresh repository at root with an unborn main branch.
func Init(root string, log *zap.Logger) (*Repo, error) {
	dir := filepath.Join(root, MetaDir)
	if _, err := os.Stat(dir); err == nil {
		return nil, errs.New(errs.KindIntegrity, "repository already exists at %s", root)
	}
	for _, sub := range []string{
		"objects",
		filepath.Join("refs", "heads"),
		filepath.Join("refs", "remotes"),
		"logs",
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, errs.Wrap(errs.KindUnknown, err, "creating %s", sub)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "writing HEAD")
	}
	return Open(root, log)
}

// Open finds the repository containing dir, walking toward the
// filesystem root the way every subcommand expects.
func Open(dir string, log *zap.Logger) (*Repo, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "resolving %s", dir)
	}
	for cur := abs; ; {
		meta := filepath.Join(cur, MetaDir)
		if fi, err := os.Stat(meta); err == nil && fi.IsDir() {
			return &Repo{
				Root:  cur,
				Dir:   meta,
				Store: object.NewStore(filepath.Join(meta, "objects")),
				log:   log,
			}, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, errs.New(errs.KindNotFound, "no repository found above %s", abs)
		}
		cur = parent
	}
}

// Logger returns the repository logger.
func (r *Repo) Logger() *zap.Logger { return r.log }

func (r *Repo) path(parts ...string) string {
	return filepath.Join(append([]string{r.Dir}, parts...)...)
}

// workPath maps a repository-relative path to the working tree.
func (r *Repo) workPath(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

// relPath converts an on-disk path to the slash-separated
// repository-relative form used in trees and the staging index.
func (r *Repo) relPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errs.Wrap(errs.KindUnknown, err, "resolving %s", p)
	}
	rel, err := filepath.Rel(r.Root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errs.New(errs.KindNotFound, "%s is outside the repository", p)
	}
	return filepath.ToSlash(rel), nil
}
