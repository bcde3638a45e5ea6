package object

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zlib"

	"github.com/gritvcs/grit/pkg/errs"
)

// Store is a loose object store rooted at an objects directory. Objects
// live at <dir>/<2-hex>/<38-hex>, zlib-compressed with the type+size
// envelope inside the compressed stream.
type Store struct {
	dir string
}

// NewStore returns a store over dir. The directory is created on first
// write, so opening a store never touches the filesystem.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the objects directory root.
func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(h Hash) string {
	return filepath.Join(s.dir, string(h[:2]), string(h[2:]))
}

// Has reports whether the object exists, without reading it.
func (s *Store) Has(h Hash) bool {
	_, err := os.Stat(s.pathFor(h))
	return err == nil
}

// Write stores content under its computed id. Writing an object that
// already exists is a no-op returning the same id, which makes
// concurrent writers safe without locking.
func (s *Store) Write(t Type, content []byte) (Hash, error) {
	if !ValidType(t) {
		return "", errs.New(errs.KindUnsupported, "object type %q", t)
	}
	h := ComputeHash(t, content)
	dst := s.pathFor(h)
	if _, err := os.Stat(dst); err == nil {
		return h, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errs.Wrap(errs.KindUnknown, err, "creating fan-out dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "tmp-*")
	if err != nil {
		return "", errs.Wrap(errs.KindUnknown, err, "creating temp object")
	}
	defer os.Remove(tmp.Name())

	zw := zlib.NewWriter(tmp)
	fmt.Fprintf(zw, "%s %d\x00", t, len(content))
	if _, err := zw.Write(content); err != nil {
		tmp.Close()
		return "", errs.Wrap(errs.KindUnknown, err, "compressing object")
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return "", errs.Wrap(errs.KindUnknown, err, "flushing object")
	}
	if err := tmp.Close(); err != nil {
		return "", errs.Wrap(errs.KindUnknown, err, "closing temp object")
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", errs.Wrap(errs.KindUnknown, err, "installing object")
	}
	return h, nil
}

// Read loads and verifies an object. The content digest is recomputed
// on every read; a mismatch with the filename reports corruption.
func (s *Store) Read(h Hash) (Type, []byte, error) {
	f, err := os.Open(s.pathFor(h))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, errs.New(errs.KindNotFound, "object %s", h)
		}
		return "", nil, errs.Wrap(errs.KindUnknown, err, "opening object %s", h)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, errs.Wrap(errs.KindCorrupt, err, "object %s not a zlib stream", h)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, errs.Wrap(errs.KindCorrupt, err, "decompressing object %s", h)
	}

	t, content, err := splitEnvelope(raw)
	if err != nil {
		return "", nil, errs.Wrap(errs.KindCorrupt, err, "object %s", h)
	}
	if ComputeHash(t, content) != h {
		return "", nil, errs.New(errs.KindCorrupt, "object %s digest mismatch", h)
	}
	return t, content, nil
}

func splitEnvelope(raw []byte) (Type, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, errs.New(errs.KindCorrupt, "missing envelope terminator")
	}
	header := string(raw[:nul])
	content := raw[nul+1:]
	typ, sizeStr, found := cutSpace(header)
	if !found {
		return "", nil, errs.New(errs.KindCorrupt, "malformed envelope %q", header)
	}
	t := Type(typ)
	if !ValidType(t) {
		return "", nil, errs.New(errs.KindCorrupt, "unknown envelope type %q", typ)
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size != len(content) {
		return "", nil, errs.New(errs.KindCorrupt, "envelope size %q does not match %d bytes", sizeStr, len(content))
	}
	return t, content, nil
}

func cutSpace(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// ReadTyped loads an object and rejects a type mismatch. Asking for a
// commit and finding a blob is a corruption signal, not a miss.
func (s *Store) ReadTyped(h Hash, want Type) ([]byte, error) {
	t, content, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if t != want {
		return nil, errs.New(errs.KindCorrupt, "object %s is a %s, expected %s", h, t, want)
	}
	return content, nil
}

// ReadCommit loads and decodes a commit.
func (s *Store) ReadCommit(h Hash) (*Commit, error) {
	data, err := s.ReadTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return DecodeCommit(data)
}

// ReadTree loads and decodes a tree.
func (s *Store) ReadTree(h Hash) ([]TreeEntry, error) {
	data, err := s.ReadTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return DecodeTree(data)
}

// ReadTag loads and decodes a tag.
func (s *Store) ReadTag(h Hash) (*Tag, error) {
	data, err := s.ReadTyped(h, TypeTag)
	if err != nil {
		return nil, err
	}
	return DecodeTag(data)
}

// WriteBlob stores file content.
func (s *Store) WriteBlob(content []byte) (Hash, error) {
	return s.Write(TypeBlob, content)
}

// WriteTree encodes and stores a tree.
func (s *Store) WriteTree(entries []TreeEntry) (Hash, error) {
	data, err := EncodeTree(entries)
	if err != nil {
		return "", err
	}
	return s.Write(TypeTree, data)
}

// WriteCommit encodes and stores a commit.
func (s *Store) WriteCommit(c *Commit) (Hash, error) {
	data, err := EncodeCommit(c)
	if err != nil {
		return "", err
	}
	return s.Write(TypeCommit, data)
}

// Count walks the store and returns the number of loose objects.
// It exists for verification and tests, not hot paths.
func (s *Store) Count() (int, error) {
	n := 0
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindUnknown, err, "counting objects")
	}
	return n, nil
}
