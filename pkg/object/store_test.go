package object

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/gritvcs/grit/pkg/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "objects"))
}

func TestStoreWriteRead(t *testing.T) {
	s := newTestStore(t)
	h, err := s.WriteBlob([]byte("hello\n"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	typ, content, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != TypeBlob || string(content) != "hello\n" {
		t.Fatalf("Read = (%s, %q)", typ, content)
	}
	if !s.Has(h) {
		t.Error("Has = false after write")
	}
}

func TestStoreWriteIdempotent(t *testing.T) {
	s := newTestStore(t)
	h1, err := s.WriteBlob([]byte("dup"))
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	h2, err := s.WriteBlob([]byte("dup"))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("ids differ: %s vs %s", h1, h2)
	}
	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Read(ComputeHash(TypeBlob, []byte("never written")))
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

// forgeObject plants an envelope at an arbitrary id, bypassing hashing.
// Tests use it to simulate on-disk tampering.
func forgeObject(t *testing.T, s *Store, id Hash, typ Type, content []byte) {
	t.Helper()
	dst := filepath.Join(s.Dir(), string(id[:2]), string(id[2:]))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(dst)
	if err != nil {
		t.Fatal(err)
	}
	zw := zlib.NewWriter(f)
	if _, err := fmt.Fprintf(zw, "%s %d\x00", typ, len(content)); err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreDetectsTamperedObject(t *testing.T) {
	s := newTestStore(t)
	fake := ComputeHash(TypeBlob, []byte("what the name claims"))
	forgeObject(t, s, fake, TypeBlob, []byte("what is actually stored"))
	_, _, err := s.Read(fake)
	if !errs.Is(err, errs.KindCorrupt) {
		t.Fatalf("err = %v, want Corrupt", err)
	}
}

func TestStoreDetectsGarbage(t *testing.T) {
	s := newTestStore(t)
	h := ComputeHash(TypeBlob, []byte("x"))
	dst := filepath.Join(s.Dir(), string(h[:2]), string(h[2:]))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("not zlib at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.Read(h)
	if !errs.Is(err, errs.KindCorrupt) {
		t.Fatalf("err = %v, want Corrupt", err)
	}
}

func TestReadTypedMismatch(t *testing.T) {
	s := newTestStore(t)
	h, err := s.WriteBlob([]byte("blob content"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadCommit(h); !errs.Is(err, errs.KindCorrupt) {
		t.Fatalf("ReadCommit(blob) = %v, want Corrupt", err)
	}
}
