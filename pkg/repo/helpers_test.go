package repo

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/object"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	t.Setenv(EnvAuthorName, "Test User")
	t.Setenv(EnvAuthorEmail, "test@example.com")
	r, err := Init(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

// writeAndAdd drops a file into the working tree and stages it.
func writeAndAdd(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	dst := filepath.Join(r.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(dst); err != nil {
		t.Fatalf("Add(%s): %v", rel, err)
	}
}

// commitFile stages one file and commits, returning the new id.
func commitFile(t *testing.T, r *Repo, rel, content, msg string) object.Hash {
	t.Helper()
	writeAndAdd(t, r, rel, content)
	id, err := r.Commit(msg, nil)
	if err != nil {
		t.Fatalf("Commit(%q): %v", msg, err)
	}
	return id
}

func readWorkFile(t *testing.T, r *Repo, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading %s: %v", rel, err)
	}
	return string(data)
}

func objectCount(t *testing.T, r *Repo) int {
	t.Helper()
	n, err := r.Store.Count()
	if err != nil {
		t.Fatal(err)
	}
	return n
}
