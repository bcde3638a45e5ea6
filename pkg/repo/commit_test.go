package repo

import (
	"strings"
	"testing"

	"github.com/gritvcs/grit/pkg/errs"
)

func TestCommitAdvancesBranch(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFile(t, r, "a.txt", "one", "first")
	c2 := commitFile(t, r, "a.txt", "two", "second")

	commit, err := r.Store.ReadCommit(c2)
	if err != nil {
		t.Fatal(err)
	}
	if len(commit.Parents) != 1 || commit.Parents[0] != c1 {
		t.Fatalf("parents = %v, want [%s]", commit.Parents, c1)
	}
	if commit.Author.Name != "Test User" || commit.Author.Email != "test@example.com" {
		t.Errorf("author = %+v", commit.Author)
	}
	if commit.Message != "second\n" {
		t.Errorf("message = %q", commit.Message)
	}
}

func TestCommitNothingStaged(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Commit("empty", nil); !errs.Is(err, errs.KindIntegrity) {
		t.Fatalf("err = %v, want Integrity", err)
	}
}

func TestCommitUnchangedTree(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "a.txt", "one", "first")
	if _, err := r.Commit("again", nil); !errs.Is(err, errs.KindIntegrity) {
		t.Fatalf("err = %v, want Integrity", err)
	}
}

func TestCommitEmptyMessage(t *testing.T) {
	r := newTestRepo(t)
	writeAndAdd(t, r, "a.txt", "x")
	if _, err := r.Commit("   \n", nil); !errs.Is(err, errs.KindIntegrity) {
		t.Fatalf("err = %v, want Integrity", err)
	}
}

func TestCommitWithoutIdentity(t *testing.T) {
	r := newTestRepo(t)
	writeAndAdd(t, r, "a.txt", "x")
	t.Setenv(EnvAuthorName, "")
	if _, err := r.Commit("msg", nil); !errs.Is(err, errs.KindIntegrity) {
		t.Fatalf("err = %v, want Integrity", err)
	}
}

type fakeSigner struct{ payload []byte }

func (f *fakeSigner) SignCommit(payload []byte) (string, error) {
	f.payload = payload
	return "-----BEGIN FAKE-----\nsig\n-----END FAKE-----", nil
}

func TestCommitSigned(t *testing.T) {
	r := newTestRepo(t)
	writeAndAdd(t, r, "a.txt", "x")
	signer := &fakeSigner{}
	id, err := r.Commit("signed work", signer)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	c, err := r.Store.ReadCommit(id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.GPGSig, "BEGIN FAKE") {
		t.Fatalf("GPGSig = %q", c.GPGSig)
	}
	// The signed payload is the commit without its signature header.
	if strings.Contains(string(signer.payload), "gpgsig") {
		t.Error("signer saw its own signature header")
	}
	if !strings.Contains(string(signer.payload), "signed work") {
		t.Error("signer payload missing the message")
	}
}

func TestLogFirstParent(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFile(t, r, "a.txt", "one", "first")
	c2 := commitFile(t, r, "a.txt", "two", "second")
	c3 := commitFile(t, r, "a.txt", "three", "third")

	entries, err := r.Log(c3, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("log has %d entries, want 3", len(entries))
	}
	want := []struct {
		id  string
		msg string
	}{
		{string(c3), "third\n"},
		{string(c2), "second\n"},
		{string(c1), "first\n"},
	}
	for i, w := range want {
		if string(entries[i].ID) != w.id || entries[i].Commit.Message != w.msg {
			t.Errorf("entry %d = (%s, %q), want (%s, %q)",
				i, entries[i].ID, entries[i].Commit.Message, w.id, w.msg)
		}
	}

	limited, err := r.Log(c3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited log has %d entries, want 2", len(limited))
	}
}
