package repo

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/pktline"
	"github.com/gritvcs/grit/pkg/remote"
)

// uploadPackServer serves discovery and upload-pack for a source
// repository over httptest.
func uploadPackServer(t *testing.T, src *Repo) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refs, err := src.ListRefs("refs/heads")
		if err != nil {
			t.Errorf("listing source refs: %v", err)
			http.Error(w, "broken", http.StatusInternalServerError)
			return
		}
		order := SortedRefNames(refs)
		switch {
		case r.URL.Path == "/info/refs" && r.URL.Query().Get("service") == remote.ServiceUploadPack:
			w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
			remote.WriteAdvertisement(w, &remote.Advertisement{
				Service: remote.ServiceUploadPack,
				Refs:    refs,
				Order:   order,
				Peeled:  map[string]object.Hash{},
				Caps:    remote.ParseCaps("side-band-64k symref=HEAD:refs/heads/main"),
			})
		case r.URL.Path == "/git-upload-pack" && r.Method == http.MethodPost:
			var roots []object.Hash
			for _, name := range order {
				roots = append(roots, refs[name])
			}
			objs, err := object.MissingFor(src.Store, roots, nil)
			if err != nil {
				t.Errorf("collecting objects: %v", err)
				http.Error(w, "broken", http.StatusInternalServerError)
				return
			}
			var pack bytes.Buffer
			if err := object.EncodePack(&pack, objs); err != nil {
				t.Errorf("encoding pack: %v", err)
				return
			}
			w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
			pw := pktline.NewWriter(w)
			pw.WriteString("NAK\n")
			remote.MuxSideband(pw, pack.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
}

func newFetchTarget(t *testing.T, url string) *Repo {
	t.Helper()
	dst := newTestRepo(t)
	if err := dst.AddRemote("origin", url); err != nil {
		t.Fatal(err)
	}
	return dst
}

func TestFetchDownloadsHistory(t *testing.T) {
	src := newTestRepo(t)
	commitFile(t, src, "a.txt", "one", "c1")
	c2 := commitFile(t, src, "a.txt", "two", "c2")
	srv := uploadPackServer(t, src)
	defer srv.Close()

	dst := newFetchTarget(t, srv.URL)
	client, err := remote.NewClient(srv.URL, remote.Options{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := dst.Fetch(context.Background(), FetchOptions{Client: client})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// Two commits, two trees, two blobs.
	if res.NewObjects != 6 {
		t.Fatalf("NewObjects = %d, want 6", res.NewObjects)
	}
	if n := objectCount(t, dst); n != 6 {
		t.Fatalf("store has %d objects, want 6", n)
	}
	tracking, err := dst.ReadRef("refs/remotes/origin/main")
	if err != nil {
		t.Fatalf("tracking ref: %v", err)
	}
	if tracking != c2 {
		t.Fatalf("tracking = %s, want %s", tracking, c2)
	}

	// FETCH_HEAD carries exactly one line for the one fetched branch.
	fh, err := os.ReadFile(dst.path("FETCH_HEAD"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(fh), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("FETCH_HEAD has %d lines: %q", len(lines), fh)
	}
	if !strings.HasPrefix(lines[0], string(c2)+"\t") || !strings.Contains(lines[0], "branch 'main' of "+srv.URL) {
		t.Fatalf("FETCH_HEAD line = %q", lines[0])
	}

	// Local branches untouched.
	if _, err := dst.ReadRef("refs/heads/other"); err == nil {
		t.Fatal("fetch invented a local branch")
	}
}

func TestFetchSecondRunUpToDate(t *testing.T) {
	src := newTestRepo(t)
	commitFile(t, src, "a.txt", "one", "c1")
	srv := uploadPackServer(t, src)
	defer srv.Close()

	dst := newFetchTarget(t, srv.URL)
	client, _ := remote.NewClient(srv.URL, remote.Options{})
	if _, err := dst.Fetch(context.Background(), FetchOptions{Client: client}); err != nil {
		t.Fatal(err)
	}
	before := objectCount(t, dst)
	res, err := dst.Fetch(context.Background(), FetchOptions{Client: client})
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if !res.UpToDate {
		t.Fatalf("result = %+v, want UpToDate", res)
	}
	if after := objectCount(t, dst); after != before {
		t.Fatalf("object count %d -> %d on no-op fetch", before, after)
	}
}

func TestFetchIncremental(t *testing.T) {
	src := newTestRepo(t)
	commitFile(t, src, "a.txt", "one", "c1")
	srv := uploadPackServer(t, src)
	defer srv.Close()

	dst := newFetchTarget(t, srv.URL)
	client, _ := remote.NewClient(srv.URL, remote.Options{})
	if _, err := dst.Fetch(context.Background(), FetchOptions{Client: client}); err != nil {
		t.Fatal(err)
	}
	before := objectCount(t, dst)

	c2 := commitFile(t, src, "a.txt", "two", "c2")
	res, err := dst.Fetch(context.Background(), FetchOptions{Client: client})
	if err != nil {
		t.Fatalf("incremental Fetch: %v", err)
	}
	if res.UpToDate {
		t.Fatal("incremental fetch reported up to date")
	}
	// Stores are idempotent, so resending old objects must not change
	// the count beyond the new commit, tree, and blob.
	if after := objectCount(t, dst); after != before+3 {
		t.Fatalf("object count %d -> %d, want +3", before, after)
	}
	tracking, _ := dst.ReadRef("refs/remotes/origin/main")
	if tracking != c2 {
		t.Fatalf("tracking = %s, want %s", tracking, c2)
	}
}

func TestFetchSimulateMode(t *testing.T) {
	src := newTestRepo(t)
	c1 := commitFile(t, src, "a.txt", "one", "c1")
	dst := newFetchTarget(t, "https://unreachable.example.com/repo.git")
	t.Setenv(EnvFetchSimulate, src.Root)

	res, err := dst.Fetch(context.Background(), FetchOptions{})
	if err != nil {
		t.Fatalf("simulated Fetch: %v", err)
	}
	if res.NewObjects != 3 {
		t.Fatalf("NewObjects = %d, want 3", res.NewObjects)
	}
	tracking, err := dst.ReadRef("refs/remotes/origin/main")
	if err != nil || tracking != c1 {
		t.Fatalf("tracking = (%s, %v), want %s", tracking, err, c1)
	}
}

func TestFetchUnconfiguredRemote(t *testing.T) {
	dst := newTestRepo(t)
	if _, err := dst.Fetch(context.Background(), FetchOptions{Remote: "origin"}); err == nil {
		t.Fatal("fetch from unconfigured remote succeeded")
	}
}
