package repo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/remote"
)

// receivePackServer is a minimal push endpoint recording what arrives.
type receivePackServer struct {
	mu       sync.Mutex
	refs     map[string]object.Hash
	store    *object.Store
	commands []remote.RefCommand
	packObjs int
	reject   map[string]string
}

func newReceivePackServer(t *testing.T) *receivePackServer {
	return &receivePackServer{
		refs:   map[string]object.Hash{},
		store:  object.NewStore(t.TempDir()),
		reject: map[string]string{},
	}
}

func (s *receivePackServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case r.URL.Path == "/info/refs" && r.URL.Query().Get("service") == remote.ServiceReceivePack:
			order := SortedRefNames(s.refs)
			w.Header().Set("Content-Type", "application/x-git-receive-pack-advertisement")
			remote.WriteAdvertisement(w, &remote.Advertisement{
				Service: remote.ServiceReceivePack,
				Refs:    s.refs,
				Order:   order,
				Peeled:  map[string]object.Hash{},
				Caps:    remote.ParseCaps("report-status"),
			})
		case r.URL.Path == "/git-receive-pack" && r.Method == http.MethodPost:
			commands, pack, err := remote.ParseReceivePackRequest(r.Body)
			if err != nil {
				t.Errorf("parsing push body: %v", err)
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			s.commands = append(s.commands, commands...)
			report := &remote.PushReport{UnpackOK: true}
			stored, err := object.UnpackInto(s.store, pack)
			if err != nil {
				report.UnpackOK = false
				report.UnpackReason = err.Error()
			} else {
				s.packObjs = len(stored)
				for _, cmd := range commands {
					if reason, ok := s.reject[cmd.Name]; ok {
						report.Results = append(report.Results, remote.RefResult{Name: cmd.Name, Reason: reason})
						continue
					}
					s.refs[cmd.Name] = cmd.New
					report.Results = append(report.Results, remote.RefResult{Name: cmd.Name, OK: true})
				}
			}
			w.Header().Set("Content-Type", "application/x-git-receive-pack-result")
			remote.WriteReportStatus(w, report)
		default:
			http.NotFound(w, r)
		}
	})
}

func pushClient(t *testing.T, url string) *remote.Client {
	t.Helper()
	c, err := remote.NewClient(url, remote.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestPushToEmptyRemote(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFile(t, r, "a.txt", "one", "c1")
	if err := r.AddRemote("origin", "https://example.com/p.git"); err != nil {
		t.Fatal(err)
	}
	server := newReceivePackServer(t)
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	res, err := r.Push(context.Background(), PushOptions{Client: pushClient(t, srv.URL)})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if res.Old != object.ZeroHash || res.New != c1 {
		t.Fatalf("result = %+v", res)
	}
	if len(server.commands) != 1 {
		t.Fatalf("server saw %d commands", len(server.commands))
	}
	cmd := server.commands[0]
	if cmd.Name != "refs/heads/main" || cmd.Old != object.ZeroHash || cmd.New != c1 {
		t.Fatalf("command = %+v", cmd)
	}
	if server.packObjs != 3 {
		t.Fatalf("pack carried %d objects, want 3", server.packObjs)
	}
	if server.refs["refs/heads/main"] != c1 {
		t.Fatal("server ref not updated")
	}
	tracking, err := r.ReadRef("refs/remotes/origin/main")
	if err != nil || tracking != c1 {
		t.Fatalf("tracking = (%s, %v)", tracking, err)
	}
}

func TestPushIncrementalExcludesRemoteObjects(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFile(t, r, "a.txt", "one", "c1")
	if err := r.AddRemote("origin", "https://example.com/p.git"); err != nil {
		t.Fatal(err)
	}
	server := newReceivePackServer(t)
	server.refs["refs/heads/main"] = c1
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	c2 := commitFile(t, r, "a.txt", "two", "c2")
	res, err := r.Push(context.Background(), PushOptions{Client: pushClient(t, srv.URL)})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if res.Old != c1 || res.New != c2 {
		t.Fatalf("result = %+v", res)
	}
	// Only c2's commit, tree, and blob travel.
	if server.packObjs != 3 {
		t.Fatalf("pack carried %d objects, want 3", server.packObjs)
	}
}

func TestPushUpToDate(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFile(t, r, "a.txt", "one", "c1")
	if err := r.AddRemote("origin", "https://example.com/p.git"); err != nil {
		t.Fatal(err)
	}
	server := newReceivePackServer(t)
	server.refs["refs/heads/main"] = c1
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	res, err := r.Push(context.Background(), PushOptions{Client: pushClient(t, srv.URL)})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !res.UpToDate {
		t.Fatalf("result = %+v, want UpToDate", res)
	}
	if len(server.commands) != 0 {
		t.Fatal("up-to-date push still sent commands")
	}
}

func TestPushRejectsNonFastForward(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFile(t, r, "a.txt", "one", "c1")
	if err := r.CreateBranch("topic", c1); err != nil {
		t.Fatal(err)
	}
	if err := r.CheckoutBranch("topic"); err != nil {
		t.Fatal(err)
	}
	c2 := commitFile(t, r, "a.txt", "two", "c2")
	if err := r.CheckoutBranch("main"); err != nil {
		t.Fatal(err)
	}
	if err := r.AddRemote("origin", "https://example.com/p.git"); err != nil {
		t.Fatal(err)
	}
	// Remote main is at c2; local main is at c1, which does not
	// contain it.
	server := newReceivePackServer(t)
	server.refs["refs/heads/main"] = c2
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	_, err := r.Push(context.Background(), PushOptions{Client: pushClient(t, srv.URL)})
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	if len(server.commands) != 0 {
		t.Fatal("rejected push still sent commands")
	}

	// Force overrides the check.
	res, err := r.Push(context.Background(), PushOptions{Force: true, Client: pushClient(t, srv.URL)})
	if err != nil {
		t.Fatalf("forced Push: %v", err)
	}
	if res.Old != c2 || res.New != c1 {
		t.Fatalf("forced result = %+v", res)
	}
}

func TestPushUnknownRemoteTip(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "a.txt", "one", "c1")
	if err := r.AddRemote("origin", "https://example.com/p.git"); err != nil {
		t.Fatal(err)
	}
	server := newReceivePackServer(t)
	server.refs["refs/heads/main"] = object.ComputeHash(object.TypeCommit, []byte("elsewhere"))
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	_, err := r.Push(context.Background(), PushOptions{Client: pushClient(t, srv.URL)})
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
}

func TestPushServerRejection(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "a.txt", "one", "c1")
	if err := r.AddRemote("origin", "https://example.com/p.git"); err != nil {
		t.Fatal(err)
	}
	server := newReceivePackServer(t)
	server.reject["refs/heads/main"] = "hook-declined"
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	_, err := r.Push(context.Background(), PushOptions{Client: pushClient(t, srv.URL)})
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	if _, trackErr := r.ReadRef("refs/remotes/origin/main"); trackErr == nil {
		t.Fatal("tracking ref advanced despite rejection")
	}
}
