package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

func serveAdvert(w http.ResponseWriter, service string, refs map[string]object.Hash, order []string, caps string) {
	w.Header().Set("Content-Type", "application/x-"+service+"-advertisement")
	WriteAdvertisement(w, &Advertisement{
		Service: service,
		Refs:    refs,
		Order:   order,
		Peeled:  map[string]object.Hash{},
		Caps:    ParseCaps(caps),
	})
}

func TestDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info/refs" || r.URL.Query().Get("service") != ServiceUploadPack {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
			http.NotFound(w, r)
			return
		}
		serveAdvert(w, ServiceUploadPack,
			map[string]object.Hash{"refs/heads/main": idA},
			[]string{"refs/heads/main"},
			"side-band-64k symref=HEAD:refs/heads/main")
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, Options{})
	if err != nil {
		t.Fatal(err)
	}
	adv, err := c.Discover(context.Background(), ServiceUploadPack)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if adv.Refs["refs/heads/main"] != idA {
		t.Fatalf("refs = %v", adv.Refs)
	}
}

func TestDiscoverRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		serveAdvert(w, ServiceUploadPack, map[string]object.Hash{"refs/heads/main": idA}, []string{"refs/heads/main"}, "")
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, Options{MaxAttempts: 3})
	if _, err := c.Discover(context.Background(), ServiceUploadPack); err != nil {
		t.Fatalf("Discover after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d calls, want 3", calls.Load())
	}
}

func TestDiscoverUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "who are you", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, Options{MaxAttempts: 1})
	_, err := c.Discover(context.Background(), ServiceUploadPack)
	if !errs.Is(err, errs.KindAuth) {
		t.Fatalf("err = %v, want Auth", err)
	}
}

func TestDiscoverPromptsOnceFor401(t *testing.T) {
	var sawToken atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sesame" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		sawToken.Add(1)
		serveAdvert(w, ServiceUploadPack, map[string]object.Hash{"refs/heads/main": idA}, []string{"refs/heads/main"}, "")
	}))
	defer srv.Close()

	prompts := 0
	c, _ := NewClient(srv.URL, Options{
		MaxAttempts: 1,
		TokenPrompt: func() (string, error) {
			prompts++
			return "sesame", nil
		},
	})
	if _, err := c.Discover(context.Background(), ServiceUploadPack); err != nil {
		t.Fatalf("Discover with prompt: %v", err)
	}
	if prompts != 1 {
		t.Fatalf("prompted %d times, want 1", prompts)
	}
	if sawToken.Load() != 1 {
		t.Fatal("server never saw the prompted token")
	}

	// A second rejection must not prompt again.
	c2, _ := NewClient(srv.URL, Options{
		MaxAttempts: 1,
		TokenPrompt: func() (string, error) { prompts++; return "wrong", nil },
	})
	prompts = 0
	_, err := c2.Discover(context.Background(), ServiceUploadPack)
	if !errs.Is(err, errs.KindAuth) {
		t.Fatalf("err = %v, want Auth", err)
	}
	if prompts != 1 {
		t.Fatalf("prompted %d times after rejection, want 1", prompts)
	}
}

func TestDiscoverNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c, _ := NewClient(srv.URL, Options{MaxAttempts: 1})
	_, err := c.Discover(context.Background(), ServiceUploadPack)
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestDiscoverWrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>dumb server</html>"))
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL, Options{MaxAttempts: 1})
	_, err := c.Discover(context.Background(), ServiceUploadPack)
	if !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("err = %v, want Protocol", err)
	}
}

func TestNewClientRejectsNonHTTP(t *testing.T) {
	if _, err := NewClient("ssh://host/repo", Options{}); !errs.Is(err, errs.KindUnsupported) {
		t.Fatalf("err = %v, want Unsupported", err)
	}
}
