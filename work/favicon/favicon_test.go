package favicon

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newChecker() *Checker {
	return New("test-agent", 2*time.Second)
}

// site serves a homepage plus whatever extra handlers a test registers.
func site(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func serveImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Write([]byte("\x89PNG"))
}

func TestRepairKeepsWorkingFavicon(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/icon.png", serveImage)
	srv := site(t, mux)

	current := srv.URL + "/icon.png"
	if got := newChecker().Repair(srv.URL, current); got != current {
		t.Errorf("Repair = %q, want kept %q", got, current)
	}
}

func TestRepairFindsLinkTagIcon(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><LINK REL="shortcut icon" HREF="/assets/logo.png"></head></html>`)
	})
	mux.HandleFunc("/assets/logo.png", serveImage)
	srv := site(t, mux)

	got := newChecker().Repair(srv.URL, srv.URL+"/dead.png")
	if want := srv.URL + "/assets/logo.png"; got != want {
		t.Errorf("Repair = %q, want %q", got, want)
	}
}

func TestRepairFallsBackToFaviconIco(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/favicon.ico" {
			serveImage(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><head></head></html>")
	})
	srv := site(t, mux)

	got := newChecker().Repair(srv.URL, "")
	if want := srv.URL + "/favicon.ico"; got != want {
		t.Errorf("Repair = %q, want %q", got, want)
	}
}

func TestRepairClearsWhenNothingFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := site(t, mux)

	if got := newChecker().Repair(srv.URL, srv.URL+"/dead.png"); got != "" {
		t.Errorf("Repair = %q, want empty", got)
	}
}

func TestRepairClearsWithoutHomepage(t *testing.T) {
	if got := newChecker().Repair("", "http://127.0.0.1:1/dead.png"); got != "" {
		t.Errorf("Repair = %q, want empty", got)
	}
}

func TestRepairCachesPerHomepage(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			hits.Add(1)
		}
		if r.URL.Path == "/favicon.ico" {
			serveImage(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	})
	srv := site(t, mux)

	c := newChecker()
	first := c.Repair(srv.URL, "")
	second := c.Repair(srv.URL, "")

	if first != second {
		t.Errorf("cache returned different results: %q vs %q", first, second)
	}
	if hits.Load() != 1 {
		t.Errorf("homepage fetched %d times, want 1", hits.Load())
	}
}

func TestIsImageRejectsNonImages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	})
	mux.HandleFunc("/icon.png", serveImage)
	srv := site(t, mux)

	c := newChecker()
	if c.isImage(srv.URL + "/page.html") {
		t.Error("text/html accepted as image")
	}
	if !c.isImage(srv.URL + "/icon.png") {
		t.Error("image/png rejected")
	}
	if c.isImage("http://127.0.0.1:1/icon.png") {
		t.Error("unreachable URL accepted as image")
	}
}
