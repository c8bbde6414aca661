package resolver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newResolver() *Resolver {
	return New("test-agent", 2*time.Second, 5)
}

func TestResolveDirectStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-name", "Test Radio")
		w.Header().Set("icy-br", "128")
		w.Header().Set("icy-genre", "jazz")
		w.Header().Set("icy-url", "http://radio.example.com")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	outcomes := newResolver().Resolve(srv.URL, false)

	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	if !outcomes[0].OK() {
		t.Fatalf("outcome error: %v", outcomes[0].Err)
	}

	info := outcomes[0].Info
	if info.URL != srv.URL {
		t.Errorf("URL = %q, want %q", info.URL, srv.URL)
	}
	if info.Codec != "MP3" {
		t.Errorf("Codec = %q, want MP3", info.Codec)
	}
	if info.Bitrate != 128 {
		t.Errorf("Bitrate = %d, want 128", info.Bitrate)
	}
	if info.Name != "Test Radio" {
		t.Errorf("Name = %q, want Test Radio", info.Name)
	}
	if info.Genre != "jazz" {
		t.Errorf("Genre = %q, want jazz", info.Genre)
	}
	if info.Homepage != "http://radio.example.com" {
		t.Errorf("Homepage = %q", info.Homepage)
	}
	if info.Hls {
		t.Error("Hls = true, want false")
	}
}

func TestResolveMissingICYHeadersDefaultToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/aacp")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	outcomes := newResolver().Resolve(srv.URL, false)

	if len(outcomes) != 1 || !outcomes[0].OK() {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	info := outcomes[0].Info
	if info.Bitrate != 0 || info.Sampling != 0 {
		t.Errorf("numeric defaults: bitrate=%d sampling=%d, want 0/0", info.Bitrate, info.Sampling)
	}
	if info.Name != "" || info.Genre != "" {
		t.Errorf("text defaults: name=%q genre=%q, want empty", info.Name, info.Genre)
	}
	if info.Codec != "AAC+" {
		t.Errorf("Codec = %q, want AAC+", info.Codec)
	}
}

func TestResolveFollowsRedirect(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(200)
	}))
	defer target.Close()

	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirect.Close()

	outcomes := newResolver().Resolve(redirect.URL, false)

	if len(outcomes) != 1 || !outcomes[0].OK() {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if outcomes[0].Info.URL != target.URL {
		t.Errorf("URL = %q, want final URL %q", outcomes[0].Info.URL, target.URL)
	}
}

func TestResolveRelativeRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/real")
		w.WriteHeader(301)
	})
	mux.HandleFunc("/real", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg")
		w.WriteHeader(200)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outcomes := newResolver().Resolve(srv.URL+"/start", false)

	if len(outcomes) != 1 || !outcomes[0].OK() {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if want := srv.URL + "/real"; outcomes[0].Info.URL != want {
		t.Errorf("URL = %q, want %q", outcomes[0].Info.URL, want)
	}
}

func TestResolveRedirectLoopTerminates(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL, http.StatusMovedPermanently)
	}))
	defer srv.Close()

	done := make(chan []Outcome, 1)
	go func() { done <- newResolver().Resolve(srv.URL, false) }()

	select {
	case outcomes := <-done:
		if len(outcomes) != 1 || outcomes[0].OK() {
			t.Fatalf("outcomes = %+v, want single error", outcomes)
		}
		if !strings.Contains(outcomes[0].Err.Error(), "depth") {
			t.Errorf("err = %v, want mention of depth", outcomes[0].Err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("redirect loop did not terminate")
	}
}

func TestResolveEmptyPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/x-scpls")
		fmt.Fprint(w, "[playlist]\nNumberOfEntries=0\n")
	}))
	defer srv.Close()

	outcomes := newResolver().Resolve(srv.URL, false)

	if len(outcomes) != 1 || outcomes[0].OK() {
		t.Fatalf("outcomes = %+v, want single error", outcomes)
	}
	if !strings.Contains(outcomes[0].Err.Error(), "empty playlist") {
		t.Errorf("err = %v, want empty playlist", outcomes[0].Err)
	}
}

func TestResolvePLSIntoStream(t *testing.T) {
	stream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-br", "192")
		w.WriteHeader(200)
	}))
	defer stream.Close()

	pls := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-scpls")
		fmt.Fprintf(w, "[playlist]\nFile1=%s\nNumberOfEntries=1\n", stream.URL)
	}))
	defer pls.Close()

	outcomes := newResolver().Resolve(pls.URL, false)

	if len(outcomes) != 1 || !outcomes[0].OK() {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if outcomes[0].Info.URL != stream.URL {
		t.Errorf("URL = %q, want nested %q", outcomes[0].Info.URL, stream.URL)
	}
	if outcomes[0].Info.Bitrate != 192 {
		t.Errorf("Bitrate = %d, want 192", outcomes[0].Info.Bitrate)
	}
}

func TestResolvePlaylistRelativeEntry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list.m3u", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/x-mpegurl")
		fmt.Fprint(w, "#EXTM3U\n#EXTINF:-1,Rel\nstream.mp3\n")
	})
	mux.HandleFunc("/stream.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(200)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outcomes := newResolver().Resolve(srv.URL+"/list.m3u", false)

	if len(outcomes) != 1 || !outcomes[0].OK() {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if want := srv.URL + "/stream.mp3"; outcomes[0].Info.URL != want {
		t.Errorf("URL = %q, want %q", outcomes[0].Info.URL, want)
	}
}

func TestResolveHLSManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=128000\nlow/index.m3u8\n")
	}))
	defer srv.Close()

	outcomes := newResolver().Resolve(srv.URL, false)

	if len(outcomes) != 1 || !outcomes[0].OK() {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	info := outcomes[0].Info
	if !info.Hls {
		t.Error("Hls = false, want true")
	}
	if info.Codec != "UNKNOWN" {
		t.Errorf("Codec = %q, want UNKNOWN", info.Codec)
	}
	if info.URL != srv.URL {
		t.Errorf("URL = %q, want manifest URL %q (no descent into variants)", info.URL, srv.URL)
	}
}

func TestResolveFollowAllCollectsEverything(t *testing.T) {
	streamA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(200)
	}))
	defer streamA.Close()
	streamB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/aac")
		w.WriteHeader(200)
	}))
	defer streamB.Close()

	playlistBody := fmt.Sprintf("[playlist]\nFile1=%s\nFile2=%s\n", streamA.URL, streamB.URL)
	pls := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/x-scpls")
		fmt.Fprint(w, playlistBody)
	}))
	defer pls.Close()

	all := newResolver().Resolve(pls.URL, true)
	if len(all) != 2 {
		t.Fatalf("followAll: got %d outcomes, want 2", len(all))
	}
	if all[0].Info.URL != streamA.URL || all[1].Info.URL != streamB.URL {
		t.Errorf("candidate order not preserved: %q then %q", all[0].Info.URL, all[1].Info.URL)
	}

	first := newResolver().Resolve(pls.URL, false)
	if len(first) != 1 {
		t.Fatalf("short-circuit: got %d outcomes, want 1", len(first))
	}
	if first[0].Info.URL != streamA.URL {
		t.Errorf("short-circuit resolved %q, want first candidate %q", first[0].Info.URL, streamA.URL)
	}
}

func TestResolveUnknownContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>not a stream</html>")
	}))
	defer srv.Close()

	outcomes := newResolver().Resolve(srv.URL, false)

	if len(outcomes) != 1 || outcomes[0].OK() {
		t.Fatalf("outcomes = %+v, want single error", outcomes)
	}
	if !strings.Contains(outcomes[0].Err.Error(), "unknown content type") {
		t.Errorf("err = %v", outcomes[0].Err)
	}
}

func TestResolveConnectFailure(t *testing.T) {
	outcomes := newResolver().Resolve("http://127.0.0.1:1/stream", false)

	if len(outcomes) != 1 || outcomes[0].OK() {
		t.Fatalf("outcomes = %+v, want single error", outcomes)
	}

	var resErr *Error
	if e, ok := outcomes[0].Err.(*Error); ok {
		resErr = e
	}
	if resErr == nil || resErr.URL != "http://127.0.0.1:1/stream" {
		t.Errorf("error not tagged with URL: %v", outcomes[0].Err)
	}
}
