// Package resolver drives the client and classifier recursively: it follows
// redirects, decodes playlists into candidate URLs and descends into each one
// until it reaches terminal playable streams or runs out of depth. Every leaf
// attempt produces one Outcome; failures never abort sibling candidates.
package resolver

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"stream-check/work/classify"
	"stream-check/work/playlist"
	"stream-check/work/request"
)

// StreamInfo describes a terminal, directly playable stream. Numeric fields
// default to 0 and text fields to "" when the server omits the corresponding
// ICY header.
type StreamInfo struct {
	URL         string // final URL reached
	Type        string // content-type as reported by the server
	Name        string
	Description string
	Homepage    string
	Genre       string
	Bitrate     int
	Sampling    int
	Codec       string
	Hls         bool
}

// Error tags a resolution failure with the URL that produced it.
type Error struct {
	URL    string
	Reason string
	Cause  error
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Cause }

// Outcome is the result of resolving one leaf URL: either a StreamInfo or an
// error, never both.
type Outcome struct {
	Info *StreamInfo
	Err  error
}

// OK reports whether the outcome is a successfully resolved stream.
func (o Outcome) OK() bool { return o.Err == nil && o.Info != nil }

// Resolver holds the per-process resolution settings. Depth is threaded
// explicitly through every recursive call so a branch always terminates, even
// on a redirect ring.
type Resolver struct {
	UserAgent string
	Timeout   time.Duration
	MaxDepth  int
}

// New returns a Resolver with the given request settings.
func New(userAgent string, timeout time.Duration, maxDepth int) *Resolver {
	return &Resolver{
		UserAgent: userAgent,
		Timeout:   timeout,
		MaxDepth:  maxDepth,
	}
}

// Resolve fetches and classifies the URL recursively and returns the ordered
// sequence of leaf outcomes. With followAll false, playlist descent stops at
// the first candidate that yields at least one success; with followAll true
// every candidate is resolved and collected.
func (r *Resolver) Resolve(urlStr string, followAll bool) []Outcome {
	return r.resolve(urlStr, followAll, r.MaxDepth)
}

func (r *Resolver) resolve(urlStr string, followAll bool, depth int) []Outcome {
	if depth <= 0 {
		return []Outcome{errOutcome(urlStr, "max depth of recursive checks reached", nil)}
	}

	req, err := request.New(urlStr, r.UserAgent, r.Timeout)
	if err != nil {
		return []Outcome{errOutcome(urlStr, err.Error(), err)}
	}
	defer req.Close()

	result := classify.Classify(&req.Info)

	switch result.Kind {
	case classify.TypeRedirect:
		// redirect targets may be relative to the redirecting URL
		target := result.Location
		if base, err := url.Parse(urlStr); err == nil {
			if abs, err := base.Parse(result.Location); err == nil {
				target = abs.String()
			}
		}
		return r.resolve(target, followAll, depth-1)

	case classify.TypeStream:
		return []Outcome{{Info: streamInfoFromHeaders(urlStr, result.Codec, &req.Info)}}

	case classify.TypePlaylist:
		content, err := req.ReadContent()
		if err != nil {
			return []Outcome{errOutcome(urlStr, err.Error(), err)}
		}
		// HLS manifests are M3U text too; they count as playable as-is and
		// are never descended into
		if playlist.IsHLS(content) {
			return []Outcome{{Info: &StreamInfo{
				URL:   urlStr,
				Codec: "UNKNOWN",
				Hls:   true,
			}}}
		}
		return r.resolvePlaylist(urlStr, content, followAll, depth)

	default:
		return []Outcome{errOutcome(urlStr, result.Reason, nil)}
	}
}

// resolvePlaylist decodes playlist content into candidates and recurses into
// each, resolving relative entries against the playlist's own URL.
func (r *Resolver) resolvePlaylist(urlStr, content string, followAll bool, depth int) []Outcome {
	base, err := url.Parse(urlStr)
	if err != nil {
		return []Outcome{errOutcome(urlStr, err.Error(), err)}
	}

	var list []Outcome
	for _, candidate := range playlist.Sniff(content) {
		abs, err := base.Parse(candidate)
		if err != nil {
			list = append(list, errOutcome(urlStr, fmt.Sprintf("bad playlist entry %q: %v", candidate, err), err))
			continue
		}

		results := r.resolve(abs.String(), followAll, depth-1)
		list = append(list, results...)

		if !followAll {
			for _, single := range results {
				if single.OK() {
					return list
				}
			}
		}
	}

	if len(list) == 0 {
		return []Outcome{errOutcome(urlStr, "empty playlist", nil)}
	}
	return list
}

// streamInfoFromHeaders builds a StreamInfo from the ICY metadata headers of
// a directly playable response. Missing headers leave zero values.
func streamInfoFromHeaders(urlStr, codec string, h *request.Headers) *StreamInfo {
	return &StreamInfo{
		URL:         urlStr,
		Type:        h.Get("content-type"),
		Name:        h.Get("icy-name"),
		Description: h.Get("icy-description"),
		Homepage:    h.Get("icy-url"),
		Genre:       h.Get("icy-genre"),
		Bitrate:     atoiDefault(h.Get("icy-br")),
		Sampling:    atoiDefault(h.Get("icy-sr")),
		Codec:       codec,
		Hls:         false,
	}
}

func atoiDefault(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func errOutcome(urlStr, reason string, cause error) Outcome {
	return Outcome{Err: &Error{URL: urlStr, Reason: reason, Cause: cause}}
}
