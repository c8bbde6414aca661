// Package classify decides what kind of resource an HTTP response represents:
// a directly playable stream, a playlist needing further decoding, a redirect
// or something unrecognized. Classification looks only at the status code and
// content-type; it never touches the body.
package classify

import (
	"fmt"
	"strings"

	"stream-check/work/request"
)

// Type enumerates the classification variants.
type Type int

const (
	TypeStream Type = iota
	TypePlaylist
	TypeRedirect
	TypeUnrecognized
)

// Result is the outcome of classifying one response. Exactly one variant is
// meaningful per Kind: Codec for TypeStream, Location for TypeRedirect and
// Reason for TypeUnrecognized.
type Result struct {
	Kind     Type
	Codec    string // codec label from the stream MIME table (TypeStream)
	Location string // redirect target (TypeRedirect)
	Reason   string // human-readable diagnostic (TypeUnrecognized)
}

// streamTypes maps audio/video content types to their codec label. Generic
// octet-stream responses are accepted but labeled UNKNOWN since many servers
// misconfigure the type on working streams.
var streamTypes = map[string]string{
	"audio/mpeg":               "MP3",
	"audio/x-mpeg":             "MP3",
	"audio/mp3":                "MP3",
	"audio/aac":                "AAC",
	"audio/x-aac":              "AAC",
	"audio/aacp":               "AAC+",
	"audio/ogg":                "OGG",
	"application/ogg":          "OGG",
	"audio/flac":               "FLAC",
	"application/flv":          "FLV",
	"application/octet-stream": "UNKNOWN",
}

var m3uTypes = map[string]bool{
	"application/mpegurl":                 true,
	"application/x-mpegurl":               true,
	"audio/mpegurl":                       true,
	"audio/x-mpegurl":                     true,
	"application/vnd.apple.mpegurl":       true,
	"application/vnd.apple.mpegurl.audio": true,
}

var plsTypes = map[string]bool{
	"audio/x-scpls":       true,
	"application/x-scpls": true,
	"application/pls+xml": true,
}

var asxTypes = map[string]bool{
	"video/x-ms-asx": true,
	"video/x-ms-asf": true,
}

var xspfTypes = map[string]bool{
	"application/xspf+xml": true,
}

// Classify maps a parsed response head to a Result according to the status
// code and content-type tables. 2xx with an unknown or missing content-type
// and 3xx without a location both come back as TypeUnrecognized carrying a
// diagnostic, never as a silently dropped result.
func Classify(h *request.Headers) Result {
	switch {
	case h.Code >= 200 && h.Code < 300:
		contentType := normalizeContentType(h.Get("content-type"))
		if contentType == "" {
			return Result{Kind: TypeUnrecognized, Reason: "missing content-type in http header"}
		}
		if IsPlaylistType(contentType) {
			return Result{Kind: TypePlaylist}
		}
		if codec, ok := streamTypes[contentType]; ok {
			return Result{Kind: TypeStream, Codec: codec}
		}
		return Result{Kind: TypeUnrecognized, Reason: fmt.Sprintf("unknown content type %s", contentType)}

	case h.Code >= 300 && h.Code < 400:
		location := h.Get("location")
		if location == "" {
			return Result{Kind: TypeUnrecognized, Reason: fmt.Sprintf("redirect %d without location", h.Code)}
		}
		return Result{Kind: TypeRedirect, Location: location}

	default:
		return Result{Kind: TypeUnrecognized, Reason: fmt.Sprintf("illegal http status code %d", h.Code)}
	}
}

// IsPlaylistType reports whether a normalized content-type denotes a playlist
// format. Generic XML is accepted as a heuristic; some directories serve XSPF
// and ASX under text/xml.
func IsPlaylistType(contentType string) bool {
	return m3uTypes[contentType] || plsTypes[contentType] ||
		asxTypes[contentType] || xspfTypes[contentType] ||
		contentType == "text/xml" || contentType == "application/xml"
}

// normalizeContentType lower-cases a content-type value and strips any
// parameter suffix such as ";charset=utf-8".
func normalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
