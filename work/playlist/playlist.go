// Package playlist turns playlist text (M3U, PLS, ASX, XSPF) into the list of
// candidate URLs it references. The concrete format is chosen by sniffing the
// content itself rather than trusting the server's content-type, since the
// two disagree constantly in the wild.
package playlist

import "strings"

// Kind identifies a playlist text format.
type Kind int

const (
	KindM3U Kind = iota
	KindPLS
	KindASX
	KindXSPF
)

func (k Kind) String() string {
	switch k {
	case KindPLS:
		return "PLS"
	case KindASX:
		return "ASX"
	case KindXSPF:
		return "XSPF"
	default:
		return "M3U"
	}
}

// DetectKind sniffs the playlist format from its content. XSPF and ASX carry
// unambiguous XML markers, PLS has its section header; everything else is
// treated as M3U, which also covers bare lists of URLs.
func DetectKind(content string) Kind {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "<playlist"):
		return KindXSPF
	case strings.Contains(lower, "<asx"):
		return KindASX
	case strings.Contains(lower, "[playlist]"):
		return KindPLS
	default:
		return KindM3U
	}
}

// IsHLS reports whether playlist content is an HLS manifest. HLS manifests
// are M3U files, so this must be checked before the generic M3U decoder gets
// a chance to descend into media segments. #EXT-X-MEDIA also covers master
// manifests that only advertise renditions, plus #EXT-X-MEDIA-SEQUENCE by
// prefix.
func IsHLS(content string) bool {
	return strings.Contains(content, "#EXT-X-STREAM-INF") ||
		strings.Contains(content, "#EXT-X-TARGETDURATION") ||
		strings.Contains(content, "#EXT-X-MEDIA")
}

// Decode extracts the candidate URLs from playlist text using the decoder for
// the given kind. Returned URLs may be relative to the playlist's own
// location; resolution against a base is the caller's concern.
func Decode(kind Kind, content string) []string {
	switch kind {
	case KindPLS:
		return DecodePLS(content)
	case KindASX:
		return DecodeASX(content)
	case KindXSPF:
		return DecodeXSPF(content)
	default:
		return DecodeM3U(content)
	}
}

// Sniff picks the format from the content and decodes it in one step.
func Sniff(content string) []string {
	return Decode(DetectKind(content), content)
}
