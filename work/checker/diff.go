package checker

import (
	"errors"
	"fmt"
	"strings"

	"stream-check/work/database"
	"stream-check/work/request"
	"stream-check/work/resolver"
)

const (
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
	colorReset = "\x1b[0m"
)

// Diff renders a one-line human-readable summary of what changed between the
// previously known station state and a fresh check record. The line is
// colored red when the station transitioned to failing and green when it
// transitioned to working; an unchanged status stays uncolored.
func Diff(prev *database.Station, rec *database.CheckRecord, newFavicon string) string {
	var parts []string

	if prev.LastCheckOK != rec.CheckOK {
		parts = append(parts, fmt.Sprintf("check_ok %v -> %v", prev.LastCheckOK, rec.CheckOK))
	}
	if prev.Codec != rec.Codec {
		parts = append(parts, fmt.Sprintf("codec %q -> %q", prev.Codec, rec.Codec))
	}
	if prev.Bitrate != rec.Bitrate {
		parts = append(parts, fmt.Sprintf("bitrate %d -> %d", prev.Bitrate, rec.Bitrate))
	}
	if prev.Hls != rec.Hls {
		parts = append(parts, fmt.Sprintf("hls %v -> %v", prev.Hls, rec.Hls))
	}
	if prev.Favicon != newFavicon {
		parts = append(parts, fmt.Sprintf("favicon %q -> %q", prev.Favicon, newFavicon))
	}

	status := "BROKEN"
	if rec.CheckOK {
		status = "OK"
	}

	line := status
	if len(parts) > 0 {
		line += " [" + strings.Join(parts, ", ") + "]"
	} else {
		line += " [unchanged]"
	}

	switch {
	case prev.LastCheckOK && !rec.CheckOK:
		return colorRed + line + colorReset
	case !prev.LastCheckOK && rec.CheckOK:
		return colorGreen + line + colorReset
	default:
		return line
	}
}

// errorType buckets a resolution error for the error metric.
func errorType(err error) string {
	var connErr *request.ConnectError
	if errors.As(err, &connErr) {
		return connErr.Kind
	}
	var parseErr *request.ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	var resErr *resolver.Error
	if errors.As(err, &resErr) {
		switch {
		case strings.Contains(resErr.Reason, "depth"):
			return "depth"
		case strings.Contains(resErr.Reason, "playlist"):
			return "playlist"
		default:
			return "status"
		}
	}
	return "other"
}
