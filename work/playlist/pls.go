package playlist

import (
	"strings"

	"github.com/grafana/regexp"
)

// plsFileRe matches the FileN entries of a PLS playlist, e.g. "File1=http://...".
var plsFileRe = regexp.MustCompile(`(?i)^\s*file\d*\s*=\s*(.+)$`)

// DecodePLS extracts the FileN entries from PLS playlist text in file order.
// Title and Length entries are ignored; only the URLs matter here.
func DecodePLS(content string) []string {
	var urls []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if m := plsFileRe.FindStringSubmatch(line); m != nil {
			if url := strings.TrimSpace(m[1]); url != "" {
				urls = append(urls, url)
			}
		}
	}
	return urls
}
