package playlist

import (
	"strings"

	"github.com/grafana/regexp"
)

// asxRefRe matches the href attribute of ASX <ref> elements. ASX files in the
// wild are rarely well-formed XML (unquoted attributes, uppercase tags), so a
// tolerant scan beats a strict parser here.
var asxRefRe = regexp.MustCompile(`(?i)<ref\b[^>]*\bhref\s*=\s*["']?([^"'\s>]+)`)

// DecodeASX extracts the ref targets from ASX/ASF playlist text in document
// order.
func DecodeASX(content string) []string {
	var urls []string
	for _, m := range asxRefRe.FindAllStringSubmatch(content, -1) {
		if url := strings.TrimSpace(m[1]); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}
