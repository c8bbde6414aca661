// Package favicon validates that a station's favicon URL still points at an
// image and, when it does not, crawls the station homepage for a replacement
// candidate. Favicon state never influences the pass/fail outcome of a check.
package favicon

import (
	"net/url"
	"strings"
	"time"

	"github.com/grafana/regexp"
	"github.com/maypok86/otter/v2"

	"stream-check/work/logger"
	"stream-check/work/metrics"
	"stream-check/work/request"
)

// linkTagRe finds <link> tags; relAttrRe/hrefAttrRe pull the attributes we
// care about out of one tag. Scanning beats a strict HTML parser here since
// station homepages are rarely valid markup.
var (
	linkTagRe  = regexp.MustCompile(`(?i)<link\b[^>]*>`)
	relAttrRe  = regexp.MustCompile(`(?i)\brel\s*=\s*["']([^"']*)["']`)
	hrefAttrRe = regexp.MustCompile(`(?i)\bhref\s*=\s*["']([^"']+)["']`)
)

// Checker validates and repairs favicon URLs. Results are cached per
// homepage so that directories with many stations behind one site do not
// hammer it once per station.
type Checker struct {
	UserAgent string
	Timeout   time.Duration
	cache     *otter.Cache[string, string]
}

// New returns a Checker with a bounded repair cache.
func New(userAgent string, timeout time.Duration) *Checker {
	cache := otter.Must(&otter.Options[string, string]{
		MaximumSize:      4096,
		ExpiryCalculator: otter.ExpiryWriting[string, string](time.Hour),
	})

	return &Checker{
		UserAgent: userAgent,
		Timeout:   timeout,
		cache:     cache,
	}
}

// Repair returns a favicon URL for the station: the current one when it still
// resolves to an image, otherwise the first icon candidate found on the
// homepage, otherwise the empty string.
func (c *Checker) Repair(homepage, currentFavicon string) string {
	if currentFavicon != "" && c.isImage(currentFavicon) {
		metrics.FaviconRepairs.WithLabelValues("kept").Inc()
		return currentFavicon
	}

	if homepage == "" {
		metrics.FaviconRepairs.WithLabelValues("cleared").Inc()
		return ""
	}

	if cached, ok := c.cache.GetIfPresent(homepage); ok {
		return cached
	}

	repaired := ""
	for _, candidate := range c.extractIcons(homepage) {
		if c.isImage(candidate) {
			repaired = candidate
			break
		}
	}

	c.cache.Set(homepage, repaired)

	if repaired != "" {
		logger.Debug("[FAVICON] repaired favicon for %s: %s", homepage, repaired)
		metrics.FaviconRepairs.WithLabelValues("repaired").Inc()
	} else {
		logger.Debug("[FAVICON] no favicon found for %s", homepage)
		metrics.FaviconRepairs.WithLabelValues("cleared").Inc()
	}

	return repaired
}

// isImage fetches the URL and reports whether it answers 200 with an image
// content-type. Any fetch failure counts as not-an-image.
func (c *Checker) isImage(urlStr string) bool {
	req, err := request.New(urlStr, c.UserAgent, c.Timeout)
	if err != nil {
		return false
	}
	defer req.Close()

	if req.Info.Code != 200 {
		return false
	}
	return strings.HasPrefix(strings.ToLower(req.Info.Get("content-type")), "image")
}

// extractIcons fetches the homepage and returns icon candidates: every
// <link rel="...icon..."> href resolved against the homepage, plus the
// conventional /favicon.ico as a last resort.
func (c *Checker) extractIcons(homepage string) []string {
	base, err := url.Parse(homepage)
	if err != nil {
		return nil
	}

	var candidates []string

	req, err := request.New(homepage, c.UserAgent, c.Timeout)
	if err == nil {
		defer req.Close()
		if content, err := req.ReadContent(); err == nil {
			for _, tag := range linkTagRe.FindAllString(content, -1) {
				rel := relAttrRe.FindStringSubmatch(tag)
				if rel == nil || !strings.Contains(strings.ToLower(rel[1]), "icon") {
					continue
				}
				href := hrefAttrRe.FindStringSubmatch(tag)
				if href == nil {
					continue
				}
				if abs, err := base.Parse(href[1]); err == nil {
					candidates = append(candidates, abs.String())
				}
			}
		}
	}

	if abs, err := base.Parse("/favicon.ico"); err == nil {
		candidates = append(candidates, abs.String())
	}

	return candidates
}
