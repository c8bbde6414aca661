package playlist

import (
	"strings"

	"github.com/grafov/m3u8"
)

// DecodeM3U extracts candidate URLs from M3U/M3U8 text. The grafov parser is
// tried first since it understands the full extended syntax including master
// playlists; plenty of stations serve bare URL lists it rejects, so a plain
// line scan backs it up (same split the teacher uses for broken provider
// playlists).
func DecodeM3U(content string) []string {
	if urls := decodeM3UGrafov(content); len(urls) > 0 {
		return urls
	}
	return decodeM3ULines(content)
}

func decodeM3UGrafov(content string) []string {
	pl, listType, err := m3u8.DecodeFrom(strings.NewReader(content), false)
	if err != nil {
		return nil
	}

	var urls []string
	switch listType {
	case m3u8.MASTER:
		master := pl.(*m3u8.MasterPlaylist)
		for _, variant := range master.Variants {
			if variant != nil && variant.URI != "" {
				urls = append(urls, variant.URI)
			}
		}
	case m3u8.MEDIA:
		media := pl.(*m3u8.MediaPlaylist)
		for _, segment := range media.Segments {
			if segment != nil && segment.URI != "" {
				urls = append(urls, segment.URI)
			}
		}
	}
	return urls
}

// decodeM3ULines is the permissive fallback: every non-empty, non-comment
// line is taken as a candidate URL.
func decodeM3ULines(content string) []string {
	var urls []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}
