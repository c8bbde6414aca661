package playlist

import (
	"encoding/xml"
	"strings"
)

// xspfPlaylist mirrors the parts of the XSPF schema we care about: the track
// locations. Everything else (titles, annotations, metadata) is skipped.
type xspfPlaylist struct {
	XMLName xml.Name `xml:"playlist"`
	Tracks  []struct {
		Location string `xml:"location"`
	} `xml:"trackList>track"`
}

// DecodeXSPF extracts the track locations from XSPF playlist text in track
// order. Unparseable XML yields no candidates rather than an error; the
// resolver reports an empty playlist upstream either way.
func DecodeXSPF(content string) []string {
	var pl xspfPlaylist
	if err := xml.Unmarshal([]byte(content), &pl); err != nil {
		return nil
	}

	var urls []string
	for _, track := range pl.Tracks {
		if location := strings.TrimSpace(track.Location); location != "" {
			urls = append(urls, location)
		}
	}
	return urls
}
