// Package imdb handles IMDB title links and metadata lookups against the OMDB
// API.
package imdb

import (
	"net/url"
	"regexp"
	"strconv"
)

var titleLinkPattern = regexp.MustCompile(`https?://(?:www\.)?imdb\.com/title/(tt\d+)\S*`)

// LinkInfo is an IMDB title link found in a chat message. Rating is 0 when the
// link carried no rating query parameter.
type LinkInfo struct {
	URL    string
	ImdbID string
	Rating int
}

// ParseMessage extracts the first IMDB title link from a message, along with
// an optional whole-number rating carried as a ?rating= query parameter.
func ParseMessage(content string) (*LinkInfo, bool) {
	match := titleLinkPattern.FindStringSubmatch(content)
	if match == nil {
		return nil, false
	}

	info := &LinkInfo{URL: match[0], ImdbID: match[1]}

	if parsed, err := url.Parse(match[0]); err == nil {
		if raw := parsed.Query().Get("rating"); raw != "" {
			if rating, err := strconv.Atoi(raw); err == nil {
				info.Rating = rating
			}
		}
	}

	return info, true
}
