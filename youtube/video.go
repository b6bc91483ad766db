package youtube

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// VideoID extracts the 11-character video ID from a watch, shorts, live,
// embed or youtu.be link. Relative links ("/watch?v=...") are accepted, as
// harvested hrefs usually are. Extra query parameters never affect the ID.
func VideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	segs := splitPath(u.EscapedPath())
	switch {
	case host == "youtu.be":
		if len(segs) > 0 {
			id = segs[0]
		}
	case host != "" && host != "youtube.com" && host != "music.youtube.com" && host != "youtube-nocookie.com":
		return "", false
	case len(segs) > 0 && segs[0] == "watch":
		id = u.Query().Get("v")
	case len(segs) > 1 && (segs[0] == "shorts" || segs[0] == "live" || segs[0] == "embed" || segs[0] == "v"):
		id = segs[1]
	}
	if !videoIDRegex.MatchString(id) {
		return "", false
	}
	return id, true
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(id string) string {
	return baseURL + "/watch?v=" + id
}
