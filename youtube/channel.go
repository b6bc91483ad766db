// Package youtube drives the scripted YouTube flows: signing in, reading a
// channel's About panel, and harvesting a channel's videos tab.
package youtube

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Sentinel errors.
var (
	ErrInvalidURL     = errors.New("youtube: invalid URL")
	ErrNoContactInfo  = errors.New("youtube: no contact info")
	ErrLoginAborted   = errors.New("youtube: login aborted")
	ErrLoginFailed    = errors.New("youtube: login failed")
	ErrNoCredentials  = errors.New("youtube: no login credentials")
	ErrUnsupportedTab = errors.New("youtube: unsupported channel tab")
)

const baseURL = "https://www.youtube.com"

// channelIDRegex matches YouTube channel IDs (UC followed by 22 base64 chars).
var channelIDRegex = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)

var handleRegex = regexp.MustCompile(`^@[\p{L}\p{N}._-]{1,100}$`)

var nameRegex = regexp.MustCompile(`^[\p{L}\p{N}._-]{1,100}$`)

// Trailing path elements that select a tab rather than a channel.
var channelTabs = map[string]bool{
	"featured": true, "videos": true, "shorts": true, "streams": true,
	"playlists": true, "community": true, "about": true, "live": true,
	"podcasts": true, "releases": true, "store": true, "search": true,
}

// ChannelRef is a normalized reference to a channel.
type ChannelRef struct {
	// Input is the reference as given.
	Input string
	// URL is the canonical channel URL without a tab suffix.
	URL string
	// Key identifies the channel in storage and output file names.
	Key string
}

// VideosURL returns the channel's videos tab.
func (c ChannelRef) VideosURL() string { return c.URL + "/videos" }

// ParseChannel accepts a channel URL (@handle, /channel/UC..., /c/name,
// /user/name, with or without a tab suffix), a bare @handle or a bare
// channel ID.
func ParseChannel(input string) (ChannelRef, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ChannelRef{}, fmt.Errorf("%w: empty channel reference", ErrInvalidURL)
	}

	switch {
	case handleRegex.MatchString(raw):
		return ref(input, "/"+raw, strings.ToLower(raw)), nil
	case channelIDRegex.MatchString(raw):
		return ref(input, "/channel/"+raw, raw), nil
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("%w: %q", ErrInvalidURL, input)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "youtube.com" {
		return ChannelRef{}, fmt.Errorf("%w: %q is not a youtube.com URL", ErrInvalidURL, input)
	}

	segs := splitPath(u.EscapedPath())
	if len(segs) == 0 {
		return ChannelRef{}, fmt.Errorf("%w: %q has no channel path", ErrInvalidURL, input)
	}

	var path, key string
	var rest []string
	switch first := segs[0]; {
	case strings.HasPrefix(first, "@"):
		if !handleRegex.MatchString(first) {
			return ChannelRef{}, fmt.Errorf("%w: bad handle in %q", ErrInvalidURL, input)
		}
		path, key, rest = "/"+first, strings.ToLower(first), segs[1:]
	case first == "channel" && len(segs) > 1 && channelIDRegex.MatchString(segs[1]):
		path, key, rest = "/channel/"+segs[1], segs[1], segs[2:]
	case (first == "c" || first == "user") && len(segs) > 1 && nameRegex.MatchString(segs[1]):
		path, key, rest = "/"+first+"/"+segs[1], first+"-"+strings.ToLower(segs[1]), segs[2:]
	default:
		return ChannelRef{}, fmt.Errorf("%w: %q is not a channel URL", ErrInvalidURL, input)
	}

	switch {
	case len(rest) > 1:
		return ChannelRef{}, fmt.Errorf("%w: %q", ErrUnsupportedTab, input)
	case len(rest) == 1 && !channelTabs[strings.ToLower(rest[0])]:
		return ChannelRef{}, fmt.Errorf("%w: %q", ErrUnsupportedTab, input)
	}
	return ref(input, path, key), nil
}

func ref(input, path, key string) ChannelRef {
	return ChannelRef{Input: input, URL: baseURL + path, Key: key}
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s == "" {
			continue
		}
		if dec, err := url.PathUnescape(s); err == nil {
			s = dec
		}
		out = append(out, s)
	}
	return out
}
