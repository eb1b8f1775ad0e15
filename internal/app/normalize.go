package app

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// YouTubeForms lists the accepted YouTube URL shapes, reported back on
// rejected input.
var YouTubeForms = []string{
	"https://youtube.com/watch?v=...",
	"https://youtu.be/...",
	"https://youtube.com/shorts/...",
}

// youtubeRe captures the video ID. Scheme and "www." are optional.
var youtubeRe = regexp.MustCompile(
	`^(?:https?://)?(?:www\.)?(?:youtube\.com/watch\?(?:[^#]*&)?v=|youtu\.be/|youtube\.com/shorts/)([A-Za-z0-9_-]+)`,
)

// InputError is a rejected request target. It matches gateway.ErrBadRequest.
type InputError struct {
	Code   string // short machine-readable code
	Detail string
}

func (e *InputError) Error() string { return e.Code + ": " + e.Detail }

// Unwrap lets errors.Is match gateway.ErrBadRequest.
func (e *InputError) Unwrap() error { return gateway.ErrBadRequest }

// Normalize validates raw for kind and returns its canonical target, which is
// also its cache identity.
func Normalize(kind gateway.Kind, raw string) (gateway.Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return gateway.Target{}, &InputError{Code: "missing_url", Detail: "query parameter 'url' is required"}
	}

	if kind == gateway.KindYouTube {
		id, ok := YouTubeID(raw)
		if !ok {
			return gateway.Target{}, &InputError{
				Code:   "invalid_youtube_url",
				Detail: fmt.Sprintf("%q is not a YouTube URL; supported: %s", raw, strings.Join(YouTubeForms, ", ")),
			}
		}
		return gateway.Target{Kind: kind, URL: "https://youtube.com/watch?v=" + id}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return gateway.Target{}, &InputError{
			Code:   "invalid_url",
			Detail: fmt.Sprintf("%q is not an absolute http(s) URL", raw),
		}
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return gateway.Target{Kind: kind, URL: u.String()}, nil
}

// YouTubeID extracts the video ID from any accepted YouTube URL form.
func YouTubeID(raw string) (string, bool) {
	m := youtubeRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}
