package handler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var colorHexRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// fieldErrors collects validation messages for one request.
type fieldErrors []string

func (fe *fieldErrors) addf(format string, args ...any) {
	*fe = append(*fe, fmt.Sprintf(format, args...))
}

func (fe fieldErrors) Error() string {
	return strings.Join(fe, "; ")
}

func (fe *fieldErrors) requireText(field, value string, max int) string {
	value = strings.TrimSpace(value)
	if value == "" {
		fe.addf("%s is required", field)
	} else if utf8.RuneCountInString(value) > max {
		fe.addf("%s must be at most %d characters", field, max)
	}
	return value
}

func (fe *fieldErrors) optionalText(field, value string, max int) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) > max {
		fe.addf("%s must be at most %d characters", field, max)
	}
	return value
}

func (fe *fieldErrors) positive(field string, v int) {
	if v <= 0 {
		fe.addf("%s must be greater than 0", field)
	}
}

func (fe *fieldErrors) colorHex(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !colorHexRe.MatchString(v) {
		fe.addf("color_hex must look like #RRGGBB")
	}
	return strings.ToUpper(v)
}

func (fe *fieldErrors) avatarURL(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fe.addf("avatar_url must be an http(s) URL")
	}
	return v
}
