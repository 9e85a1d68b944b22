package bundle

import (
	"net/url"
	"path"
	"strings"
)

// FallbackExt is used when an asset URL has no usable extension.
const FallbackExt = "jpg"

// ExtFromURL returns the lower-case extension of the URL path, or
// FallbackExt when it is missing or not a short alphanumeric suffix.
func ExtFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return FallbackExt
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "" || len(ext) > 5 {
		return FallbackExt
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return FallbackExt
		}
	}
	return ext
}
