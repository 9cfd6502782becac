package feed

import "strings"

// ResolveImage picks the entry's own image: the first image enclosure, then
// the first media:content that is an image by medium or MIME type, then the
// item image. Returns "" when none qualifies.
func ResolveImage(e Entry) string {
	for _, enc := range e.Enclosures {
		if enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	for _, m := range e.MediaContent {
		if m.URL == "" {
			continue
		}
		if m.Medium == "image" || strings.HasPrefix(m.Type, "image/") {
			return m.URL
		}
	}
	return e.Image
}
