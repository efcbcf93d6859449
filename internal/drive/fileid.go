package drive

import (
	"regexp"
	"strings"
)

var filePathPattern = regexp.MustCompile(`/d/([\w-]+)`)

const openIDMarker = "open?id="

// FileID extracts the stable file id from a share link. Two link shapes are
// recognized: the /d/<id> path segment and the legacy open?id= query form.
// Anything else is assumed to already be a raw id and returned unchanged.
func FileID(ref string) string {
	if m := filePathPattern.FindStringSubmatch(ref); m != nil {
		return m[1]
	}

	if i := strings.LastIndex(ref, openIDMarker); i >= 0 {
		return ref[i+len(openIDMarker):]
	}

	return ref
}
