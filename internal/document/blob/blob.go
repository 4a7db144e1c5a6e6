// Package blob stores attachment bytes outside the document database. The
// document service keeps only the returned object path.
package blob

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectName builds a collision-free key that keeps the original file name
// readable: attachments/2025/03/<uuid>/<name>.
func ObjectName(name string, now time.Time) string {
	return path.Join("attachments", now.UTC().Format("2006/01"), uuid.NewString(), sanitize(name))
}

func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case r == '?', r == '#', r == '%':
			return '_'
		}
		return r
	}, name)
}
