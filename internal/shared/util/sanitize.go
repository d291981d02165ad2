package util

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidFileName is returned for names with nothing usable left after
// sanitizing.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName keeps the base name of an uploaded file and replaces
// separators and control characters so it is safe as a storage key segment.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	s = path.Base(s)
	if s == "." || s == "/" || s == ".." || s == "" {
		return "", ErrInvalidFileName
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case r == ' ' || r == '/' || r == ':' || r == '?' || r == '#' || r == '%':
			return '_'
		}
		return r
	}, s)
	ext := path.Ext(s)
	if ext == "." {
		ext = ""
	}
	stem := strings.TrimLeft(strings.TrimSuffix(s, ext), ".")
	switch {
	case stem == "" && ext == "":
		return "", ErrInvalidFileName
	case stem == "":
		stem = "document"
	}
	return stem + ext, nil
}

// StoredFileName builds a collision-resistant name for an upload:
// "<unix millis>-<random>-<sanitized original name>".
func StoredFileName(original string, now time.Time) (string, error) {
	clean, err := SanitizeFileName(original)
	if err != nil {
		return "", err
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), random, clean), nil
}
