package enrich

import (
	"regexp"
	"strings"
)

var decimalArtifact = regexp.MustCompile(`\.0+$`)

// NormalizeID cleans an identifier cell: surrounding whitespace is trimmed and
// a trailing ".0" left by numeric serialization is removed. It returns false
// when the cell holds no usable identifier (empty or "nan").
func NormalizeID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	id = decimalArtifact.ReplaceAllString(id, "")
	if id == "" || strings.EqualFold(id, "nan") {
		return "", false
	}
	return id, true
}
