package storage

import (
	"fmt"
	"path"
	"strings"
)

// DocumentRoot is the prefix under which all document trees live.
const DocumentRoot = "gcg-documents"

// NormalizeUnit converts an organizational unit name into a stable,
// collision-resistant path token. Spaces become underscores and anything
// outside [A-Za-z0-9._-] is stripped, so the same unit always maps to the
// same directory segment.
func NormalizeUnit(unit string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(unit) {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	// Leading dots would produce hidden directories the reconciler skips.
	return strings.TrimLeft(b.String(), ".")
}

// ResolveDir returns the canonical directory for one (year, unit, item)
// partition: gcg-documents/{year}/{normalizedUnit}/{itemID}.
// Every component constructs storage paths through here; building a path
// anywhere else is a bug.
func ResolveDir(year int, unit string, itemID int) string {
	return path.Join(DocumentRoot, fmt.Sprintf("%d", year), NormalizeUnit(unit), fmt.Sprintf("%d", itemID))
}

// ResolvePath returns the canonical storage path for a document file.
func ResolvePath(year int, unit string, itemID int, fileName string) string {
	return path.Join(ResolveDir(year, unit, itemID), fileName)
}
