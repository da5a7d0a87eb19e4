package samples

import (
	"strings"

	"github.com/probe-labeler/probe-labeler/pkg/types"
)

// DefaultSeparators are the characters accepted between an image name and the
// rest of a sample ID, e.g. "img1-001", "img1_a" or "img1.3"
const DefaultSeparators = "-_."

// Match returns the rows whose sample ID contains base immediately followed by
// one of the separator characters, in table order.
//
// Containment is not anchored: "old-img1-001" matches base "img1" too.
func Match(rows []types.SampleRow, base, separators string) []types.SampleRow {
	matched := []types.SampleRow{}
	if base == "" || separators == "" {
		return matched
	}

	needles := make([]string, 0, len(separators))
	for _, sep := range separators {
		needles = append(needles, base+string(sep))
	}

	for _, row := range rows {
		for _, needle := range needles {
			if strings.Contains(row.SampleID, needle) {
				matched = append(matched, row)
				break
			}
		}
	}
	return matched
}

// Match returns the table rows belonging to the image with the given base name
func (t *Table) Match(base, separators string) []types.SampleRow {
	return Match(t.Rows, base, separators)
}
