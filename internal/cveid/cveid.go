// Package cveid extracts normalized CVE identifiers from free text.
package cveid

import (
	"regexp"
	"sort"
	"strings"
)

// cveRe matches CVE identifiers: 4-digit year, 4-to-7-digit sequence.
var cveRe = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,7}`)

// Extract returns the unique CVE identifiers found in text, folded to
// uppercase and sorted for deterministic output. No match returns an
// empty slice, never an error: downstream treats that as text-only triage.
func Extract(text string) []string {
	matches := cveRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := strings.ToUpper(m)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
