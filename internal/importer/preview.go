package importer

import (
	"fmt"
	"sort"
	"strings"
)

// BuildPreview derives batch-level counts from a candidate entry set.
// Duplicate versions are recorded, not resolved: both entries stay in the
// batch and the reconciliation engine settles the collision.
func BuildPreview(entries []ValidatedEntry) ImportPreview {
	p := ImportPreview{Total: len(entries)}

	versionSeen := make(map[string]int)
	for _, e := range entries {
		if e.IsValid {
			p.Valid++
		} else {
			p.Invalid++
		}
		if missingTitle(e) {
			p.MissingTitle++
		}
		if missingContent(e) {
			p.MissingContent++
		}
		if key := versionKey(e.Version); key != "" {
			versionSeen[key]++
		}
	}

	for key, n := range versionSeen {
		if n > 1 {
			p.DuplicateVersions = append(p.DuplicateVersions, key)
		}
	}
	sort.Strings(p.DuplicateVersions)

	if p.Invalid > 0 {
		p.Errors = append(p.Errors, fmt.Sprintf("%d entries have no content and will not be imported", p.Invalid))
	}
	if p.MissingTitle > 0 {
		p.Warnings = append(p.Warnings, fmt.Sprintf("%d entries had no title, placeholders assigned", p.MissingTitle))
	}
	if len(p.DuplicateVersions) > 0 {
		p.Warnings = append(p.Warnings, fmt.Sprintf("duplicate versions in batch: %s", strings.Join(p.DuplicateVersions, ", ")))
	}
	return p
}

// versionKey normalizes a version string for collision comparison.
func versionKey(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.TrimPrefix(v, "v")
}
