package changelog

import (
	"strings"

	"github.com/everstacklabs/shiplog/internal/conventional"
)

// FilterSettings enumerates which conventional types pass the inclusion
// filter. Note the asymmetry with categorization: a commit of unrecognized
// type is dropped here by default rather than bucketed into Other. The
// IncludeUnknown flag makes that policy overridable.
type FilterSettings struct {
	IncludeFeatures bool
	IncludeFixes    bool
	IncludeChores   bool
	IncludeBreaking bool
	// CustomTypes is an allow-list of literal type strings that pass
	// regardless of the category toggles.
	CustomTypes []string
	// IncludeUnknown admits commits whose type maps to no known category
	// and matches no custom entry. Default false: unknown is silently
	// dropped, not bucketed into Other.
	IncludeUnknown bool
}

// DefaultFilterSettings enables every built-in category and keeps the
// drop-unknown policy.
func DefaultFilterSettings() FilterSettings {
	return FilterSettings{
		IncludeFeatures: true,
		IncludeFixes:    true,
		IncludeChores:   true,
		IncludeBreaking: true,
	}
}

// choreTypes are conventional types bucketed under the "chores" toggle.
var choreTypes = map[string]bool{
	"chore":    true,
	"docs":     true,
	"refactor": true,
	"perf":     true,
	"style":    true,
	"test":     true,
	"build":    true,
	"ci":       true,
	"revert":   true,
}

// ShouldInclude reports whether a parsed commit passes the inclusion filter.
// Type matching is case-insensitive; the custom allow-list matches the
// literal type string.
func ShouldInclude(pc conventional.ParsedCommit, s FilterSettings) bool {
	if pc.Breaking && s.IncludeBreaking {
		return true
	}

	for _, custom := range s.CustomTypes {
		if strings.EqualFold(pc.Type, custom) {
			return true
		}
	}

	switch t := strings.ToLower(pc.Type); {
	case t == "feat":
		return s.IncludeFeatures
	case t == "fix":
		return s.IncludeFixes
	case choreTypes[t]:
		return s.IncludeChores
	default:
		return s.IncludeUnknown
	}
}
