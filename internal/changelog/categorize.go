package changelog

import (
	"strings"

	"github.com/everstacklabs/shiplog/internal/conventional"
)

// Categorize maps a parsed commit onto the fixed taxonomy. A breaking
// commit lands in Breaking Changes regardless of its base type; unknown
// types land in Other. This differs deliberately from the inclusion filter,
// which drops unknown types instead.
func Categorize(pc conventional.ParsedCommit) Category {
	if pc.Breaking {
		return CategoryBreaking
	}

	switch strings.ToLower(pc.Type) {
	case "feat":
		return CategoryFeatures
	case "fix":
		return CategoryBugFixes
	case "docs":
		return CategoryDocumentation
	case "refactor":
		return CategoryRefactoring
	case "perf":
		return CategoryPerformance
	default:
		return CategoryOther
	}
}
