package changelog

import (
	"fmt"
	"strings"
	"time"
)

// EmptyFallback is the document body rendered when no entries survive
// filtering. Required behavior: an empty entry set never renders an empty
// document.
const EmptyFallback = "No significant changes found."

// Render produces the canonical Markdown document for a set of entries.
// Sections follow Taxonomy order with empty categories skipped; within a
// section, entries keep their original commit order.
func Render(entries []Entry, generatedAt time.Time, includeLinks bool) string {
	var b strings.Builder

	b.WriteString("# Changelog\n\n")
	fmt.Fprintf(&b, "Generated on %s.\n\n", generatedAt.Format("2006-01-02"))

	if len(entries) == 0 {
		b.WriteString(EmptyFallback)
		b.WriteString("\n")
		return b.String()
	}

	for _, cat := range Taxonomy {
		var section []Entry
		for _, e := range entries {
			if e.Category == cat {
				section = append(section, e)
			}
		}
		if len(section) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s\n\n", cat)
		for _, e := range section {
			b.WriteString("- ")
			b.WriteString(e.Description)
			if includeLinks && e.CommitURL != "" {
				fmt.Fprintf(&b, " ([%s](%s))", e.CommitRef, e.CommitURL)
			}
			b.WriteString("\n")
			if e.Impact != "" {
				fmt.Fprintf(&b, "  - Impact: %s\n", e.Impact)
			}
			if e.TechnicalDetail != "" {
				fmt.Fprintf(&b, "  - Details: %s\n", e.TechnicalDetail)
			}
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// CommitLink builds the provider-appropriate commit URL. GitLab-shaped
// repositories use the /-/commit/ path.
func CommitLink(repositoryURL, provider, ref string) string {
	if repositoryURL == "" || ref == "" {
		return ""
	}
	base := strings.TrimSuffix(repositoryURL, "/")
	if provider == "gitlab" {
		return base + "/-/commit/" + ref
	}
	return base + "/commit/" + ref
}
