// Package conventional parses commit messages written in the conventional
// commit style: type(scope)!: description.
package conventional

import (
	"regexp"
	"strings"
)

// ParsedCommit is the structured form of one commit message.
type ParsedCommit struct {
	// Type is the conventional type as written (case preserved). "other"
	// when the first line has no conventional prefix.
	Type        string
	Scope       string
	Description string
	Breaking    bool
}

// DefaultType is assigned when no conventional prefix is found.
const DefaultType = "other"

// emptyDescription keeps the non-empty description invariant for blank input.
const emptyDescription = "(empty commit message)"

// headerRe matches <type>(<scope>)?!?: <description> on the first line.
// The type match is case-insensitive by construction ([A-Za-z]).
var headerRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9-]*)(?:\(([^)]*)\))?(!)?:\s*(.*)$`)

// Parse derives a ParsedCommit from one commit message. It is pure and
// total: every input string, including the empty one, has a defined output
// and the Description field is never empty.
func Parse(message string) ParsedCommit {
	firstLine, body, _ := strings.Cut(message, "\n")
	firstLine = strings.TrimRight(firstLine, "\r")
	firstLine = strings.TrimSpace(firstLine)

	pc := ParsedCommit{
		Type:        DefaultType,
		Description: firstLine,
	}

	if m := headerRe.FindStringSubmatch(firstLine); m != nil {
		desc := strings.TrimSpace(m[4])
		if desc == "" {
			// A bare "feat:" header carries no usable description; treat the
			// whole line as unstructured.
			pc.Description = firstLine
		} else {
			pc.Type = m[1]
			pc.Scope = m[2]
			pc.Description = desc
			pc.Breaking = m[3] == "!"
		}
	}

	if pc.Description == "" {
		pc.Description = emptyDescription
	}

	if !pc.Breaking && bodyHasBreakingChange(body) {
		pc.Breaking = true
	}

	return pc
}

// bodyHasBreakingChange reports whether any body line starts with the
// BREAKING CHANGE: footer (the hyphenated spelling counts too).
func bodyHasBreakingChange(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "BREAKING CHANGE:") || strings.HasPrefix(line, "BREAKING-CHANGE:") {
			return true
		}
	}
	return false
}
