package importer

import (
	"fmt"
	"strings"
)

// validateEntry fills defaults and records validation findings for the
// entry at position idx (zero-based). A missing title is recoverable: a
// placeholder is assigned and a warning recorded. A missing content body
// makes the entry invalid since there is nothing to import.
func validateEntry(idx int, e *ValidatedEntry) {
	e.Title = strings.TrimSpace(e.Title)
	e.Content = strings.TrimSpace(e.Content)
	e.Version = strings.TrimSpace(e.Version)

	if e.Title == "" {
		e.Title = fmt.Sprintf("Entry %d", idx+1)
		e.ValidationErrors = append(e.ValidationErrors, "missing title, placeholder assigned")
	}
	if e.Content == "" {
		e.ValidationErrors = append(e.ValidationErrors, "missing content")
	}

	e.IsValid = e.Content != ""
}

// missingTitle reports whether the entry was flagged for a missing title.
func missingTitle(e ValidatedEntry) bool {
	for _, v := range e.ValidationErrors {
		if strings.HasPrefix(v, "missing title") {
			return true
		}
	}
	return false
}

// missingContent reports whether the entry was flagged for missing content.
func missingContent(e ValidatedEntry) bool {
	for _, v := range e.ValidationErrors {
		if v == "missing content" {
			return true
		}
	}
	return false
}
