package usecases

import (
	"regexp"
	"strings"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

var (
	requirementIDPattern = regexp.MustCompile(`^[A-Z]{2,5}-\d{1,4}(?:\.\d{1,3})?$`)

	// Matches "URS-001: text", "- REQ-12 text", "### FR-3.1 - text", "**URS-002** text".
	requirementLinePattern = regexp.MustCompile(
		`^\s*(?:[-*+]\s+|#{1,6}\s+|\d+[.)]\s+)?\**([A-Z]{2,5}-\d{1,4}(?:\.\d{1,3})?)\**\s*[:.)\-]?\s*(.*)$`)

	// Standards and regulations cited in a URS share the ID shape but are not requirements.
	standardPrefixes = map[string]bool{
		"ANSI": true, "ASTM": true, "BS": true, "CFR": true, "DIN": true, "EN": true,
		"EU": true, "FDA": true, "GAMP": true, "ICH": true, "IEC": true, "IEEE": true,
		"ISO": true, "NIST": true, "PDA": true, "USP": true, "WHO": true,
	}
)

func isStandardReference(id string) bool {
	prefix, _, _ := strings.Cut(id, "-")
	return standardPrefixes[prefix]
}

// ExtractRequirements lifts numbered requirements out of a URS. Markdown list items,
// headings and table rows are recognised. IDs are de-duplicated, first occurrence wins.
func ExtractRequirements(content string) []entities.Requirement {
	var reqs []entities.Requirement
	seen := make(map[string]bool)

	add := func(id, text string) {
		if seen[id] || isStandardReference(id) {
			return
		}
		seen[id] = true
		reqs = append(reqs, entities.Requirement{ID: id, Text: strings.TrimSpace(text)})
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")

		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			if id, text, ok := parseTableRow(line); ok {
				add(id, text)
			}
			continue
		}

		m := requirementLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		add(m[1], strings.Trim(m[2], "* "))
	}
	return reqs
}

// parseTableRow reads "| URS-001 | text | ... |" rows.
func parseTableRow(line string) (string, string, bool) {
	var cells []string
	for _, c := range strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|") {
		cells = append(cells, strings.Trim(strings.TrimSpace(c), "*"))
	}
	for i, c := range cells {
		if requirementIDPattern.MatchString(c) {
			text := ""
			if i+1 < len(cells) {
				text = cells[i+1]
			}
			return c, text, true
		}
		if c != "" {
			return "", "", false
		}
	}
	return "", "", false
}
