// Package textclean normalizes extracted script text.
package textclean

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	typography = strings.NewReplacer(
		"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'", "\u2032", "'",
		"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u201f", `"`, "\u2033", `"`,
		"\u00ab", `"`, "\u00bb", `"`,
		"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2015", "-", "\u2212", "-",
		"\u00ad", "",
	)

	spaceRun = regexp.MustCompile(`[ \t\f\v]+`)

	// "12", "Page 3", "page 3 of 40", "3/40", "- 7 -"
	pageNumber = regexp.MustCompile(`^(?i:(?:page\s*)?\d+(?:\s*(?:of|/)\s*\d+)?|-\s*\d+\s*-)$`)
)

// Clean returns text with Unicode NFKC normalization, ASCII quotes and
// dashes, single spaces, trimmed lines, and without empty lines or lines
// that only hold a page number.
func Clean(text string) string {
	text = norm.NFKC.String(text)
	text = typography.Replace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line == "" || IsPageNumber(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// IsPageNumber reports whether a trimmed line is a bare page marker.
func IsPageNumber(line string) bool {
	return pageNumber.MatchString(line)
}
