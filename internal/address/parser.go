// Package address splits free-text dealer addresses into components.
//
// The heuristics are best-effort by design: locator responses carry
// addresses as one or two display lines with no structure, so the parser
// works from a line scan first and falls back to pattern matching over the
// joined text. Results feed dealer identity computation, so the trailing
// token rules here must stay stable.
package address

import (
	"regexp"
	"strings"
)

// Components holds the parsed address parts. Empty string means the
// component could not be determined.
type Components struct {
	Street string
	City   string
	State  string
	Postal string
}

var (
	cityStateZipRe     = regexp.MustCompile(`^(.*?)(?:,\s*([A-Z]{2}))?\s+(\d{5})(?:-\d{4})?$`)
	trailingStateZipRe = regexp.MustCompile(`([A-Z]{2})\s+(\d{5})(?:-\d{4})?\s*$`)
	fiveDigitRe        = regexp.MustCompile(`\d{5}`)
	digitRe            = regexp.MustCompile(`\d`)
)

// streetSuffixes are roadway/unit designators that terminate the trailing
// city-token scan. Matched case-insensitively after stripping trailing
// punctuation.
var streetSuffixes = map[string]bool{
	"st": true, "street": true,
	"ave": true, "avenue": true,
	"blvd": true, "boulevard": true,
	"rd": true, "road": true,
	"dr": true, "drive": true,
	"way": true,
	"ln":  true, "lane": true,
	"pl": true, "place": true,
	"pkwy": true, "parkway": true,
	"hwy": true, "highway": true,
	"ste": true, "suite": true,
	"unit": true,
	"apt":  true, "apartment": true,
	"bldg": true, "building": true,
	"ctr": true, "center": true,
	"sq": true, "square": true,
}

// Parse extracts street/city/state/postal from an address's display lines
// and joined text. recordZip and sourceZip are the last-resort postal
// fallbacks when neither the lines nor the text carry one.
func Parse(addressText string, addressLines []string, recordZip, sourceZip string) Components {
	var c Components

	firstLine := ""
	if len(addressLines) > 0 {
		firstLine = strings.TrimSpace(addressLines[0])
		c.Street = firstLine
	}

	// Scan lines after the first for "city[, ST] 12345[-9999]".
	for _, line := range addressLines[min(1, len(addressLines)):] {
		m := cityStateZipRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		c.City = strings.TrimSpace(m[1])
		c.State = m[2]
		c.Postal = m[3]
		break
	}

	// Re-derive from the joined text; it often carries the full
	// "street city, ST zip" form when the lines do not.
	textStreet, textCity, textState, textPostal := parseFromText(addressText)

	// Only let the text-derived street/city override when the line pass
	// made no progress past the raw first line.
	if c.Street == "" || c.Street == firstLine {
		if textStreet != "" {
			c.Street = textStreet
		}
		if textCity != "" {
			c.City = textCity
		}
	}
	if c.State == "" {
		c.State = textState
	}

	if c.Postal == "" {
		c.Postal = textPostal
	}
	if c.Postal == "" {
		c.Postal = fiveDigitRe.FindString(addressText)
	}
	if c.Postal == "" {
		c.Postal = fiveDigitRe.FindString(recordZip)
	}
	if c.Postal == "" {
		c.Postal = fiveDigitRe.FindString(sourceZip)
	}
	// Normalize to exactly the first 5-digit run, dropping +4 suffixes
	// and stray characters.
	c.Postal = fiveDigitRe.FindString(c.Postal)

	return c
}

// parseFromText looks for a trailing "ST 12345" pattern and derives
// street/city candidates from the text before it.
func parseFromText(text string) (street, city, state, postal string) {
	if text == "" {
		return "", "", "", ""
	}
	m := trailingStateZipRe.FindStringSubmatchIndex(text)
	if m == nil {
		return "", "", "", ""
	}
	state = text[m[2]:m[3]]
	postal = text[m[4]:m[5]]

	prefix := strings.TrimRight(text[:m[0]], " \t,")
	if prefix == "" {
		return "", "", state, postal
	}

	if i := strings.LastIndex(prefix, ","); i >= 0 {
		street = strings.TrimSpace(prefix[:i])
		city = strings.TrimSpace(prefix[i+1:])
		return street, city, state, postal
	}

	street, city = splitTrailingCity(prefix)
	return street, city, state, postal
}

// splitTrailingCity pulls up to three trailing tokens off a comma-free
// prefix as the city, stopping at the first digit-bearing token, token
// ending in '.' or '#', or recognized street suffix.
func splitTrailingCity(s string) (street, city string) {
	tokens := strings.Fields(s)
	take := 0
	for take < 3 && take < len(tokens) {
		if isStopToken(tokens[len(tokens)-take-1]) {
			break
		}
		take++
	}
	if take == 0 {
		return s, ""
	}
	return strings.Join(tokens[:len(tokens)-take], " "),
		strings.Join(tokens[len(tokens)-take:], " ")
}

func isStopToken(tok string) bool {
	if digitRe.MatchString(tok) {
		return true
	}
	if strings.HasSuffix(tok, ".") || strings.HasSuffix(tok, "#") {
		return true
	}
	return streetSuffixes[strings.ToLower(strings.TrimRight(tok, ".,#"))]
}
