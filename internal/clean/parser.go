// Package clean turns the raw extracted museum table into filtered, typed records.
package clean

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/visitum/visitum-cli/internal/model"
)

// defaultYear is assumed when a visitor cell carries no explicit year.
const defaultYear = 2024

var (
	citationRe = regexp.MustCompile(`\[\d+\]`)
	yearRe     = regexp.MustCompile(`\((\d{4})\)`)
	numberRe   = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// StripCitations removes footnote markers like "[12]" from a cell.
func StripCitations(s string) string {
	return citationRe.ReplaceAllString(s, "")
}

// ParseVisitorCell parses one free-text visitor-count cell, e.g.
// "6,825,000 (2023)[1]" or "2.5 million". The year defaults to 2024 when no
// parenthesized year is present. The count is truncated to an integer.
// Plausibility is not checked; absurd values pass through untouched.
func ParseVisitorCell(cell string) (model.VisitorFact, error) {
	text := StripCitations(strings.TrimSpace(cell))

	year := defaultYear
	if loc := yearRe.FindStringSubmatchIndex(text); loc != nil {
		y, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err == nil {
			year = y
		}
		// Excise the year so it can't be mistaken for the visitor count.
		text = text[:loc[0]] + text[loc[1]:]
	}

	num := numberRe.FindString(text)
	if num == "" {
		return model.VisitorFact{}, eris.Errorf("parse: no number in %q", cell)
	}

	count, err := strconv.ParseFloat(normalizeNumber(num), 64)
	if err != nil {
		return model.VisitorFact{}, eris.Wrapf(err, "parse: number %q", num)
	}

	if strings.Contains(strings.ToLower(text), "million") {
		count *= 1_000_000
	}

	return model.VisitorFact{Count: int64(count), Year: year}, nil
}

// normalizeNumber prepares a matched number for strconv.ParseFloat. Commas
// are thousands separators ("6,825,000") unless a lone comma group isn't
// three digits wide, in which case it is a European decimal comma ("2,5").
func normalizeNumber(num string) string {
	if strings.Count(num, ",") == 1 && !strings.Contains(num, ".") {
		parts := strings.SplitN(num, ",", 2)
		if len(parts[1]) != 3 {
			return parts[0] + "." + parts[1]
		}
	}
	return strings.ReplaceAll(num, ",", "")
}
