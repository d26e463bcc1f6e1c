package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"roadplan/internal/common/utils"
)

var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// ParseCost reads an admission string such as "€15", "8,50 EUR" or
// "Free" into a number. The first amount wins, so "Adults €15, children
// free" is 15. Strings without an amount, "Free" included, count as 0.
func ParseCost(s string) float64 {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return 0
	}
	m := numberRe.FindString(t)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(normalizeNumber(m), 64)
	if err != nil {
		return 0
	}
	return v
}

// normalizeNumber resolves thousands and decimal separators: with both
// present the last one is the decimal mark; a lone comma followed by
// exactly three digits is a thousands separator.
func normalizeNumber(m string) string {
	lastDot := strings.LastIndexByte(m, '.')
	lastComma := strings.LastIndexByte(m, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			m = strings.ReplaceAll(m, ".", "")
			return strings.Replace(m, ",", ".", 1)
		}
		return strings.ReplaceAll(m, ",", "")
	case lastComma >= 0:
		if strings.Count(m, ",") == 1 && len(m)-lastComma-1 != 3 {
			return strings.Replace(m, ",", ".", 1)
		}
		return strings.ReplaceAll(m, ",", "")
	case strings.Count(m, ".") > 1:
		return strings.ReplaceAll(m, ".", "")
	}
	return m
}

// TotalCost sums the parsed admission cost of every activity.
func TotalCost(costs []string) float64 {
	total := 0.0
	for _, c := range costs {
		total += ParseCost(c)
	}
	return utils.Round2(total)
}
