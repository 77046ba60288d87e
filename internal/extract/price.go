package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Interval is the billing period a quoted price refers to.
type Interval int

// Supported intervals.
const (
	Monthly Interval = iota
	Weekly
)

var (
	poundPattern  = regexp.MustCompile(`£\s*([0-9][0-9,]*)(?:\.([0-9]{1,2}))?`)
	amountPattern = regexp.MustCompile(`([0-9][0-9,]*)(?:\.([0-9]{1,2}))?`)
)

// ParsePence reads the first monetary amount in text and returns it in pence.
// An amount prefixed with £ wins over bare numbers such as a bedroom count;
// text without a £ falls back to its first number. Thousands separators are
// accepted.
func ParsePence(text string) (int64, error) {
	m := poundPattern.FindStringSubmatch(text)
	if m == nil {
		m = amountPattern.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, fmt.Errorf("no amount in %q", text)
	}
	whole, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", m[1], err)
	}
	pence := whole * 100
	if frac := m[2]; frac != "" {
		if len(frac) == 1 {
			frac += "0"
		}
		p, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse pence %q: %w", frac, err)
		}
		pence += p
	}
	return pence, nil
}

// MonthlyPrice converts an amount in pence to whole pounds per month. Weekly
// amounts are scaled by 52/12 and floored.
func MonthlyPrice(pence int64, interval Interval) int {
	if interval == Weekly {
		return int(pence * 52 / 12 / 100)
	}
	return int(pence / 100)
}

// parseQuote reads "<amount> <interval>" such as "£150 pw" or "£1,200 pcm".
// Text without a recognised interval marker is treated as monthly.
func (r Rules) parseQuote(text string) (int, error) {
	pence, err := ParsePence(text)
	if err != nil {
		return 0, err
	}
	interval := Monthly
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		switch strings.Trim(tok, "()[].,") {
		case r.WeeklyMarker:
			interval = Weekly
		case r.MonthlyMarker:
			interval = Monthly
		default:
			continue
		}
		break
	}
	return MonthlyPrice(pence, interval), nil
}

// stripParens removes parentheses around a room-type label.
func stripParens(s string) string {
	return strings.TrimSpace(strings.NewReplacer("(", "", ")", "").Replace(s))
}
