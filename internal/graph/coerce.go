package graph

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
)

// Coerce converts raw control text into a stored value according to the
// field's schema kind. A nil result means the field should be unset.
//
//   - INT and FLOAT take the longest numeric prefix ("12px" is 12) and
//     discard text with none.
//   - Enumerations and STRING are kept verbatim.
//   - Every other kind is read as a connection in target:index syntax: a
//     numeric index yields a Connection, a non-numeric one a Pair, and text
//     without a colon (or with nothing before it) stays a String.
//
// Empty results are always unset.
func Coerce(kind catalog.Kind, raw string) Value {
	switch kind {
	case catalog.KindEnum, catalog.KindString:
		if raw == "" {
			return nil
		}
		return String(raw)
	case catalog.KindInt:
		f, ok := parseIntPrefix(raw)
		if !ok {
			return nil
		}
		return Number(f)
	case catalog.KindFloat:
		f, ok := parseFloatPrefix(raw)
		if !ok {
			return nil
		}
		return Number(f)
	default:
		return parseConnection(raw)
	}
}

func parseConnection(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ":")
	target := parts[0]
	if target == "" {
		return String(trimmed)
	}
	if len(parts) == 1 {
		return String(strings.TrimSpace(target))
	}
	index := parts[1]
	n, ok := parseIntPrefix(index)
	// Indices beyond exact float range would not survive serialization.
	if !ok || math.Abs(n) > 1<<53 {
		return Pair{strings.TrimSpace(target), strings.TrimSpace(index)}
	}
	return Connection{Source: strings.TrimSpace(target), Index: int(n)}
}

// parseIntPrefix reads an optionally signed run of decimal digits after
// leading whitespace, ignoring whatever follows.
func parseIntPrefix(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseFloatPrefix reads the longest decimal literal prefix after leading
// whitespace: sign, digits, fraction and exponent. Infinity parses but has
// no JSON form, so it is rejected.
func parseFloatPrefix(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		return 0, false
	}
	intStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	mantissa := i - intStart
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if mantissa > 0 || j > i+1 {
			mantissa += j - i - 1
			i = j
		}
	}
	if mantissa == 0 {
		return 0, false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}
	lit := strings.TrimSuffix(s[:i], ".")
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		// Out of range literals overflow to infinity.
		return 0, false
	}
	return f, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// numericPrefix returns the integer value of an id for counter recovery.
func numericPrefix(id string) (int, bool) {
	f, ok := parseIntPrefix(id)
	if !ok || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int(f), true
}
