package normalizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RangeKind selects the punctuation rules used when parsing a range.
type RangeKind int

const (
	Impressions RangeKind = iota
	Spend
)

const currencySymbol = "$"

func (k RangeKind) String() string {
	if k == Spend {
		return "spend"
	}
	return "impressions"
}

// rangeEncoding is one recognised upstream shape of an impressions/spend field.
type rangeEncoding struct {
	name  string
	match func(v interface{}) bool
	parse func(v interface{}, kind RangeKind) models.Range
}

// Detection order matters: bound objects first, bare strings last.
var rangeEncodings = []rangeEncoding{
	{name: "bound_object", match: isBoundObject, parse: parseBoundObject},
	{name: "legacy_object", match: isLegacyObject, parse: parseLegacyObject},
	{name: "delimited_string", match: isDelimitedString, parse: parseDelimitedString},
	{name: "bare_string", match: isString, parse: parseBareString},
}

var (
	leadingInt   = regexp.MustCompile(`^[-+]?\d+`)
	leadingFloat = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)`)
)

// ParseRange converts an upstream impressions or spend value into a Range.
// Absent values and values matching no known encoding yield a zero range.
func ParseRange(value interface{}, kind RangeKind) models.Range {
	if isAbsent(value) {
		return models.NewRange(0, 0, nil)
	}

	for _, enc := range rangeEncodings {
		if enc.match(value) {
			logrus.Debugf("Parsing %s value as %s", kind, enc.name)
			return enc.parse(value, kind)
		}
	}

	logrus.Debugf("Unrecognised %s encoding %T, defaulting to zero", kind, value)
	return models.NewRange(0, 0, nil)
}

func isAbsent(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == "" || val == "undefined"
	}
	return false
}

func isBoundObject(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	_, lower := m["lower_bound"]
	_, upper := m["upper_bound"]
	return lower || upper
}

func isLegacyObject(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	_, hasMin := m["min"]
	return hasMin
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

func isDelimitedString(v interface{}) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, " - ")
}

func parseBoundObject(v interface{}, kind RangeKind) models.Range {
	m := v.(map[string]interface{})

	min, _ := toNumber(m["lower_bound"], kind)
	max, ok := toNumber(m["upper_bound"], kind)
	if !ok {
		max = min
	}

	raw := formatRaw(min, max, kind)
	return models.NewRange(min, max, &raw)
}

func parseLegacyObject(v interface{}, kind RangeKind) models.Range {
	m := v.(map[string]interface{})

	min, _ := toNumber(m["min"], kind)
	max, ok := toNumber(m["max"], kind)
	if !ok || max == 0 {
		max = min
	}

	raw := formatRaw(min, max, kind)
	return models.NewRange(min, max, &raw)
}

func parseDelimitedString(v interface{}, kind RangeKind) models.Range {
	s := v.(string)
	parts := strings.Split(s, " - ")

	strip := ",<>"
	if kind == Spend {
		strip = ",$<>"
	}

	min, _ := parseNumber(stripChars(parts[0], strip), kind)
	max := min
	if len(parts) > 1 {
		if upper, ok := parseNumber(stripChars(parts[1], strip), kind); ok {
			max = upper
		}
	}

	return models.NewRange(min, max, &s)
}

func parseBareString(v interface{}, kind RangeKind) models.Range {
	s := v.(string)

	strip := ",<>+"
	if kind == Spend {
		strip = ",$<>+"
	}

	n, _ := parseNumber(stripChars(s, strip), kind)
	return models.NewRange(n, n, &s)
}

// toNumber accepts either a JSON number or a numeric string.
func toNumber(v interface{}, kind RangeKind) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if kind == Impressions {
			return float64(int64(val)), true
		}
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		return parseNumber(stripChars(val, ",$<>+"), kind)
	}
	return 0, false
}

// parseNumber reads the leading number of s. Impressions are whole counts;
// spend keeps its fractional part.
func parseNumber(s string, kind RangeKind) (float64, bool) {
	s = strings.TrimSpace(s)

	pattern := leadingFloat
	if kind == Impressions {
		pattern = leadingInt
	}

	match := pattern.FindString(s)
	if match == "" {
		return 0, false
	}

	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func stripChars(s, chars string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}

func formatRaw(min, max float64, kind RangeKind) string {
	lo := decimal.NewFromFloat(min).String()
	hi := decimal.NewFromFloat(max).String()
	if kind == Spend {
		return currencySymbol + lo + " - " + currencySymbol + hi
	}
	return lo + " - " + hi
}
