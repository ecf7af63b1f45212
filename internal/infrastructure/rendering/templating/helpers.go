package templating

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// upperHelper is locale-invariant uppercase; null input (empty string) maps
// to empty.
func upperHelper(v string) string {
	if v == "" {
		return ""
	}
	return upperCaser.String(v)
}

func lowerHelper(v string) string {
	if v == "" {
		return ""
	}
	return lowerCaser.String(v)
}

var dateParseFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateValue(v string) (time.Time, bool) {
	for _, f := range dateParseFormats {
		if t, err := time.Parse(f, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateToken is one .NET-style custom format token, ordered longest-first
// so the scanner in formatDateHelper never matches a prefix of a longer
// token (e.g. "MMMM" before "MM").
type dateToken struct {
	token string
	value func(t time.Time) string
}

var dateTokens = []dateToken{
	{"yyyy", func(t time.Time) string { return strconv.Itoa(t.Year()) }},
	{"MMMM", func(t time.Time) string { return t.Month().String() }},
	{"MMM", func(t time.Time) string { return t.Month().String()[:3] }},
	{"MM", func(t time.Time) string { return pad2(int(t.Month())) }},
	{"dd", func(t time.Time) string { return pad2(t.Day()) }},
	{"HH", func(t time.Time) string { return pad2(t.Hour()) }},
	{"mm", func(t time.Time) string { return pad2(t.Minute()) }},
	{"ss", func(t time.Time) string { return pad2(t.Second()) }},
	{"d", func(t time.Time) string { return strconv.Itoa(t.Day()) }},
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// formatDateHelper implements the `formatDate` helper: parse v, then run
// fmt (default "d") through the custom token scanner. Unparseable input
// emits empty string per the unresolved-binding policy.
func formatDateHelper(v, fmtStr string) string {
	if fmtStr == "" {
		fmtStr = "d"
	}
	t, ok := parseDateValue(v)
	if !ok {
		return ""
	}
	var out strings.Builder
	i := 0
	for i < len(fmtStr) {
		matched := false
		for _, tok := range dateTokens {
			if strings.HasPrefix(fmtStr[i:], tok.token) {
				out.WriteString(tok.value(t))
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			out.WriteByte(fmtStr[i])
			i++
		}
	}
	return out.String()
}

// cultureFormat describes how a culture code renders a decimal amount.
type cultureFormat struct {
	symbol       string
	symbolBefore bool
	thousandSep  string
	decimalSep   string
}

var cultureTable = map[string]cultureFormat{
	"en-gb": {symbol: "£", symbolBefore: true, thousandSep: ",", decimalSep: "."},
	"en-us": {symbol: "$", symbolBefore: true, thousandSep: ",", decimalSep: "."},
	"de-de": {symbol: "€", symbolBefore: false, thousandSep: ".", decimalSep: ","},
	"fr-fr": {symbol: "€", symbolBefore: false, thousandSep: " ", decimalSep: ","},
}

const defaultCulture = "en-gb"

// currencyHelper implements the `currency` helper. Unknown/differently
// cased culture codes fall back to en-GB silently (see SPEC_FULL.md Open
// Question decisions). Unparseable amounts emit empty string.
func currencyHelper(v, culture string) string {
	amount, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return ""
	}
	cf, ok := cultureTable[strings.ToLower(strings.TrimSpace(culture))]
	if !ok {
		cf = cultureTable[defaultCulture]
	}

	neg := amount.IsNegative()
	if neg {
		amount = amount.Abs()
	}
	fixed := amount.StringFixed(2)
	parts := strings.SplitN(fixed, ".", 2)
	intPart, decPart := parts[0], "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var grouped strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteString(cf.thousandSep)
		}
		grouped.WriteRune(c)
	}

	number := grouped.String() + cf.decimalSep + decPart
	sign := ""
	if neg {
		sign = "-"
	}
	if cf.symbolBefore {
		return sign + cf.symbol + number
	}
	return sign + number + " " + cf.symbol
}
