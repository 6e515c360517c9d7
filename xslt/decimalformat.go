package xslt

import (
	"math"
	"strconv"
	"strings"
)

// DecimalFormat mirrors the symbol table an xsl:decimal-format element
// registers, defaulting to the JDK/XSLT "_default" symbol set.
type DecimalFormat struct {
	Decimal       string
	Grouping      string
	PatternSep    string
	Minus         string
	Zero          string
	Digit         string
	Infinity      string
	NaN           string
	Percent       string
	PerMille      string
}

func defaultDecimalFormat() *DecimalFormat {
	return &DecimalFormat{
		Decimal:    ".",
		Grouping:   ",",
		PatternSep: ";",
		Minus:      "-",
		Zero:       "0",
		Digit:      "#",
		Infinity:   "Infinity",
		NaN:        "NaN",
		Percent:    "%",
		PerMille:   "‰",
	}
}

// formatNumber renders value against a JDK DecimalFormat-style pattern,
// splitting on df.PatternSep to pick the negative sub-pattern when value
// is negative and one is given.
func formatNumber(value float64, pattern string, df *DecimalFormat) string {
	if math.IsNaN(value) {
		return df.NaN
	}
	if math.IsInf(value, 0) {
		if value < 0 {
			return df.Minus + df.Infinity
		}
		return df.Infinity
	}

	pos, neg, hasNeg := splitPattern(pattern, df.PatternSep)
	sub := pos
	negative := value < 0 || math.Signbit(value)
	if negative && hasNeg {
		sub = neg
	}

	prefix, numPat, suffix := splitNumericRun(sub, df)
	intPat, fracPat, hasFrac := splitDecimal(numPat, df.Decimal)

	multiplier := 1.0
	if strings.Contains(sub, df.Percent) {
		multiplier = 100
	} else if strings.Contains(sub, df.PerMille) {
		multiplier = 1000
	}

	scaled := math.Abs(value) * multiplier
	fracDigits := len(fracPat)
	rounded := strconv.FormatFloat(scaled, 'f', fracDigits, 64)

	intDigits, fracDigitsStr := rounded, ""
	if hasFrac {
		parts := strings.SplitN(rounded, ".", 2)
		intDigits = parts[0]
		if len(parts) == 2 {
			fracDigitsStr = parts[1]
		}
	}

	intDigits = padInt(intDigits, countChar(intPat, df.Zero))
	intFormatted := groupInt(intDigits, intPat, df.Grouping)
	fracFormatted := trimFraction(fracDigitsStr, fracPat, df.Zero)

	var b strings.Builder
	b.WriteString(prefix)
	if negative && !hasNeg {
		b.WriteString(df.Minus)
	}
	b.WriteString(intFormatted)
	if fracFormatted != "" {
		b.WriteString(df.Decimal)
		b.WriteString(fracFormatted)
	}
	b.WriteString(suffix)
	return b.String()
}

func splitPattern(pattern, sep string) (pos, neg string, hasNeg bool) {
	idx := strings.Index(pattern, sep)
	if idx < 0 {
		return pattern, "-" + pattern, false
	}
	return pattern[:idx], pattern[idx+len(sep):], true
}

func splitNumericRun(sub string, df *DecimalFormat) (prefix, numPat, suffix string) {
	isNumChar := func(r rune) bool {
		s := string(r)
		return s == df.Zero || s == df.Digit || s == df.Grouping || s == df.Decimal
	}
	runes := []rune(sub)
	start, end := -1, -1
	for i, r := range runes {
		if isNumChar(r) {
			if start < 0 {
				start = i
			}
			end = i + 1
		}
	}
	if start < 0 {
		return "", sub, ""
	}
	return string(runes[:start]), string(runes[start:end]), string(runes[end:])
}

func splitDecimal(numPat, decimal string) (intPat, fracPat string, hasDecimal bool) {
	idx := strings.Index(numPat, decimal)
	if idx < 0 {
		return numPat, "", false
	}
	return numPat[:idx], numPat[idx+len(decimal):], true
}

func countChar(s, ch string) int {
	return strings.Count(s, ch)
}

func padInt(digits string, minWidth int) string {
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	for len(digits) < minWidth {
		digits = "0" + digits
	}
	return digits
}

func groupInt(digits, intPat, grouping string) string {
	if !strings.Contains(intPat, grouping) {
		return digits
	}
	var out []byte
	n := len(digits)
	for i, c := range []byte(digits) {
		if i > 0 && (n-i)%3 == 0 {
			out = append(out, []byte(grouping)...)
		}
		out = append(out, c)
	}
	return string(out)
}

// trimFraction applies the left-to-right mantissa fill rule: forced
// ('0') positions always survive; trailing optional ('#') positions
// whose digit is zero are dropped.
func trimFraction(digits, fracPat, zero string) string {
	if digits == "" {
		return ""
	}
	pat := []rune(fracPat)
	d := []rune(digits)
	end := len(d)
	for end > 0 {
		idx := end - 1
		if idx >= len(pat) {
			end--
			continue
		}
		if string(pat[idx]) == zero {
			break
		}
		if d[idx] != '0' {
			break
		}
		end--
	}
	return string(d[:end])
}
