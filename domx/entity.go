package domx

import "strings"

var predefinedEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"apos": "'",
	"quot": "\"",
}

// DecodeEntities resolves the five predefined XML entities and numeric
// character references (&#NNN; and &#xHH;) in s. Unknown named entities
// are left untouched rather than rejected, since attribute values may
// carry references that were already resolved by the parser.
func DecodeEntities(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if c != '&' {
			b.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			b.WriteByte(c)
			i++
			continue
		}
		ref := s[i+1 : i+end]
		if r, ok := decodeRef(ref); ok {
			b.WriteRune(r)
			i += end + 1
			continue
		}
		if repl, ok := predefinedEntities[ref]; ok {
			b.WriteString(repl)
			i += end + 1
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func decodeRef(ref string) (rune, bool) {
	if len(ref) < 2 || ref[0] != '#' {
		return 0, false
	}
	body := ref[1:]
	base := 10
	if len(body) > 0 && (body[0] == 'x' || body[0] == 'X') {
		base = 16
		body = body[1:]
	}
	if body == "" {
		return 0, false
	}
	var n int64
	for _, c := range body {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case base == 16 && c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case base == 16 && c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		default:
			return 0, false
		}
		n = n*int64(base) + d
	}
	return rune(n), true
}
