package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SerializedLength возвращает длину заголовков в символах в той текстовой форме,
// по которой считались исторические метрики: {"Key"=>"value", "N"=>1}.
// Порядок ключей на длину не влияет.
func SerializedLength(header map[string]interface{}) int {
	return utf8.RuneCountInString(SerializeHeader(header))
}

// SerializeHeader сериализует JSON значение в форму {"k"=>v, ...}.
// Ключи сортируются, чтобы результат был детерминированным.
func SerializeHeader(header map[string]interface{}) string {
	var b strings.Builder
	writeValue(&b, header)
	return b.String()
}

func writeValue(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case nil:
		b.WriteString("nil")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		writeQuoted(b, val)
	case json.Number:
		b.WriteString(formatNumber(val))
	case float64:
		b.WriteString(formatFloat(val))
	case []interface{}:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, item)
		}
		b.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeQuoted(b, k)
			b.WriteString("=>")
			writeValue(b, val[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%v", val)
	}
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(b, "\\x%02X", s[i])
			i++
			continue
		}

		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case '\v':
			b.WriteString(`\v`)
		case '\b':
			b.WriteString(`\b`)
		case '\a':
			b.WriteString(`\a`)
		case 0x1b:
			b.WriteString(`\e`)
		case '#':
			// "#{", "#$" и "#@" экранируются
			if next := i + size; next < len(s) && (s[next] == '{' || s[next] == '$' || s[next] == '@') {
				b.WriteString(`\#`)
			} else {
				b.WriteByte('#')
			}
		default:
			switch {
			case unicode.IsPrint(r):
				b.WriteRune(r)
			case r > 0xFFFF:
				fmt.Fprintf(b, "\\u{%X}", r)
			default:
				fmt.Fprintf(b, "\\u%04X", r)
			}
		}
		i += size
	}
	b.WriteByte('"')
}

// formatNumber: целые выводятся как есть, дробные и экспоненциальные - как float
func formatNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if s == "-0" {
			return "0"
		}
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	return formatFloat(f)
}

// formatFloat: кратчайшее представление; фиксированная запись при -4 < exp10 <= 16,
// иначе экспоненциальная вида 1.0e+16 / 1.0e-05
func formatFloat(f float64) string {
	if f == 0 {
		if 1/f < 0 {
			return "-0.0"
		}
		return "0.0"
	}

	// d.dddde±XX
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)

	sign := ""
	if strings.HasPrefix(mantissa, "-") {
		sign = "-"
		mantissa = mantissa[1:]
	}
	digits := strings.Replace(mantissa, ".", "", 1)
	decpt := exp + 1

	switch {
	case decpt > 0 && decpt <= 16:
		if len(digits) <= decpt {
			return sign + digits + strings.Repeat("0", decpt-len(digits)) + ".0"
		}
		return sign + digits[:decpt] + "." + digits[decpt:]
	case decpt <= 0 && decpt > -4:
		return sign + "0." + strings.Repeat("0", -decpt) + digits
	default:
		frac := digits[1:]
		if frac == "" {
			frac = "0"
		}
		expSign := "+"
		e := decpt - 1
		if e < 0 {
			expSign = "-"
			e = -e
		}
		return fmt.Sprintf("%s%s.%se%s%02d", sign, digits[:1], frac, expSign, e)
	}
}
