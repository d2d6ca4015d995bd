package names

import (
	"strings"
	"unicode"
)

// Soundex returns the 4-character Soundex encoding of a name, used as the
// last-resort surname similarity check in the legacy scorer.
func Soundex(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	result := string(s[0])
	prev := soundexCode(rune(s[0]))

	for i := 1; i < len(s) && len(result) < 4; i++ {
		r := rune(s[i])
		if !unicode.IsLetter(r) {
			continue
		}
		code := soundexCode(r)
		if code != "0" && code != prev {
			result += code
		}
		prev = code
	}

	for len(result) < 4 {
		result += "0"
	}
	return result
}

func soundexCode(r rune) string {
	switch r {
	case 'B', 'F', 'P', 'V':
		return "1"
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return "2"
	case 'D', 'T':
		return "3"
	case 'L':
		return "4"
	case 'M', 'N':
		return "5"
	case 'R':
		return "6"
	default:
		return "0"
	}
}
