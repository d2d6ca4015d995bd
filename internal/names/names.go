// Package names provides name normalization, compound-name splitting, and
// nickname resolution for the match engine.
package names

import (
	"context"
	"strings"
	"unicode"

	"github.com/edu-registry/penmatch/internal/domain"
)

// MaxNicknames is the number of nickname slots in a name set.
const MaxNicknames = 4

// Normalize uppercases a name and removes every non-letter character.
// This is the categorical-path normalization.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Upper trims and uppercases a name, leaving punctuation intact.
// This is the legacy-path normalization; the two algorithms intentionally
// normalize differently.
func Upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SplitCompound divides a compound given name into primary + alternate
// parts on the first space, else the first hyphen. Names with neither
// separator return an empty alternate.
func SplitCompound(s string) (primary, alternate string) {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// DeriveSet builds the normalized NameSet for the categorical path:
// non-letter characters removed from legal names, compound given split into
// primary given + alternate middle.
func DeriveSet(surname, given, middle, usualSurname, usualGiven, usualMiddle string) domain.NameSet {
	primary, alternate := SplitCompound(Upper(given))
	set := domain.NameSet{
		Surname:      Normalize(surname),
		Given:        Normalize(primary),
		Middle:       Normalize(middle),
		UsualSurname: Normalize(usualSurname),
		UsualGiven:   Normalize(usualGiven),
		UsualMiddle:  Normalize(usualMiddle),
	}
	if alternate != "" {
		set.AltGiven = Normalize(given)
		set.AltMiddle = Normalize(alternate)
	}
	// Usual names identical to legal names carry no signal.
	if set.UsualSurname == set.Surname {
		set.UsualSurname = ""
	}
	if set.UsualGiven == set.Given {
		set.UsualGiven = ""
	}
	if set.UsualMiddle == set.Middle {
		set.UsualMiddle = ""
	}
	return set
}

// LegacySet builds the NameSet for the legacy point scorer, which compares
// uppercased names with punctuation intact.
func LegacySet(surname, given, middle, usualSurname, usualGiven, usualMiddle string) domain.NameSet {
	primary, alternate := SplitCompound(Upper(given))
	set := domain.NameSet{
		Surname:      Upper(surname),
		Given:        Upper(primary),
		Middle:       Upper(middle),
		UsualSurname: Upper(usualSurname),
		UsualGiven:   Upper(usualGiven),
		UsualMiddle:  Upper(usualMiddle),
	}
	if alternate != "" {
		set.AltGiven = Upper(given)
		set.AltMiddle = Upper(alternate)
	}
	if set.UsualSurname == set.Surname {
		set.UsualSurname = ""
	}
	if set.UsualGiven == set.Given {
		set.UsualGiven = ""
	}
	if set.UsualMiddle == set.Middle {
		set.UsualMiddle = ""
	}
	return set
}

// Resolver expands a given name into known nickname variants using the
// external nickname table.
type Resolver struct {
	tables domain.LookupTables
}

// NewResolver creates a nickname resolver over the lookup tables.
func NewResolver(tables domain.LookupTables) *Resolver {
	return &Resolver{tables: tables}
}

// Resolve returns up to MaxNicknames variants of the given name. The base
// nickname (when it differs from the input) fills the first slot, then the
// base's synonyms fill the rest, skipping the input. An unknown name yields
// an empty set, not an error.
func (r *Resolver) Resolve(ctx context.Context, given string) ([]string, error) {
	given = Normalize(given)
	if given == "" {
		return nil, nil
	}

	pairs, err := r.tables.Nicknames(ctx, given)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	base := pairs[0].Base

	var out []string
	if base != given {
		out = append(out, base)
		// The input matched the synonym column; the base's full synonym
		// set requires a second lookup.
		pairs, err = r.tables.Nicknames(ctx, base)
		if err != nil {
			return nil, err
		}
	}

	for _, p := range pairs {
		if len(out) >= MaxNicknames {
			break
		}
		if p.Base != base {
			continue
		}
		if p.Synonym == given || p.Synonym == "" || contains(out, p.Synonym) {
			continue
		}
		out = append(out, p.Synonym)
	}

	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
