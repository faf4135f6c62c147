// Package locale parses the BCP 47 style locale tags used to key layouts,
// display names and project metadata, and derives the identifiers that other
// artifacts need from them.
package locale

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/kbdgen/core/errors"
)

// Tag is a parsed locale tag such as "nb", "se-FI" or "sr-Latn-RS".
type Tag struct {
	// Language is the primary language subtag, lower-cased.
	Language string

	// Script is the optional four-letter script subtag, title-cased.
	Script string

	// Region is the optional region subtag, upper-cased.
	Region string

	// Variants holds registered variant subtags in order.
	Variants []string

	// Extensions holds everything from the first singleton on ("x-foo").
	Extensions []string

	raw string
}

// tagGrammar is the participle grammar for locale tags. Both "-" and "_"
// separate subtags so that "nb_NO" and "nb-NO" parse alike.
//
//nolint:govet // participle grammar tags are not standard struct tags
type tagGrammar struct {
	First string   `parser:"@Subtag"`
	Rest  []string `parser:"( ( \"-\" | \"_\" ) @Subtag )*"`
}

// tagLexer defines the lexer for locale tags.
var tagLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Subtag", Pattern: `[A-Za-z0-9]+`},
	{Name: "Sep", Pattern: `[-_]`},
})

// tagParser is the participle parser for locale tags.
var tagParser = participle.MustBuild[tagGrammar](
	participle.Lexer(tagLexer),
)

// Parse parses a locale tag.
func Parse(s string) (Tag, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Tag{}, errors.NewParse("locale tag", "", "empty tag")
	}

	parsed, err := tagParser.ParseString("", raw)
	if err != nil {
		return Tag{}, errors.NewParse("locale tag", "", fmt.Sprintf("%q: %v", raw, err))
	}

	if !isAlpha(parsed.First) || !(len(parsed.First) >= 2 && len(parsed.First) <= 3 || len(parsed.First) >= 5 && len(parsed.First) <= 8) {
		return Tag{}, errors.NewParse("locale tag", "", fmt.Sprintf("%q: bad language subtag %q", raw, parsed.First))
	}

	tag := Tag{Language: strings.ToLower(parsed.First), raw: raw}
	for i, sub := range parsed.Rest {
		switch {
		case len(sub) == 1:
			tag.Extensions = append(tag.Extensions, parsed.Rest[i:]...)
			return tag, nil
		case len(sub) == 4 && isAlpha(sub) && tag.Script == "" && tag.Region == "" && len(tag.Variants) == 0:
			tag.Script = strings.ToUpper(sub[:1]) + strings.ToLower(sub[1:])
		case (len(sub) == 2 && isAlpha(sub) || len(sub) == 3 && isDigit(sub)) && tag.Region == "" && len(tag.Variants) == 0:
			tag.Region = strings.ToUpper(sub)
		case len(sub) >= 5 && len(sub) <= 8, len(sub) == 4 && sub[0] >= '0' && sub[0] <= '9':
			tag.Variants = append(tag.Variants, strings.ToLower(sub))
		default:
			return Tag{}, errors.NewParse("locale tag", "", fmt.Sprintf("%q: unexpected subtag %q", raw, sub))
		}
	}

	return tag, nil
}


// String returns the tag as it was written.
func (t Tag) String() string {
	return t.raw
}

// Base returns the language subtag with script, region and variants stripped.
func (t Tag) Base() string {
	return t.Language
}

// Base returns the base language of a tag string. Tags that do not parse
// fall back to everything before the first separator.
func Base(s string) string {
	if t, err := Parse(s); err == nil {
		return t.Base()
	}
	head, _, _ := strings.Cut(strings.ReplaceAll(s, "_", "-"), "-")
	return strings.ToLower(strings.TrimSpace(head))
}

// LookupKey turns a locale into a message-catalog key. Message names may only
// hold ASCII letters, digits and underscores, so everything else becomes "_".
// The tag itself is not normalised: "nb-NO" and "nb_NO" share a key.
func LookupKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 && (isAlphaByte(byte(r)) || r >= '0' && r <= '9' || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// DirName returns the _locales subdirectory name for a locale
// ("pt-BR" becomes "pt_BR").
func DirName(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isAlphaByte(s[i]) {
			return false
		}
	}
	return s != ""
}

func isAlphaByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
