package accessor

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// pluralizeClient is a singleton instance for consistent pluralization behavior.
var pluralizeClient = pluralizer.NewClient()

// ToSnakeCase converts a Go identifier to snake_case. Runs of upper-case
// letters are kept together (HTTPCode -> http_code).
func ToSnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DefaultMapName derives a row-map identifier from a struct name the same
// way table names are derived: snake_case, pluralized (User -> users).
func DefaultMapName(structName string) string {
	return pluralizeClient.Plural(ToSnakeCase(structName))
}

// NormalizeName lowercases a column or property name, optionally stripping
// underscores so that user_id matches UserID.
func NormalizeName(name string, underscoreInsensitive bool) string {
	lower := strings.ToLower(name)
	if underscoreInsensitive {
		lower = strings.ReplaceAll(lower, "_", "")
	}
	return lower
}
