package activity

import (
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer projects raw activities onto a Schema.
type Normalizer struct {
	schema *Schema
}

// NewNormalizer returns a Normalizer for schema. A nil schema selects DefaultSchema.
func NewNormalizer(schema *Schema) *Normalizer {
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Normalizer{schema: schema}
}

// Normalize keeps allow-listed, non-null fields of raw. Nested objects are
// flattened one level into outerKey+CapitalizedInnerKey; lists are dropped.
func (n *Normalizer) Normalize(raw RawActivity) NormalizedActivity {
	caser := cases.Title(language.Und, cases.NoLower)
	out := make(NormalizedActivity, len(raw))

	for key, value := range raw {
		if !n.schema.Allows(key) {
			continue
		}

		switch v := value.(type) {
		case Null, List:
			continue
		case Object:
			for child, childValue := range v {
				if !n.schema.AllowsNested(key, child) || !IsScalar(childValue) {
					continue
				}
				out[key+capitalizeFirst(caser, child)] = childValue
			}
		case String, Int, Float, Bool:
			out[key] = v
		}
	}

	return out
}

// NormalizeAll normalizes every activity, preserving order.
func (n *Normalizer) NormalizeAll(raw []RawActivity) []NormalizedActivity {
	out := make([]NormalizedActivity, 0, len(raw))
	for _, a := range raw {
		out = append(out, n.Normalize(a))
	}
	return out
}

// capitalizeFirst upper-cases the first letter only: "typeId" -> "TypeId".
func capitalizeFirst(caser cases.Caser, s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return caser.String(string(r)) + s[size:]
}
