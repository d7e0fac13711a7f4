package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// IdentifierViolations lists why id does not satisfy the policy. Letters may
// be of either case; callers uppercase before storing.
func IdentifierViolations(id string, policy config.IdentifierPolicy) []string {
	var out []string
	if n := utf8.RuneCountInString(id); n != policy.Length {
		out = append(out, fmt.Sprintf("identifier length must be %d, got %d", policy.Length, n))
	}

	var letters, digits, other int
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			letters++
		default:
			other++
		}
	}
	switch {
	case other > 0:
		out = append(out, "identifier character class: only letters and digits are allowed")
	case policy.RequireMixed && id != "" && letters == 0:
		out = append(out, "identifier character class: must not be all digits")
	case policy.RequireMixed && id != "" && digits == 0:
		out = append(out, "identifier character class: must not be all letters")
	}
	return out
}

// CheckIdentifier returns an error wrapping types.ErrInvalidIdentifier when
// id does not satisfy the policy.
func CheckIdentifier(id string, policy config.IdentifierPolicy) error {
	if v := IdentifierViolations(id, policy); len(v) > 0 {
		return fmt.Errorf("%w %q: %s", types.ErrInvalidIdentifier, id, strings.Join(v, "; "))
	}
	return nil
}

// NormalizeIdentifier trims and uppercases an identifier.
func NormalizeIdentifier(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// IdentifierRule checks the record identifier against the policy.
func IdentifierRule(policy config.IdentifierPolicy) Rule {
	return RuleFunc{
		RuleName: "identifier",
		Fn: func(rec *types.ProductRecord) []string {
			return IdentifierViolations(rec.Identifier, policy)
		},
	}
}
