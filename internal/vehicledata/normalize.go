package vehicledata

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// maxRegistrationLen is the longest UK registration mark.
const maxRegistrationLen = 8

// NormalizeRegistration folds compatibility characters (full-width letters,
// non-breaking spaces), keeps ASCII letters and digits, and uppercases.
func NormalizeRegistration(raw string) (string, error) {
	folded := norm.NFKC.String(raw)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}

	reg := b.String()
	if reg == "" {
		return "", eris.Wrap(ErrInvalidRequest, "registration is required")
	}
	if len(reg) > maxRegistrationLen {
		return "", eris.Wrapf(ErrInvalidRequest, "registration %q is longer than %d characters", reg, maxRegistrationLen)
	}
	return reg, nil
}
