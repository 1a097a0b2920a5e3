package validate

import "github.com/enerdoc/facture-cli/internal/textnorm"

// PostalCode reports whether s is exactly five digits.
func PostalCode(s string) bool {
	if len(s) != 5 {
		return false
	}
	return textnorm.Digits(s) == s
}

// SirenSiret reports whether s is a digits-only SIREN (9) or SIRET (14).
func SirenSiret(s string) bool {
	if textnorm.Digits(s) != s {
		return false
	}
	return len(s) == 9 || len(s) == 14
}
