package myinvois

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeTIN quita espacios y guiones y pasa a mayúsculas ("c 2584-563 222" -> "C2584563222").
func NormalizeTIN(tin string) string {
	var b strings.Builder
	for _, r := range tin {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// ValidateTIN valida la forma general de un TIN LHDN: prefijo alfabético (1-2 letras)
// seguido de dígitos, entre 11 y 14 caracteres. No consulta a LHDN.
func ValidateTIN(tin string) error {
	t := NormalizeTIN(tin)
	if len(t) < 11 || len(t) > 14 {
		return fmt.Errorf("myinvois: TIN debe tener entre 11 y 14 caracteres, se recibieron %d", len(t))
	}
	prefix := 0
	for _, r := range t {
		if !unicode.IsLetter(r) {
			break
		}
		prefix++
	}
	if prefix < 1 || prefix > 2 {
		return fmt.Errorf("myinvois: TIN %q debe iniciar con 1 o 2 letras", t)
	}
	if !isDigits(t[prefix:]) {
		return fmt.Errorf("myinvois: TIN %q contiene caracteres no numéricos tras el prefijo", t)
	}
	return nil
}

// ValidateMSIC valida que el código MSIC tenga 5 dígitos.
func ValidateMSIC(code string) error {
	c := strings.TrimSpace(code)
	if len(c) != 5 || !isDigits(c) {
		return fmt.Errorf("myinvois: código MSIC debe tener 5 dígitos, se recibió %q", code)
	}
	return nil
}
