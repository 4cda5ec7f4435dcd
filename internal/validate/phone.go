package validate

import (
	"regexp"
	"strings"
)

// Узбекские номера: канонический вид +998XXXXXXXXX.
var (
	phoneJunkRe   = regexp.MustCompile(`[\s\-()]`)
	phoneDigitsRe = regexp.MustCompile(`^\+?[0-9]+$`)
	phoneCanonRe  = regexp.MustCompile(`^\+998[0-9]{9}$`)

	passportJunkRe  = regexp.MustCompile(`\s`)
	passportCanonRe = regexp.MustCompile(`^[A-Z]{2}[0-9]{7}$`)
)

// NormalizePhone приводит номер к каноническому виду. Принимаются
// варианты с кодом страны (+998, 998), с транковым префиксом 8 и
// голый девятизначный номер абонента. Второе значение — удалось ли
// распознать номер.
func NormalizePhone(phone string) (string, bool) {
	clean := phoneJunkRe.ReplaceAllString(strings.TrimSpace(phone), "")
	if clean == "" || !phoneDigitsRe.MatchString(clean) {
		return "", false
	}

	digits := strings.TrimPrefix(clean, "+")
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "998"):
		return "+" + digits, true
	case len(digits) == 10 && strings.HasPrefix(digits, "8"):
		return "+998" + digits[1:], true
	case len(digits) == 9:
		return "+998" + digits, true
	}
	return "", false
}

func ValidPhone(phone string) bool {
	return phoneCanonRe.MatchString(phone)
}

// NormalizePassport — верхний регистр без пробелов: AB1234567.
func NormalizePassport(passport string) string {
	return strings.ToUpper(passportJunkRe.ReplaceAllString(passport, ""))
}

func ValidPassport(passport string) bool {
	return passportCanonRe.MatchString(passport)
}
