package validation

import (
	"strconv"
	"strings"
	"time"
)

const (
	BrandVisa       = "visa"
	BrandMastercard = "mastercard"
	BrandAmex       = "amex"
	BrandElo        = "elo"
	BrandHipercard  = "hipercard"
	BrandDiners     = "diners"
)

// now is swapped in tests.
var now = time.Now

var brandPrefixes = []struct {
	brand    string
	prefixes []string
}{
	{BrandElo, []string{"401178", "401179", "431274", "438935", "451416", "457393", "457631", "457632", "504175", "506699", "5067", "509", "627780", "636297", "636368", "650", "6516", "6550"}},
	{BrandHipercard, []string{"606282", "3841"}},
	{BrandAmex, []string{"34", "37"}},
	{BrandDiners, []string{"300", "301", "302", "303", "304", "305", "36", "38"}},
	{BrandVisa, []string{"4"}},
	{BrandMastercard, []string{"51", "52", "53", "54", "55", "22", "23", "24", "25", "26", "27"}},
}

// CardBrand detects the brand by prefix. Unknown prefixes yield "".
func CardBrand(number string) string {
	d := OnlyDigits(number)
	for _, bp := range brandPrefixes {
		for _, p := range bp.prefixes {
			if strings.HasPrefix(d, p) {
				return bp.brand
			}
		}
	}
	return ""
}

func IsCardNumber(number string) bool {
	d := OnlyDigits(number)
	if len(d) < 13 || len(d) > 19 {
		return false
	}
	return luhn(d)
}

func luhn(d string) bool {
	sum := 0
	double := false
	for i := len(d) - 1; i >= 0; i-- {
		n := int(d[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// MaskCard keeps the last four digits.
func MaskCard(number string) string {
	d := OnlyDigits(number)
	if len(d) < 4 {
		return ""
	}
	return "**** **** **** " + d[len(d)-4:]
}

func LastFour(number string) string {
	d := OnlyDigits(number)
	if len(d) < 4 {
		return ""
	}
	return d[len(d)-4:]
}

// ParseExpiry accepts MM/YY and MM/YYYY.
func ParseExpiry(s string) (month, year int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	ys := strings.TrimSpace(parts[1])
	year, err = strconv.Atoi(ys)
	if err != nil {
		return 0, 0, false
	}
	switch len(ys) {
	case 2:
		year += 2000
	case 4:
	default:
		return 0, 0, false
	}
	return month, year, true
}

// IsCardExpiry reports whether the card is still valid this month.
func IsCardExpiry(s string) bool {
	month, year, ok := ParseExpiry(s)
	if !ok {
		return false
	}
	t := now()
	if year != t.Year() {
		return year > t.Year()
	}
	return month >= int(t.Month())
}

func IsCVV(cvv, number string) bool {
	d := OnlyDigits(cvv)
	if d != strings.TrimSpace(cvv) {
		return false
	}
	if CardBrand(number) == BrandAmex {
		return len(d) == 4
	}
	return len(d) == 3
}
