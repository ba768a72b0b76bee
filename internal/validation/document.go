// Package validation holds the Brazilian checkout form rules (CPF, CNPJ,
// CEP, phone) and card checks, plus their display masks.
package validation

import "strings"

const (
	KindCPF  = "cpf"
	KindCNPJ = "cnpj"
)

// OnlyDigits drops every non-digit rune.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func IsCPF(s string) bool {
	d := OnlyDigits(s)
	if len(d) != 11 || allSame(d) {
		return false
	}
	for n := 9; n <= 10; n++ {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		if checkDigit(sum) != int(d[n]-'0') {
			return false
		}
	}
	return true
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

func IsCNPJ(s string) bool {
	d := OnlyDigits(s)
	if len(d) != 14 || allSame(d) {
		return false
	}
	for n := 12; n <= 13; n++ {
		w := cnpjWeights[13-n:]
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * w[i]
		}
		if checkDigit(sum) != int(d[n]-'0') {
			return false
		}
	}
	return true
}

// DocumentKind reports whether s is a valid CPF or CNPJ. It returns "" for
// anything else.
func DocumentKind(s string) string {
	switch d := OnlyDigits(s); len(d) {
	case 11:
		if IsCPF(d) {
			return KindCPF
		}
	case 14:
		if IsCNPJ(d) {
			return KindCNPJ
		}
	}
	return ""
}

func IsDocument(s string) bool {
	return DocumentKind(s) != ""
}

func FormatCPF(s string) string {
	d := OnlyDigits(s)
	if len(d) != 11 {
		return s
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

func FormatCNPJ(s string) string {
	d := OnlyDigits(s)
	if len(d) != 14 {
		return s
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}

// FormatDocument picks the CPF or CNPJ mask by digit count.
func FormatDocument(s string) string {
	switch d := OnlyDigits(s); len(d) {
	case 11:
		return FormatCPF(d)
	case 14:
		return FormatCNPJ(d)
	}
	return s
}

func checkDigit(sum int) int {
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
