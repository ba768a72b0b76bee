package validation

func IsCEP(s string) bool {
	d := OnlyDigits(s)
	return len(d) == 8 && len(s) <= 9
}

// FormatCEP renders 8 digits as 00000-000; other input is returned as is.
func FormatCEP(s string) string {
	d := OnlyDigits(s)
	if len(d) != 8 {
		return s
	}
	return d[:5] + "-" + d[5:]
}

// IsPhone accepts landlines (10 digits) and mobiles (11 digits) with area code.
func IsPhone(s string) bool {
	d := OnlyDigits(s)
	if len(d) != 10 && len(d) != 11 {
		return false
	}
	if d[0] == '0' || d[1] == '0' {
		return false
	}
	return len(d) == 10 || d[2] == '9'
}

func FormatPhone(s string) string {
	d := OnlyDigits(s)
	switch len(d) {
	case 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	case 11:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	}
	return s
}
