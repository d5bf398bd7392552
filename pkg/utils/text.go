package utils

import (
	"fmt"
	"strings"
)

var digitReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4", "۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4", "٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// NormalizeArabicNumbers converts Arabic-Indic and Persian numerals to ASCII digits
func NormalizeArabicNumbers(input string) string {
	return digitReplacer.Replace(input)
}

// StripThousands removes the separators providers put inside amounts ("1,500" / "1٬500").
func StripThousands(input string) string {
	return strings.NewReplacer(",", "", "٬", "", "،", "").Replace(input)
}

// FormatAmount renders 1500000 as "1,500,000".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}
