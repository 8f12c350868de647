package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Tariff пара "дни / цена". Price в копейках.
type Tariff struct {
	Days  int    `json:"days"`
	Price int64  `json:"price"`
	Title string `json:"title"`
}

// FormatRubles форматирует копейки в рубли: 199000 -> "1990", 199050 -> "1990.50"
func FormatRubles(kopecks int64) string {
	sign := ""
	if kopecks < 0 {
		sign = "-"
		kopecks = -kopecks
	}
	if kopecks%100 == 0 {
		return fmt.Sprintf("%s%d", sign, kopecks/100)
	}
	return fmt.Sprintf("%s%d.%02d", sign, kopecks/100, kopecks%100)
}

// ParseRubles разбирает сумму в рублях ("1990", "1990.5", "1990,50") в копейки
func ParseRubles(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	rubles, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || rubles < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	kopecks := rubles * 100
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		k, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || k < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		kopecks += k
	}
	return kopecks, nil
}
