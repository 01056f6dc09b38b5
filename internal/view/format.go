package view

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

type floater interface {
	Float() float64
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case floater:
		return n.Float()
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// FormatCurrency renders v in reais with pt-BR separators, e.g. R$ 1.234,50.
func FormatCurrency(v any) string {
	return brPrinter.Sprintf("%v %.2f", currency.Symbol(currency.BRL), toFloat(v))
}

// SignClass picks the css modifier for a monetary value.
func SignClass(v any) string {
	switch f := toFloat(v); {
	case f > 0:
		return "positive"
	case f < 0:
		return "negative"
	}
	return "neutral"
}
