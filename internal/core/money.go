// Package core holds the domain model shared by the downloader, the
// classifier and the dashboard: transactions, money amounts and dates.
package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a bank-export amount string to signed cents.
//
// The API reports plain decimals ("-12.50"), but users also type amounts
// with a decimal comma ("1.234,56"). A comma therefore always means the
// decimal separator; when one is present, dots are stripped as thousand
// separators. A bare dot stays a decimal point; use ParseAmountEU for input
// known to be EU-formatted throughout. Currency signs and whitespace
// (including NBSP) are ignored.
//
// Examples:
//
//	ParseAmount("-12.50")    -> Money{-1250}
//	ParseAmount("1.234,56")  -> Money{123456}
//	ParseAmount("-€500")     -> Money{-50000}
func ParseAmount(s string) (Money, error) {
	s = cleanAmount(s)
	if s == "" || s == "." || s == "," {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return centsOf(s)
}

// ParseAmountEU converts an EU-formatted amount string to signed cents. In
// this format the dot is always a thousand separator, so "1.234" means
// €1234, where ParseAmount would read €1.234. Use it for semicolon-delimited
// CSV exports, whose amounts are known to be EU-formatted.
//
// Examples:
//
//	ParseAmountEU("1.234")     -> Money{123400}
//	ParseAmountEU("-1.234,56") -> Money{-123456}
//	ParseAmountEU("-12,50")    -> Money{-1250}
func ParseAmountEU(s string) (Money, error) {
	s = cleanAmount(s)
	if s == "" || s == "." || s == "," {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	return centsOf(s)
}

// cleanAmount strips whitespace (including NBSP) and currency signs.
func cleanAmount(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ' ', '€':
			return -1
		}
		return r
	}, s)
}

func centsOf(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}, nil
}

// Decimal returns the amount as an exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Euros returns the euro value as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// IsExpense reports whether the amount is an outflow.
func (m Money) IsExpense() bool {
	return m.Cents < 0
}

// String formats the amount as euros, e.g. "-€12,50".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + "€" + strconv.FormatInt(cents/100, 10) + "," + fmt.Sprintf("%02d", cents%100)
}
