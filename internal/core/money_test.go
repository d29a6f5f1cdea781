package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"-12.50", -1250, true},
		{"1.234,56", 123456, true},
		{"-1.234,56", -123456, true},
		{" 2.50 ", 250, true},
		{"-€500", -50000, true},
		{"+12,00", 1200, true},
		{"0", 0, true},
		{"", 0, false},
		{".", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseAmountEU(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1.234", 123400, true},
		{"-1.234", -123400, true},
		{"1.234,56", 123456, true},
		{"-12,50", -1250, true},
		{"12", 1200, true},
		{"€1.500", 150000, true},
		{"", 0, false},
		{",", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmountEU(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{1250, "€12,50"},
		{-1250, "-€12,50"},
		{5, "€0,05"},
		{0, "€0,00"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("%d expected %q, got %q", tc.cents, tc.want, got)
		}
	}
}

func TestMoneyAbs(t *testing.T) {
	if got := (Money{Cents: -99}).Abs(); got.Cents != 99 {
		t.Fatalf("expected 99, got %d", got.Cents)
	}
	if got := (Money{Cents: 42}).Abs(); got.Cents != 42 {
		t.Fatalf("expected 42, got %d", got.Cents)
	}
}
