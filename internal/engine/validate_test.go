package engine

import (
	"testing"
	"time"
)

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAgeAt(t *testing.T) {
	cases := []struct {
		name string
		dob  string
		now  string
		want int
	}{
		{"birthday today", "1990-06-15", "2025-06-15", 35},
		{"day before birthday", "1990-06-15", "2025-06-14", 34},
		{"day after birthday", "1990-06-15", "2025-06-16", 35},
		{"born after feb in a leap year, birthday in a non-leap year", "2004-03-01", "2022-03-01", 18},
		{"born after feb in a leap year, day before", "2004-03-01", "2022-02-28", 17},
		{"born feb 29, non-leap march 1", "2004-02-29", "2021-03-01", 17},
		{"born feb 29, leap-year birthday", "2004-02-29", "2024-02-29", 20},
		{"born dec 31, leap-year jan 1", "1999-12-31", "2020-01-01", 20},
		{"january birthday in a leap year", "1980-01-15", "2024-01-15", 44},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ageAt(day(tc.dob), day(tc.now)); got != tc.want {
				t.Fatalf("ageAt(%s, %s) = %d, want %d", tc.dob, tc.now, got, tc.want)
			}
		})
	}
}
