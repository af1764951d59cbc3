package rating

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type TableSuite struct {
	suite.Suite
}

func TestTableSuite(t *testing.T) {
	suite.Run(t, new(TableSuite))
}

// validDocument builds a minimal well-formed rate document. Tests mutate a
// copy to provoke specific configuration failures.
func validDocument() map[string]any {
	return map[string]any{
		"version":             "test",
		"min_age":             18,
		"max_age":             65,
		"min_monthly_premium": "150",
		"discount_cap":        "0.35",
		"modal_factors":       map[string]any{"monthly": "0.0875"},
		"adjustments": map[string]any{
			"tobacco": map[string]any{"user": "1.75", "non_user": "1.0"},
			"occupation_classes": map[string]any{
				"1": "1.0", "2": "1.1", "3": "1.25", "4": "1.5",
			},
			"term_buckets": []any{
				map[string]any{"from_years": 10, "to_years": 40, "factor": "1.0"},
			},
			"sum_assured_bands": []any{
				map[string]any{"name": "low", "up_to": 10000000, "factor": "1.0"},
				map[string]any{"name": "open", "up_to": 0, "factor": "0.95"},
			},
		},
		"discounts": []any{
			map[string]any{"kind": "non_tobacco", "name": "Non-Tobacco", "percent": "10"},
		},
		"variants": []any{variantDoc("Base")},
	}
}

func variantDoc(name string) map[string]any {
	return map[string]any{
		"name":            name,
		"features":        []any{"Death Benefit"},
		"min_sum_assured": 5000000,
		"max_sum_assured": 100000000,
		"min_term_years":  10,
		"max_term_years":  40,
		"age_bands": []any{
			map[string]any{"from": 18, "to": 41, "male": "1.5", "female": "1.3"},
			map[string]any{"from": 41, "to": 66, "male": "4.0", "female": "3.5"},
		},
	}
}

func (s *TableSuite) parse(doc map[string]any) (*Table, error) {
	data, err := json.Marshal(doc)
	s.Require().NoError(err)
	return Parse(data)
}

func (s *TableSuite) TestParseValid() {
	table, err := s.parse(validDocument())
	s.Require().NoError(err)

	s.Equal("test", table.Version())
	s.Len(table.Hash(), 16)
	s.Equal(18, table.MinAge())
	s.Equal(65, table.MaxAge())
	s.Len(table.Variants(), 1)
}

func (s *TableSuite) TestLoadDefault() {
	table, err := LoadDefault()
	s.Require().NoError(err)

	s.NotEmpty(table.Version())
	s.NotEmpty(table.Hash())
	s.Len(table.Variants(), 3)
}

// TestConfigurationErrors provokes each structural failure; all must wrap
// ErrConfiguration so the caller can refuse to start.
func (s *TableSuite) TestConfigurationErrors() {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{
			name:   "missing version",
			mutate: func(doc map[string]any) { doc["version"] = "" },
		},
		{
			name: "no variants",
			mutate: func(doc map[string]any) {
				doc["variants"] = []any{}
			},
		},
		{
			name: "duplicate variant names",
			mutate: func(doc map[string]any) {
				doc["variants"] = []any{variantDoc("Twin"), variantDoc("Twin")}
			},
		},
		{
			name: "incomplete tobacco factors",
			mutate: func(doc map[string]any) {
				adjustments(doc)["tobacco"] = map[string]any{"user": "1.75"}
			},
		},
		{
			name: "missing occupation class",
			mutate: func(doc map[string]any) {
				adjustments(doc)["occupation_classes"] = map[string]any{"1": "1.0"}
			},
		},
		{
			name: "non-numeric occupation class",
			mutate: func(doc map[string]any) {
				adjustments(doc)["occupation_classes"] = map[string]any{
					"clerical": "1.0", "2": "1.1", "3": "1.25", "4": "1.5",
				}
			},
		},
		{
			name: "age band gap",
			mutate: func(doc map[string]any) {
				v := variantDoc("Gapped")
				v["age_bands"] = []any{
					map[string]any{"from": 18, "to": 40, "male": "1.5", "female": "1.3"},
					map[string]any{"from": 41, "to": 66, "male": "4.0", "female": "3.5"},
				}
				doc["variants"] = []any{v}
			},
		},
		{
			name: "age bands stop short of max age",
			mutate: func(doc map[string]any) {
				v := variantDoc("Short")
				v["age_bands"] = []any{
					map[string]any{"from": 18, "to": 60, "male": "1.5", "female": "1.3"},
				}
				doc["variants"] = []any{v}
			},
		},
		{
			name: "zero rate in a band",
			mutate: func(doc map[string]any) {
				v := variantDoc("ZeroRate")
				v["age_bands"] = []any{
					map[string]any{"from": 18, "to": 66, "male": "1.5", "female": "0"},
				}
				doc["variants"] = []any{v}
			},
		},
		{
			name: "term bucket missing for supported term",
			mutate: func(doc map[string]any) {
				adjustments(doc)["term_buckets"] = []any{
					map[string]any{"from_years": 10, "to_years": 25, "factor": "1.0"},
				}
			},
		},
		{
			name: "sum assured bands without open band",
			mutate: func(doc map[string]any) {
				adjustments(doc)["sum_assured_bands"] = []any{
					map[string]any{"name": "low", "up_to": 10000000, "factor": "1.0"},
				}
			},
		},
		{
			name: "unknown discount kind",
			mutate: func(doc map[string]any) {
				doc["discounts"] = []any{
					map[string]any{"kind": "loyalty", "name": "Loyalty", "percent": "5"},
				}
			},
		},
		{
			name: "discount cap above one",
			mutate: func(doc map[string]any) {
				doc["discount_cap"] = "1.5"
			},
		},
		{
			name: "missing modal factor",
			mutate: func(doc map[string]any) {
				doc["modal_factors"] = map[string]any{}
			},
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			doc := validDocument()
			tc.mutate(doc)

			_, err := s.parse(doc)
			s.Require().Error(err)
			s.ErrorIs(err, ErrConfiguration)
		})
	}
}

func adjustments(doc map[string]any) map[string]any {
	return doc["adjustments"].(map[string]any)
}

// TestLookups exercises the bounded lookup surface against a parsed table.
func (s *TableSuite) TestLookups() {
	table, err := s.parse(validDocument())
	s.Require().NoError(err)

	s.Run("base rate honors gender and band", func() {
		male, err := table.BaseRate("Base", 30, GenderMale)
		s.Require().NoError(err)
		s.True(male.Equal(decimal.RequireFromString("1.5")))

		female, err := table.BaseRate("Base", 50, GenderFemale)
		s.Require().NoError(err)
		s.True(female.Equal(decimal.RequireFromString("3.5")))
	})

	s.Run("band upper edge belongs to the next band", func() {
		rate, err := table.BaseRate("Base", 41, GenderMale)
		s.Require().NoError(err)
		s.True(rate.Equal(decimal.RequireFromString("4.0")))
	})

	s.Run("open sum assured band catches everything above", func() {
		f, err := table.SumAssuredFactor(999_000_000)
		s.Require().NoError(err)
		s.True(f.Equal(decimal.RequireFromString("0.95")))
	})

	s.Run("term outside every bucket is a missing factor", func() {
		_, err := table.TermFactor(50)
		s.Require().Error(err)
		s.Equal(ReasonMissingFactor, ReasonOf(err))
	})
}
