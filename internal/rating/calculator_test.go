package rating

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CalculatorSuite struct {
	suite.Suite
	table *Table
	calc  *Calculator
}

func (s *CalculatorSuite) SetupSuite() {
	table, err := LoadDefault()
	s.Require().NoError(err)
	s.table = table
	s.calc = NewCalculator(table)
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}

// standardInput is a 35-year-old salaried male non-smoker buying one crore
// of cover for 20 years through the online channel.
func standardInput() Input {
	return Input{
		Age:             35,
		Gender:          GenderMale,
		TobaccoUser:     false,
		OccupationClass: 1,
		SumAssured:      10_000_000,
		TermYears:       20,
		OnlinePurchase:  true,
	}
}

// TestStandardProfile walks the full breakdown for a representative
// applicant so every arithmetic step is pinned.
func (s *CalculatorSuite) TestStandardProfile() {
	q, err := s.calc.Compute(standardInput(), "Life Shield Plus")
	s.Require().NoError(err)

	s.Run("base rate and base premium", func() {
		s.True(q.Breakdown.BaseRatePerThousand.Equal(decimal.RequireFromString("2.05")),
			"got %s", q.Breakdown.BaseRatePerThousand)
		s.True(q.Breakdown.BasePremium.Equal(decimal.NewFromInt(20500)),
			"got %s", q.Breakdown.BasePremium)
	})

	s.Run("factors applied in order", func() {
		s.Require().Len(q.Breakdown.Factors, 4)
		s.Equal("tobacco", q.Breakdown.Factors[0].Name)
		s.Equal("occupation_class", q.Breakdown.Factors[1].Name)
		s.Equal("policy_term", q.Breakdown.Factors[2].Name)
		s.Equal("sum_assured_band", q.Breakdown.Factors[3].Name)
		s.True(q.Breakdown.AdjustedPremium.Equal(decimal.NewFromInt(19475)),
			"got %s", q.Breakdown.AdjustedPremium)
	})

	s.Run("non-tobacco and online discounts total 16 percent", func() {
		s.Require().Len(q.Breakdown.Discounts, 2)
		s.Equal("Non-Tobacco Preferred", q.Breakdown.Discounts[0].Name)
		s.Equal("Online Direct Purchase", q.Breakdown.Discounts[1].Name)
		s.True(q.Breakdown.TotalDiscount.Equal(decimal.RequireFromString("0.16")),
			"got %s", q.Breakdown.TotalDiscount)
		s.False(q.Breakdown.DiscountCapped)
	})

	s.Run("annual and monthly premiums round half-up to whole rupees", func() {
		s.True(q.AnnualPremium.Equal(decimal.NewFromInt(16359)), "got %s", q.AnnualPremium)
		// 16359 * 0.0875 = 1431.4125
		s.True(q.MonthlyPremium.Equal(decimal.NewFromInt(1431)), "got %s", q.MonthlyPremium)
	})

	s.Run("quote carries table provenance", func() {
		s.Equal(s.table.Version(), q.TableVersion)
		s.Equal(s.table.Hash(), q.TableHash)
		s.False(q.GeneratedAt.IsZero())
	})
}

// TestDeterminism verifies recomputation stability: same inputs, same table,
// same quote ID and premium.
func (s *CalculatorSuite) TestDeterminism() {
	s.Run("identical inputs yield identical quote", func() {
		a, err := s.calc.Compute(standardInput(), "Life Shield Plus")
		s.Require().NoError(err)
		b, err := s.calc.Compute(standardInput(), "Life Shield Plus")
		s.Require().NoError(err)

		s.Equal(a.ID, b.ID)
		s.True(a.AnnualPremium.Equal(b.AnnualPremium))
	})

	s.Run("changing any rating input changes the quote ID", func() {
		base, err := s.calc.Compute(standardInput(), "Life Shield Plus")
		s.Require().NoError(err)

		longer := standardInput()
		longer.TermYears = 25
		other, err := s.calc.Compute(longer, "Life Shield Plus")
		s.Require().NoError(err)

		s.NotEqual(base.ID, other.ID)
	})

	s.Run("variants get distinct quote IDs", func() {
		plus, err := s.calc.Compute(standardInput(), "Life Shield Plus")
		s.Require().NoError(err)
		plain, err := s.calc.Compute(standardInput(), "Life Shield")
		s.Require().NoError(err)

		s.NotEqual(plus.ID, plain.ID)
	})
}

// TestDiscountCap verifies the accumulated discount clamps at the cap and
// applies once.
func (s *CalculatorSuite) TestDiscountCap() {
	in := Input{
		Age:             30,
		Gender:          GenderFemale,
		TobaccoUser:     false,
		OccupationClass: 1,
		SumAssured:      20_000_000,
		TermYears:       20,
		OnlinePurchase:  true,
		FirstTimeBuyer:  true,
	}
	q, err := s.calc.Compute(in, "Life Shield Plus")
	s.Require().NoError(err)

	// 10 + 8 + 6 + 5 + 8 = 37 percent eligible, capped at 35.
	s.Require().Len(q.Breakdown.Discounts, 5)
	s.True(q.Breakdown.TotalDiscount.Equal(decimal.RequireFromString("0.35")),
		"got %s", q.Breakdown.TotalDiscount)
	s.True(q.Breakdown.DiscountCapped)

	// 1.34 * 20000 * 0.92 * 0.65 = 16026.4
	s.True(q.AnnualPremium.Equal(decimal.NewFromInt(16026)), "got %s", q.AnnualPremium)
}

// TestBoundaryAges pins the closed entry-age range and band edges.
func (s *CalculatorSuite) TestBoundaryAges() {
	s.Run("minimum and maximum entry ages rate successfully", func() {
		for _, age := range []int{18, 65} {
			in := standardInput()
			in.Age = age
			_, err := s.calc.Compute(in, "Life Shield Plus")
			s.NoError(err, "age %d", age)
		}
	})

	s.Run("band edge 36 picks the next band", func() {
		at35 := standardInput()
		at36 := standardInput()
		at36.Age = 36

		q35, err := s.calc.Compute(at35, "Life Shield Plus")
		s.Require().NoError(err)
		q36, err := s.calc.Compute(at36, "Life Shield Plus")
		s.Require().NoError(err)

		s.True(q35.Breakdown.BaseRatePerThousand.Equal(decimal.RequireFromString("2.05")))
		s.True(q36.Breakdown.BaseRatePerThousand.Equal(decimal.RequireFromString("2.62")))
	})
}

// TestRejections checks each rejection carries its distinct reason.
func (s *CalculatorSuite) TestRejections() {
	tests := []struct {
		name    string
		mutate  func(*Input)
		variant string
		reason  Reason
	}{
		{
			name:   "below minimum entry age",
			mutate: func(in *Input) { in.Age = 17 },
			reason: ReasonIneligibleAge,
		},
		{
			name:   "above maximum entry age",
			mutate: func(in *Input) { in.Age = 66 },
			reason: ReasonIneligibleAge,
		},
		{
			name:   "sum assured below variant minimum",
			mutate: func(in *Input) { in.SumAssured = 1_000_000 },
			reason: ReasonUnsupportedSumAssured,
		},
		{
			name:    "sum assured above variant maximum",
			mutate:  func(in *Input) { in.SumAssured = 50_000_000 },
			variant: "Life Shield ROP",
			reason:  ReasonUnsupportedSumAssured,
		},
		{
			name:   "term below variant minimum",
			mutate: func(in *Input) { in.TermYears = 5 },
			reason: ReasonUnsupportedTerm,
		},
		{
			name:    "term above variant maximum",
			mutate:  func(in *Input) { in.TermYears = 30 },
			variant: "Life Shield ROP",
			reason:  ReasonUnsupportedTerm,
		},
		{
			name:    "unknown variant",
			variant: "Life Shield Ultra",
			reason:  ReasonMissingFactor,
		},
		{
			name:   "unknown occupation class",
			mutate: func(in *Input) { in.OccupationClass = 9 },
			reason: ReasonMissingFactor,
		},
		{
			name:   "gender not set",
			mutate: func(in *Input) { in.Gender = "" },
			reason: ReasonMissingFactor,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			in := standardInput()
			if tc.mutate != nil {
				tc.mutate(&in)
			}
			variant := tc.variant
			if variant == "" {
				variant = "Life Shield Plus"
			}

			_, err := s.calc.Compute(in, variant)
			s.Require().Error(err)
			s.Equal(tc.reason, ReasonOf(err))
		})
	}
}

// TestTobaccoLoading verifies the 1.75 loading against the non-smoker quote.
func (s *CalculatorSuite) TestTobaccoLoading() {
	smoker := standardInput()
	smoker.TobaccoUser = true

	q, err := s.calc.Compute(smoker, "Life Shield Plus")
	s.Require().NoError(err)

	// 20500 * 1.75 * 0.95 = 34081.25, then only the online discount applies.
	s.True(q.Breakdown.Factors[0].Factor.Equal(decimal.RequireFromString("1.75")))
	s.Require().Len(q.Breakdown.Discounts, 1)
	s.Equal("Online Direct Purchase", q.Breakdown.Discounts[0].Name)
	// 34081.25 * 0.94 = 32036.375, rounds half-up to 32036.
	s.True(q.AnnualPremium.Equal(decimal.NewFromInt(32036)), "got %s", q.AnnualPremium)
}

// TestComputeAll covers the multi-variant quote set.
func (s *CalculatorSuite) TestComputeAll() {
	s.Run("eligible variants sorted by annual premium with one recommendation", func() {
		quotes, err := s.calc.ComputeAll(standardInput())
		s.Require().NoError(err)
		s.Require().Len(quotes, 3)

		for i := 1; i < len(quotes); i++ {
			s.False(quotes[i].AnnualPremium.LessThan(quotes[i-1].AnnualPremium),
				"quotes out of order at %d", i)
		}

		recommended := 0
		for _, q := range quotes {
			if q.Recommended {
				recommended++
			}
		}
		s.Equal(1, recommended)
	})

	s.Run("variants whose ranges exclude the request are skipped", func() {
		in := standardInput()
		in.SumAssured = 50_000_000 // above the return-of-premium ceiling

		quotes, err := s.calc.ComputeAll(in)
		s.Require().NoError(err)
		s.Require().Len(quotes, 2)
		for _, q := range quotes {
			s.NotEqual("Life Shield ROP", q.Variant)
		}
	})

	s.Run("no ratable variant surfaces the rejection", func() {
		in := standardInput()
		in.Age = 70

		_, err := s.calc.ComputeAll(in)
		s.Require().Error(err)
		s.Equal(ReasonIneligibleAge, ReasonOf(err))
	})

	s.Run("younger applicants get the accidental death variant recommended", func() {
		in := standardInput()
		in.Age = 28

		quotes, err := s.calc.ComputeAll(in)
		s.Require().NoError(err)
		for _, q := range quotes {
			if q.Recommended {
				s.Equal("Life Shield Plus", q.Variant)
			}
		}
	})
}

// TestPremiumFloor uses a table with token rates so the computed premium
// lands under the minimum.
func (s *CalculatorSuite) TestPremiumFloor() {
	table, err := Parse([]byte(`{
		"version": "floor-test",
		"min_age": 18,
		"max_age": 65,
		"min_monthly_premium": "150",
		"discount_cap": "0.35",
		"modal_factors": {"monthly": "0.0875"},
		"adjustments": {
			"tobacco": {"user": "1.75", "non_user": "1.0"},
			"occupation_classes": {"1": "1.0", "2": "1.1", "3": "1.25", "4": "1.5"},
			"term_buckets": [{"from_years": 10, "to_years": 40, "factor": "1.0"}],
			"sum_assured_bands": [{"name": "all", "up_to": 0, "factor": "1.0"}]
		},
		"discounts": [],
		"variants": [{
			"name": "Micro",
			"features": ["Death Benefit"],
			"min_sum_assured": 100000,
			"max_sum_assured": 1000000,
			"min_term_years": 10,
			"max_term_years": 40,
			"age_bands": [{"from": 18, "to": 66, "male": "0.5", "female": "0.5"}]
		}]
	}`))
	s.Require().NoError(err)

	calc := NewCalculator(table)
	in := standardInput()
	in.SumAssured = 500_000

	// 0.5 * 500 = 250 annual, about 22 rupees a month.
	_, err = calc.Compute(in, "Micro")
	s.Require().Error(err)
	s.Equal(ReasonPremiumBelowFloor, ReasonOf(err))
}
