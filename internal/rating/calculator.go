package rating

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "lifeshield/pkg/domain"
)

// quoteNamespace seeds deterministic quote IDs. Identical rating inputs
// against the same table version always yield the identical ID.
var quoteNamespace = uuid.MustParse("71a9e4d2-3c55-4b0e-9f3a-8f12a6c0de77")

// Input is the full set of rating inputs. The calculator trusts nothing:
// every precondition is re-checked here regardless of upstream validation.
type Input struct {
	Age             int
	Gender          Gender
	TobaccoUser     bool
	OccupationClass int
	SumAssured      int64
	TermYears       int
	OnlinePurchase  bool
	FirstTimeBuyer  bool
}

// FactorLine is one multiplicative adjustment in the breakdown.
type FactorLine struct {
	Name   string          `json:"name"`
	Factor decimal.Decimal `json:"factor"`
}

// DiscountLine is one discount applied, in stacking order.
type DiscountLine struct {
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
}

// Breakdown itemizes how a premium was computed, for explainability.
type Breakdown struct {
	BaseRatePerThousand decimal.Decimal `json:"base_rate_per_thousand"`
	BasePremium         decimal.Decimal `json:"base_premium"`
	Factors             []FactorLine    `json:"factors"`
	AdjustedPremium     decimal.Decimal `json:"adjusted_premium"`
	Discounts           []DiscountLine  `json:"discounts"`
	TotalDiscount       decimal.Decimal `json:"total_discount"`
	DiscountCapped      bool            `json:"discount_capped"`
}

// Quote is a fully computed, itemized premium for one variant.
type Quote struct {
	ID             id.QuoteID      `json:"id"`
	Variant        string          `json:"variant"`
	SumAssured     int64           `json:"sum_assured"`
	TermYears      int             `json:"term_years"`
	AnnualPremium  decimal.Decimal `json:"annual_premium"`
	MonthlyPremium decimal.Decimal `json:"monthly_premium"`
	Breakdown      Breakdown       `json:"breakdown"`
	TableVersion   string          `json:"table_version"`
	TableHash      string          `json:"table_hash"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Recommended    bool            `json:"recommended"`
}

// Calculator computes quotes against one immutable table. Stateless beyond
// the table reference; safe for concurrent use.
type Calculator struct {
	table *Table
}

func NewCalculator(table *Table) *Calculator {
	return &Calculator{table: table}
}

// Table exposes the underlying rate table (read-only use).
func (c *Calculator) Table() *Table { return c.table }

// Compute rates one variant. Pure and deterministic: no I/O, no randomness;
// recomputation with identical inputs yields a bit-identical quote ID and
// premium. Failures are *rating.Error with a distinct Reason.
func (c *Calculator) Compute(in Input, variantName string) (Quote, error) {
	if in.Age < c.table.minAge || in.Age > c.table.maxAge {
		return Quote{}, newError(ReasonIneligibleAge,
			"entry age must be between %d and %d, got %d", c.table.minAge, c.table.maxAge, in.Age)
	}
	if _, ok := ParseGender(string(in.Gender)); !ok {
		return Quote{}, newError(ReasonMissingFactor, "gender is not set")
	}

	variant, ok := c.table.Variant(variantName)
	if !ok {
		return Quote{}, newError(ReasonMissingFactor, "unknown variant %q", variantName)
	}
	if in.SumAssured < variant.MinSumAssured || in.SumAssured > variant.MaxSumAssured {
		return Quote{}, newError(ReasonUnsupportedSumAssured,
			"%s covers %d to %d, got %d", variant.Name, variant.MinSumAssured, variant.MaxSumAssured, in.SumAssured)
	}
	if in.TermYears < variant.MinTermYears || in.TermYears > variant.MaxTermYears {
		return Quote{}, newError(ReasonUnsupportedTerm,
			"%s supports %d to %d year terms, got %d", variant.Name, variant.MinTermYears, variant.MaxTermYears, in.TermYears)
	}

	baseRate, err := c.table.BaseRate(variant.Name, in.Age, in.Gender)
	if err != nil {
		return Quote{}, err
	}
	// Base premium: rate per 1000 of sum assured.
	base := decimal.NewFromInt(in.SumAssured).Div(decimal.NewFromInt(1000)).Mul(baseRate)

	tobacco, err := c.table.TobaccoFactor(in.TobaccoUser)
	if err != nil {
		return Quote{}, err
	}
	occupation, err := c.table.OccupationFactor(in.OccupationClass)
	if err != nil {
		return Quote{}, err
	}
	term, err := c.table.TermFactor(in.TermYears)
	if err != nil {
		return Quote{}, err
	}
	saBand, err := c.table.SumAssuredFactor(in.SumAssured)
	if err != nil {
		return Quote{}, err
	}

	factors := []FactorLine{
		{Name: "tobacco", Factor: tobacco},
		{Name: "occupation_class", Factor: occupation},
		{Name: "policy_term", Factor: term},
		{Name: "sum_assured_band", Factor: saBand},
	}
	adjusted := base
	for _, f := range factors {
		adjusted = adjusted.Mul(f.Factor)
	}

	// Discounts accumulate additively in declared stacking order, then the
	// total clamps at the cap and applies once to the adjusted premium.
	var lines []DiscountLine
	total := decimal.Zero
	for _, rule := range c.table.Discounts() {
		if !discountApplies(rule, in) {
			continue
		}
		lines = append(lines, DiscountLine{Name: rule.Name, Percent: rule.Percent})
		total = total.Add(rule.Percent.Div(decimal.NewFromInt(100)))
	}
	capped := total
	wasCapped := false
	if cap := c.table.DiscountCap(); total.GreaterThan(cap) {
		capped = cap
		wasCapped = true
	}

	one := decimal.NewFromInt(1)
	// Round half-up to the whole rupee. Decimal's Round is half away from
	// zero, which is half-up for non-negative premiums.
	annual := adjusted.Mul(one.Sub(capped)).Round(0)
	monthly := annual.Mul(c.table.modalMonthly).Round(0)

	if monthly.LessThan(c.table.minMonthlyPremium) {
		return Quote{}, newError(ReasonPremiumBelowFloor,
			"monthly premium %s is below the minimum of %s", monthly, c.table.minMonthlyPremium)
	}

	return Quote{
		ID:             c.quoteID(in, variant.Name),
		Variant:        variant.Name,
		SumAssured:     in.SumAssured,
		TermYears:      in.TermYears,
		AnnualPremium:  annual,
		MonthlyPremium: monthly,
		Breakdown: Breakdown{
			BaseRatePerThousand: baseRate,
			BasePremium:         base,
			Factors:             factors,
			AdjustedPremium:     adjusted,
			Discounts:           lines,
			TotalDiscount:       capped,
			DiscountCapped:      wasCapped,
		},
		TableVersion: c.table.version,
		TableHash:    c.table.hash,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// ComputeAll rates every variant the applicant is eligible for, sorted by
// annual premium ascending with the recommended variant flagged. Variants
// whose sum-assured or term ranges exclude the request are skipped; if no
// variant can be rated the first rejection is returned.
func (c *Calculator) ComputeAll(in Input) ([]Quote, error) {
	var (
		quotes   []Quote
		firstErr error
	)
	for _, v := range c.table.Variants() {
		q, err := c.Compute(in, v.Name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 {
		if firstErr == nil {
			firstErr = newError(ReasonMissingFactor, "no variants configured")
		}
		return nil, firstErr
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].AnnualPremium.LessThan(quotes[j].AnnualPremium)
	})

	recommended := c.recommendVariant(in)
	for i := range quotes {
		if quotes[i].Variant == recommended {
			quotes[i].Recommended = true
		}
	}
	return quotes, nil
}

func discountApplies(rule DiscountRule, in Input) bool {
	switch rule.Kind {
	case DiscountNonTobacco:
		return !in.TobaccoUser
	case DiscountFemaleLife:
		return in.Gender == GenderFemale
	case DiscountOnlinePurchase:
		return in.OnlinePurchase
	case DiscountFirstTimeBuyer:
		return in.FirstTimeBuyer
	case DiscountHighSumAssured:
		return in.SumAssured >= rule.MinSumAssured
	}
	return false
}

// recommendVariant picks one variant to highlight. Younger applicants get
// the accidental-death cover, older ones the plain plan, the middle the
// return-of-premium plan when their cover fits its range.
func (c *Calculator) recommendVariant(in Input) string {
	var plain, adb, rop string
	for _, v := range c.table.Variants() {
		switch {
		case v.HasAccidentalDeath:
			adb = v.Name
		case v.HasReturnOfPremium:
			rop = v.Name
		default:
			plain = v.Name
		}
	}
	switch {
	case in.Age < 35 && adb != "":
		return adb
	case in.Age >= 50 && plain != "":
		return plain
	case rop != "":
		if v, ok := c.table.Variant(rop); ok && in.SumAssured <= v.MaxSumAssured && in.TermYears <= v.MaxTermYears {
			return rop
		}
	}
	return plain
}

func (c *Calculator) quoteID(in Input, variant string) id.QuoteID {
	key := fmt.Sprintf("%d|%s|%t|%d|%d|%d|%t|%t|%s|%s",
		in.Age, in.Gender, in.TobaccoUser, in.OccupationClass,
		in.SumAssured, in.TermYears, in.OnlinePurchase, in.FirstTimeBuyer,
		variant, c.table.version)
	return id.QuoteID(uuid.NewSHA1(quoteNamespace, []byte(key)))
}
