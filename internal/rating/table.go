// Package rating holds the versioned rate table and the premium calculator.
//
// The table is immutable once loaded. Completeness is enforced at load time:
// every variant must cover the full age partition for both genders and every
// factor table must be total over its declared categories. A gap is a
// configuration error that refuses startup, never a runtime fallback.
package rating

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrConfiguration marks rate-table defects found at load time.
var ErrConfiguration = errors.New("rate table configuration error")

// Gender is the rating axis; the table carries rates for exactly these two.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender validates an inbound gender value.
func ParseGender(s string) (Gender, bool) {
	switch Gender(s) {
	case GenderMale, GenderFemale:
		return Gender(s), true
	}
	return "", false
}

// AgeBand is one cell of the age partition: inclusive lower bound,
// exclusive upper bound. An age exactly on a boundary resolves to the band
// that starts at that age.
type AgeBand struct {
	From int
	To   int
}

func (b AgeBand) contains(age int) bool { return age >= b.From && age < b.To }

func (b AgeBand) String() string { return fmt.Sprintf("%d-%d", b.From, b.To-1) }

// Variant is one sellable product configuration.
type Variant struct {
	Name               string
	Features           []string
	HasAccidentalDeath bool
	HasReturnOfPremium bool
	MinSumAssured      int64
	MaxSumAssured      int64
	MinTermYears       int
	MaxTermYears       int
}

// TermBucket maps a contiguous policy-term range (inclusive) to a factor.
type TermBucket struct {
	FromYears int
	ToYears   int
	Factor    decimal.Decimal
}

// SumAssuredBand maps cover up to UpTo rupees (inclusive) to a factor.
// UpTo of zero marks the open-ended final band.
type SumAssuredBand struct {
	Name   string
	UpTo   int64
	Factor decimal.Decimal
}

// DiscountKind identifies the predicate a discount rule evaluates.
// The set is closed; an unknown kind in the document is a config error.
type DiscountKind string

const (
	DiscountNonTobacco     DiscountKind = "non_tobacco"
	DiscountFemaleLife     DiscountKind = "female_life"
	DiscountOnlinePurchase DiscountKind = "online_purchase"
	DiscountFirstTimeBuyer DiscountKind = "first_time_buyer"
	DiscountHighSumAssured DiscountKind = "high_sum_assured"
)

// DiscountRule is one entry of the stacking order. Percent is whole
// percentage points (10 means 10%). MinSumAssured applies to the
// high_sum_assured kind only.
type DiscountRule struct {
	Kind          DiscountKind
	Name          string
	Percent       decimal.Decimal
	MinSumAssured int64
}

type bandRate struct {
	band     AgeBand
	byGender map[Gender]decimal.Decimal
}

type variantRates struct {
	Variant
	bands []bandRate
}

// Table is the immutable, versioned rate table.
type Table struct {
	version string
	hash    string

	minAge int
	maxAge int

	minMonthlyPremium decimal.Decimal
	discountCap       decimal.Decimal
	modalMonthly      decimal.Decimal

	tobaccoFactors    map[bool]decimal.Decimal
	occupationFactors map[int]decimal.Decimal
	termBuckets       []TermBucket
	sumAssuredBands   []SumAssuredBand
	discounts         []DiscountRule

	variantOrder []string
	variants     map[string]*variantRates
}

// Version returns the semantic version declared by the document.
func (t *Table) Version() string { return t.version }

// Hash returns the content hash of the canonical document bytes.
func (t *Table) Hash() string { return t.hash }

// MinAge and MaxAge bound the eligible entry age, inclusive.
func (t *Table) MinAge() int { return t.minAge }
func (t *Table) MaxAge() int { return t.maxAge }

// Variants returns all variants in declared order.
func (t *Table) Variants() []Variant {
	out := make([]Variant, 0, len(t.variantOrder))
	for _, name := range t.variantOrder {
		out = append(out, t.variants[name].Variant)
	}
	return out
}

// Variant looks up one variant by name.
func (t *Table) Variant(name string) (Variant, bool) {
	vr, ok := t.variants[name]
	if !ok {
		return Variant{}, false
	}
	return vr.Variant, true
}

// BaseRate returns the per-1000-sum-assured base rate for the given cell.
func (t *Table) BaseRate(variant string, age int, gender Gender) (decimal.Decimal, error) {
	vr, ok := t.variants[variant]
	if !ok {
		return decimal.Zero, newError(ReasonMissingFactor, "no rates for variant %q", variant)
	}
	for _, br := range vr.bands {
		if br.band.contains(age) {
			rate, ok := br.byGender[gender]
			if !ok {
				return decimal.Zero, newError(ReasonMissingFactor,
					"no %s rate for %s age band %s", gender, variant, br.band)
			}
			return rate, nil
		}
	}
	return decimal.Zero, newError(ReasonMissingFactor, "no age band for age %d", age)
}

// TobaccoFactor returns the loading for tobacco use.
func (t *Table) TobaccoFactor(user bool) (decimal.Decimal, error) {
	f, ok := t.tobaccoFactors[user]
	if !ok {
		return decimal.Zero, newError(ReasonMissingFactor, "no tobacco factor for user=%t", user)
	}
	return f, nil
}

// OccupationFactor returns the loading for an occupation class (1..4).
func (t *Table) OccupationFactor(class int) (decimal.Decimal, error) {
	f, ok := t.occupationFactors[class]
	if !ok {
		return decimal.Zero, newError(ReasonMissingFactor, "no occupation factor for class %d", class)
	}
	return f, nil
}

// TermFactor returns the policy-term bucket factor for a term in years.
func (t *Table) TermFactor(termYears int) (decimal.Decimal, error) {
	for _, b := range t.termBuckets {
		if termYears >= b.FromYears && termYears <= b.ToYears {
			return b.Factor, nil
		}
	}
	return decimal.Zero, newError(ReasonMissingFactor, "no term bucket for %d years", termYears)
}

// SumAssuredFactor returns the band factor for the requested cover.
func (t *Table) SumAssuredFactor(sumAssured int64) (decimal.Decimal, error) {
	for _, b := range t.sumAssuredBands {
		if b.UpTo == 0 || sumAssured <= b.UpTo {
			return b.Factor, nil
		}
	}
	return decimal.Zero, newError(ReasonMissingFactor, "no sum assured band for %d", sumAssured)
}

// Discounts returns the discount rules in declared stacking order.
func (t *Table) Discounts() []DiscountRule { return t.discounts }

// DiscountCap is the ceiling on the accumulated discount fraction.
func (t *Table) DiscountCap() decimal.Decimal { return t.discountCap }

// MinMonthlyPremium is the floor below which quotes are rejected.
func (t *Table) MinMonthlyPremium() decimal.Decimal { return t.minMonthlyPremium }

// validate enforces the completeness invariant after load.
func (t *Table) validate() error {
	if len(t.variants) == 0 {
		return fmt.Errorf("%w: no variants", ErrConfiguration)
	}
	if t.minAge >= t.maxAge {
		return fmt.Errorf("%w: age range [%d,%d] is empty", ErrConfiguration, t.minAge, t.maxAge)
	}
	if t.discountCap.LessThanOrEqual(decimal.Zero) || t.discountCap.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: discount cap %s outside (0,1]", ErrConfiguration, t.discountCap)
	}
	if t.modalMonthly.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: monthly modal factor must be positive", ErrConfiguration)
	}

	for _, user := range []bool{true, false} {
		if _, ok := t.tobaccoFactors[user]; !ok {
			return fmt.Errorf("%w: missing tobacco factor for user=%t", ErrConfiguration, user)
		}
	}
	for class := 1; class <= 4; class++ {
		if _, ok := t.occupationFactors[class]; !ok {
			return fmt.Errorf("%w: missing occupation factor for class %d", ErrConfiguration, class)
		}
	}

	for _, name := range t.variantOrder {
		vr := t.variants[name]
		if err := t.validateBands(vr); err != nil {
			return err
		}
		if vr.MinSumAssured <= 0 || vr.MaxSumAssured < vr.MinSumAssured {
			return fmt.Errorf("%w: %s sum assured range invalid", ErrConfiguration, name)
		}
		if vr.MinTermYears <= 0 || vr.MaxTermYears < vr.MinTermYears {
			return fmt.Errorf("%w: %s term range invalid", ErrConfiguration, name)
		}
		for term := vr.MinTermYears; term <= vr.MaxTermYears; term++ {
			if _, err := t.TermFactor(term); err != nil {
				return fmt.Errorf("%w: %s supports %d-year terms but no bucket covers it",
					ErrConfiguration, name, term)
			}
		}
	}

	if len(t.sumAssuredBands) == 0 || t.sumAssuredBands[len(t.sumAssuredBands)-1].UpTo != 0 {
		return fmt.Errorf("%w: sum assured bands must end with an open band", ErrConfiguration)
	}
	sorted := sort.SliceIsSorted(t.sumAssuredBands[:len(t.sumAssuredBands)-1], func(i, j int) bool {
		return t.sumAssuredBands[i].UpTo < t.sumAssuredBands[j].UpTo
	})
	if !sorted {
		return fmt.Errorf("%w: sum assured bands out of order", ErrConfiguration)
	}

	for _, d := range t.discounts {
		switch d.Kind {
		case DiscountNonTobacco, DiscountFemaleLife, DiscountOnlinePurchase,
			DiscountFirstTimeBuyer, DiscountHighSumAssured:
		default:
			return fmt.Errorf("%w: unknown discount kind %q", ErrConfiguration, d.Kind)
		}
		if d.Percent.IsNegative() {
			return fmt.Errorf("%w: discount %q has negative percent", ErrConfiguration, d.Name)
		}
	}
	return nil
}

// validateBands checks one variant's age bands form a closed, ordered,
// non-overlapping partition of [minAge, maxAge] with both genders rated.
func (t *Table) validateBands(vr *variantRates) error {
	if len(vr.bands) == 0 {
		return fmt.Errorf("%w: %s has no age bands", ErrConfiguration, vr.Name)
	}
	expect := t.minAge
	for _, br := range vr.bands {
		if br.band.From != expect {
			return fmt.Errorf("%w: %s age bands have a gap at age %d", ErrConfiguration, vr.Name, expect)
		}
		if br.band.To <= br.band.From {
			return fmt.Errorf("%w: %s band %s is empty", ErrConfiguration, vr.Name, br.band)
		}
		for _, g := range []Gender{GenderMale, GenderFemale} {
			rate, ok := br.byGender[g]
			if !ok || rate.LessThanOrEqual(decimal.Zero) {
				return fmt.Errorf("%w: %s band %s missing %s rate", ErrConfiguration, vr.Name, br.band, g)
			}
		}
		expect = br.band.To
	}
	if expect != t.maxAge+1 {
		return fmt.Errorf("%w: %s age bands stop at %d, want %d", ErrConfiguration, vr.Name, expect-1, t.maxAge)
	}
	return nil
}
