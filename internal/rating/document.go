package rating

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ratetable.json is the shipped rate-table document. Operators can point
// RATE_TABLE_PATH at a newer version; quotes embed whichever version they
// were computed against.
//
//go:embed ratetable.json
var embeddedDocument []byte

// document is the JSON shape of a rate-table configuration document.
type document struct {
	Version           string          `json:"version"`
	MinAge            int             `json:"min_age"`
	MaxAge            int             `json:"max_age"`
	MinMonthlyPremium decimal.Decimal `json:"min_monthly_premium"`
	DiscountCap       decimal.Decimal `json:"discount_cap"`
	ModalFactors      struct {
		Monthly decimal.Decimal `json:"monthly"`
	} `json:"modal_factors"`
	Adjustments struct {
		Tobacco struct {
			User    decimal.Decimal `json:"user"`
			NonUser decimal.Decimal `json:"non_user"`
		} `json:"tobacco"`
		OccupationClasses map[string]decimal.Decimal `json:"occupation_classes"`
		TermBuckets       []struct {
			FromYears int             `json:"from_years"`
			ToYears   int             `json:"to_years"`
			Factor    decimal.Decimal `json:"factor"`
		} `json:"term_buckets"`
		SumAssuredBands []struct {
			Name   string          `json:"name"`
			UpTo   int64           `json:"up_to"`
			Factor decimal.Decimal `json:"factor"`
		} `json:"sum_assured_bands"`
	} `json:"adjustments"`
	Discounts []struct {
		Kind          string          `json:"kind"`
		Name          string          `json:"name"`
		Percent       decimal.Decimal `json:"percent"`
		MinSumAssured int64           `json:"min_sum_assured,omitempty"`
	} `json:"discounts"`
	Variants []struct {
		Name               string   `json:"name"`
		Features           []string `json:"features"`
		HasAccidentalDeath bool     `json:"has_accidental_death"`
		HasReturnOfPremium bool     `json:"has_return_of_premium"`
		MinSumAssured      int64    `json:"min_sum_assured"`
		MaxSumAssured      int64    `json:"max_sum_assured"`
		MinTermYears       int      `json:"min_term_years"`
		MaxTermYears       int      `json:"max_term_years"`
		AgeBands           []struct {
			From   int             `json:"from"`
			To     int             `json:"to"`
			Male   decimal.Decimal `json:"male"`
			Female decimal.Decimal `json:"female"`
		} `json:"age_bands"`
	} `json:"variants"`
}

// LoadDefault parses the embedded document.
func LoadDefault() (*Table, error) {
	return Parse(embeddedDocument)
}

// LoadFile parses a rate-table document from disk. Used when an operator
// overrides the shipped table.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a rate-table document. Any structural gap is
// a configuration error; a Table returned here is complete by construction.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrConfiguration, err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrConfiguration)
	}

	sum := sha256.Sum256(data)

	t := &Table{
		version:           doc.Version,
		hash:              hex.EncodeToString(sum[:8]),
		minAge:            doc.MinAge,
		maxAge:            doc.MaxAge,
		minMonthlyPremium: doc.MinMonthlyPremium,
		discountCap:       doc.DiscountCap,
		modalMonthly:      doc.ModalFactors.Monthly,
		tobaccoFactors: map[bool]decimal.Decimal{
			true:  doc.Adjustments.Tobacco.User,
			false: doc.Adjustments.Tobacco.NonUser,
		},
		occupationFactors: make(map[int]decimal.Decimal, len(doc.Adjustments.OccupationClasses)),
		variants:          make(map[string]*variantRates, len(doc.Variants)),
	}

	// Zero factors mean the document omitted the entry.
	if doc.Adjustments.Tobacco.User.IsZero() || doc.Adjustments.Tobacco.NonUser.IsZero() {
		return nil, fmt.Errorf("%w: tobacco factors incomplete", ErrConfiguration)
	}

	for classStr, factor := range doc.Adjustments.OccupationClasses {
		var class int
		if _, err := fmt.Sscanf(classStr, "%d", &class); err != nil {
			return nil, fmt.Errorf("%w: occupation class %q is not numeric", ErrConfiguration, classStr)
		}
		t.occupationFactors[class] = factor
	}

	for _, b := range doc.Adjustments.TermBuckets {
		t.termBuckets = append(t.termBuckets, TermBucket{
			FromYears: b.FromYears, ToYears: b.ToYears, Factor: b.Factor,
		})
	}
	for _, b := range doc.Adjustments.SumAssuredBands {
		t.sumAssuredBands = append(t.sumAssuredBands, SumAssuredBand{
			Name: b.Name, UpTo: b.UpTo, Factor: b.Factor,
		})
	}
	for _, d := range doc.Discounts {
		t.discounts = append(t.discounts, DiscountRule{
			Kind:          DiscountKind(d.Kind),
			Name:          d.Name,
			Percent:       d.Percent,
			MinSumAssured: d.MinSumAssured,
		})
	}

	for _, v := range doc.Variants {
		if _, exists := t.variants[v.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate variant %q", ErrConfiguration, v.Name)
		}
		vr := &variantRates{
			Variant: Variant{
				Name:               v.Name,
				Features:           v.Features,
				HasAccidentalDeath: v.HasAccidentalDeath,
				HasReturnOfPremium: v.HasReturnOfPremium,
				MinSumAssured:      v.MinSumAssured,
				MaxSumAssured:      v.MaxSumAssured,
				MinTermYears:       v.MinTermYears,
				MaxTermYears:       v.MaxTermYears,
			},
		}
		for _, band := range v.AgeBands {
			vr.bands = append(vr.bands, bandRate{
				band: AgeBand{From: band.From, To: band.To},
				byGender: map[Gender]decimal.Decimal{
					GenderMale:   band.Male,
					GenderFemale: band.Female,
				},
			})
		}
		t.variantOrder = append(t.variantOrder, v.Name)
		t.variants[v.Name] = vr
	}

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}
