package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"lifeshield/internal/rating"
	"lifeshield/internal/session"
	dErrors "lifeshield/pkg/domain-errors"
)

var (
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	pinPattern    = regexp.MustCompile(`^\d{6}$`)
)

// occupationClasses maps declared occupations to rating classes 1..4.
// Anything not listed rates as class 2 (standard commercial risk).
var occupationClasses = map[string]int{
	"salaried":      1,
	"teacher":       1,
	"engineer":      1,
	"doctor":        1,
	"professional":  1,
	"government":    1,
	"business":      2,
	"self_employed": 2,
	"shopkeeper":    2,
	"farmer":        2,
	"driver":        3,
	"electrician":   3,
	"technician":    3,
	"construction":  3,
	"mining":        4,
	"armed_forces":  4,
	"pilot":         4,
	"offshore":      4,
}

const defaultOccupationClass = 2

// incomeFloor is the minimum annual income accepted at eligibility.
const incomeFloor = 100_000

// applyField validates one submitted value and writes both the raw value
// and the typed projection onto the profile. A failure leaves the profile
// untouched for that field.
func applyField(profile *session.ApplicantProfile, name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return dErrors.Newf(dErrors.CodeValidation, "%s cannot be empty", name)
	}

	switch name {
	case "full_name":
		if len(value) < 2 {
			return dErrors.New(dErrors.CodeValidation, "please share your full name")
		}
		profile.FullName = value

	case "email":
		if !emailPattern.MatchString(value) {
			return dErrors.New(dErrors.CodeValidation, "that email address does not look right")
		}
		profile.Email = strings.ToLower(value)

	case "mobile_number":
		digits := strings.NewReplacer(" ", "", "-", "", "+91", "").Replace(value)
		if !mobilePattern.MatchString(digits) {
			return dErrors.New(dErrors.CodeValidation, "please provide a valid 10-digit Indian mobile number")
		}
		profile.MobileNumber = digits

	case "date_of_birth":
		dob, err := time.Parse("2006-01-02", value)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "please provide your date of birth as YYYY-MM-DD")
		}
		age := ageAt(dob, time.Now().UTC())
		if age < 0 || age > 120 {
			return dErrors.New(dErrors.CodeValidation, "that date of birth does not look right")
		}
		profile.DateOfBirth = dob
		profile.Age = age

	case "gender":
		g, ok := rating.ParseGender(strings.ToLower(value))
		if !ok {
			return dErrors.New(dErrors.CodeValidation, "please choose male or female")
		}
		profile.Gender = g

	case "pin_code":
		if !pinPattern.MatchString(value) {
			return dErrors.New(dErrors.CodeValidation, "please provide a 6-digit PIN code")
		}
		profile.PinCode = value

	case "annual_income":
		income, err := strconv.ParseInt(strings.ReplaceAll(value, ",", ""), 10, 64)
		if err != nil || income <= 0 {
			return dErrors.New(dErrors.CodeValidation, "please share your annual income as a number in rupees")
		}
		profile.AnnualIncome = income

	case "occupation":
		key := strings.ToLower(strings.ReplaceAll(value, " ", "_"))
		class, ok := occupationClasses[key]
		if !ok {
			class = defaultOccupationClass
		}
		profile.Occupation = key
		profile.OccupationClass = class

	case "tobacco_user":
		use, err := parseYesNo(value)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "please answer yes or no for tobacco use")
		}
		profile.TobaccoUser = &use

	case "first_time_buyer":
		first, err := parseYesNo(value)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "please answer yes or no")
		}
		profile.FirstTimeBuyer = first

	case "sum_assured":
		sa, err := strconv.ParseInt(strings.ReplaceAll(value, ",", ""), 10, 64)
		if err != nil || sa <= 0 {
			return dErrors.New(dErrors.CodeValidation, "please share the cover amount as a number in rupees")
		}
		profile.SumAssured = sa

	case "policy_term":
		term, err := strconv.Atoi(value)
		if err != nil || term <= 0 {
			return dErrors.New(dErrors.CodeValidation, "please share the policy term in years")
		}
		profile.TermYears = term

	default:
		// Unknown fields are kept raw; later stages may consume them.
	}

	profile.SetField(name, value)
	return nil
}

func parseYesNo(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	}
	return false, dErrors.New(dErrors.CodeValidation, "expected yes or no")
}

// ageAt computes completed years between dob and now. Month and day are
// compared directly; year-day ordinals shift across leap years and would
// misage applicants born after February.
func ageAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
