// Package filter builds query predicates from user-facing criteria.
//
// Every criterion becomes one database.Predicate; Create returns them in a
// fixed order so the cheapest approach-level checks run before checks that
// follow the link to the NEO.
package filter

import (
	"cmp"
	"fmt"
	"iter"
	"math"
	"strings"
	"time"

	"github.com/Aman-CERP/neodb/internal/database"
	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/models"
)

// DateLayout is the accepted format for date criteria.
const DateLayout = "2006-01-02"

// Operator compares an attribute against a reference value.
type Operator string

// Supported operators.
const (
	LT Operator = "<"
	LE Operator = "<="
	EQ Operator = "=="
	GE Operator = ">="
	GT Operator = ">"
)

// Getter extracts an attribute from an approach. A false second result
// means the attribute is unavailable and the predicate does not match.
type Getter[T cmp.Ordered] func(*models.CloseApproach) (T, bool)

// Attribute returns a predicate comparing getter(approach) op value.
func Attribute[T cmp.Ordered](get Getter[T], op Operator, value T) database.Predicate {
	return func(ca *models.CloseApproach) bool {
		v, ok := get(ca)
		if !ok {
			return false
		}
		c := cmp.Compare(v, value)
		switch op {
		case LT:
			return c < 0
		case LE:
			return c <= 0
		case EQ:
			return c == 0
		case GE:
			return c >= 0
		case GT:
			return c > 0
		default:
			return false
		}
	}
}

// Attribute getters.
var (
	// Date yields the calendar date of the approach, which sorts lexically.
	Date Getter[string] = func(ca *models.CloseApproach) (string, bool) {
		return ca.Time.UTC().Format(DateLayout), true
	}

	Distance Getter[float64] = func(ca *models.CloseApproach) (float64, bool) {
		return ca.Distance, true
	}

	Velocity Getter[float64] = func(ca *models.CloseApproach) (float64, bool) {
		return ca.Velocity, true
	}

	// Diameter is unavailable for unlinked approaches and unknown diameters.
	Diameter Getter[float64] = func(ca *models.CloseApproach) (float64, bool) {
		if ca.NEO == nil || math.IsNaN(ca.NEO.Diameter) {
			return 0, false
		}
		return ca.NEO.Diameter, true
	}

	Designation Getter[string] = func(ca *models.CloseApproach) (string, bool) {
		return ca.Designation, true
	}
)

// Options holds the optional query criteria. Nil or empty fields are ignored.
type Options struct {
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time

	DistanceMin *float64
	DistanceMax *float64
	VelocityMin *float64
	VelocityMax *float64
	DiameterMin *float64
	DiameterMax *float64

	// Hazardous restricts to approaches of (non-)hazardous NEOs.
	Hazardous *bool

	// Designation restricts to one object.
	Designation string
}

// IsEmpty reports whether no criterion is set.
func (o Options) IsEmpty() bool {
	return len(Create(o)) == 0
}

// Criteria returns the names of the criteria set, in a fixed order.
func (o Options) Criteria() []string {
	set := []struct {
		name string
		on   bool
	}{
		{"date", o.Date != nil},
		{"start_date", o.StartDate != nil},
		{"end_date", o.EndDate != nil},
		{"min_distance", o.DistanceMin != nil},
		{"max_distance", o.DistanceMax != nil},
		{"min_velocity", o.VelocityMin != nil},
		{"max_velocity", o.VelocityMax != nil},
		{"min_diameter", o.DiameterMin != nil},
		{"max_diameter", o.DiameterMax != nil},
		{"hazardous", o.Hazardous != nil},
		{"designation", strings.TrimSpace(o.Designation) != ""},
	}
	var names []string
	for _, c := range set {
		if c.on {
			names = append(names, c.name)
		}
	}
	return names
}

// Validate rejects ranges whose lower bound exceeds the upper bound.
func (o Options) Validate() error {
	if o.StartDate != nil && o.EndDate != nil && o.StartDate.After(*o.EndDate) {
		return invalidRange("date", o.StartDate.Format(DateLayout), o.EndDate.Format(DateLayout))
	}
	bounds := []struct {
		name     string
		min, max *float64
	}{
		{"distance", o.DistanceMin, o.DistanceMax},
		{"velocity", o.VelocityMin, o.VelocityMax},
		{"diameter", o.DiameterMin, o.DiameterMax},
	}
	for _, b := range bounds {
		if b.min != nil && b.max != nil && *b.min > *b.max {
			return invalidRange(b.name, fmt.Sprint(*b.min), fmt.Sprint(*b.max))
		}
	}
	return nil
}

func invalidRange(name, lo, hi string) error {
	return neoerrors.New(neoerrors.ErrCodeInvalidFilter,
		fmt.Sprintf("%s range is empty: minimum %s is greater than maximum %s", name, lo, hi), nil).
		WithDetail("filter", name)
}

// Create builds the predicates for every criterion set in opts.
func Create(opts Options) []database.Predicate {
	var filters []database.Predicate

	if opts.Designation != "" {
		filters = append(filters, Attribute(Designation, EQ, strings.TrimSpace(opts.Designation)))
	}

	// Date filters
	if opts.Date != nil {
		filters = append(filters, Attribute(Date, EQ, opts.Date.Format(DateLayout)))
	}
	if opts.StartDate != nil {
		filters = append(filters, Attribute(Date, GE, opts.StartDate.Format(DateLayout)))
	}
	if opts.EndDate != nil {
		filters = append(filters, Attribute(Date, LE, opts.EndDate.Format(DateLayout)))
	}

	// Approach measurements
	filters = appendRange(filters, Distance, opts.DistanceMin, opts.DistanceMax)
	filters = appendRange(filters, Velocity, opts.VelocityMin, opts.VelocityMax)

	// NEO attributes
	filters = appendRange(filters, Diameter, opts.DiameterMin, opts.DiameterMax)
	if opts.Hazardous != nil {
		filters = append(filters, hazardousFilter(*opts.Hazardous))
	}

	return filters
}

func appendRange(filters []database.Predicate, get Getter[float64], lo, hi *float64) []database.Predicate {
	if lo != nil {
		filters = append(filters, Attribute(get, GE, *lo))
	}
	if hi != nil {
		filters = append(filters, Attribute(get, LE, *hi))
	}
	return filters
}

// hazardousFilter never matches unlinked approaches.
func hazardousFilter(want bool) database.Predicate {
	return func(ca *models.CloseApproach) bool {
		return ca.NEO != nil && ca.NEO.Hazardous == want
	}
}

// Limit yields at most n elements of seq. n <= 0 means no limit.
func Limit[T any](seq iter.Seq[T], n int) iter.Seq[T] {
	if n <= 0 {
		return seq
	}
	return func(yield func(T) bool) {
		count := 0
		for v := range seq {
			if !yield(v) {
				return
			}
			count++
			if count >= n {
				return
			}
		}
	}
}

// ParseDate parses a YYYY-MM-DD value into a UTC date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, neoerrors.New(neoerrors.ErrCodeInvalidFilter,
			fmt.Sprintf("invalid date %q", s), err).
			WithSuggestion("Use YYYY-MM-DD")
	}
	return t, nil
}
