// Package models defines the near-Earth object and close approach entities.
//
// A NearEarthObject owns the ordered list of its close approaches and a
// CloseApproach points back at its NearEarthObject. Both links are plain
// pointers populated by the database once, at construction time; neither
// side owns the other.
package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
)

// TimeLayout is the canonical minute-precision timestamp format.
const TimeLayout = "2006-01-02 15:04"

// Accepted input timestamp layouts, tried in order.
var timeLayouts = []string{
	TimeLayout,
	"2006-01-02",
	"2006-Jan-02 15:04",
}

// NEORecord is the raw, unvalidated NEO row handed over by an extractor.
type NEORecord struct {
	Designation string
	Name        string
	Diameter    string
	Hazardous   bool
}

// ApproachRecord is the raw, unvalidated close approach row.
type ApproachRecord struct {
	Designation string
	Time        string
	Distance    string
	Velocity    string
}

// NearEarthObject is a celestial body identified by its primary designation.
type NearEarthObject struct {
	// Designation is the unique primary designation (e.g. "433").
	Designation string

	// Name is the IAU name; empty when the object is unnamed.
	Name string

	// Diameter in kilometers; NaN when unknown.
	Diameter float64

	// Hazardous reports whether the object is potentially hazardous.
	Hazardous bool

	// Approaches is populated by the database in input order.
	Approaches []*CloseApproach
}

// NewNearEarthObject validates a raw record and builds a NearEarthObject.
func NewNearEarthObject(rec NEORecord) (*NearEarthObject, error) {
	designation := strings.TrimSpace(rec.Designation)
	if designation == "" {
		return nil, neoerrors.New(neoerrors.ErrCodeMissingField, "near-Earth object has no designation", nil).
			WithDetail("field", "designation")
	}

	diameter := math.NaN()
	if raw := strings.TrimSpace(rec.Diameter); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, neoerrors.New(neoerrors.ErrCodeInvalidNumber,
				fmt.Sprintf("diameter %q of %s is not a number", raw, designation), err).
				WithDetail("field", "diameter").
				WithDetail("designation", designation)
		}
		diameter = d
	}

	return &NearEarthObject{
		Designation: designation,
		Name:        strings.TrimSpace(rec.Name),
		Diameter:    diameter,
		Hazardous:   rec.Hazardous,
		Approaches:  make([]*CloseApproach, 0),
	}, nil
}

// FullName returns "designation (name)", or the bare designation when unnamed.
func (n *NearEarthObject) FullName() string {
	if n.Name == "" {
		return n.Designation
	}
	return fmt.Sprintf("%s (%s)", n.Designation, n.Name)
}

// HasDiameter reports whether the diameter is known.
func (n *NearEarthObject) HasDiameter() bool {
	return !math.IsNaN(n.Diameter)
}

func (n *NearEarthObject) String() string {
	hazard := "is not potentially hazardous"
	if n.Hazardous {
		hazard = "is potentially hazardous"
	}
	diameter := "an unknown diameter"
	if n.HasDiameter() {
		diameter = fmt.Sprintf("a diameter of %.3f km", n.Diameter)
	}
	return fmt.Sprintf("NEO %s has %s and %s.", n.FullName(), diameter, hazard)
}

// NEOView is the serialized form of a NearEarthObject.
type NEOView struct {
	Designation string   `json:"designation"`
	Name        *string  `json:"name"`
	DiameterKM  *float64 `json:"diameter_km"`
	Hazardous   bool     `json:"potentially_hazardous"`
}

// Serialize returns the output view. Absent name and unknown diameter are nil.
func (n *NearEarthObject) Serialize() NEOView {
	v := NEOView{
		Designation: n.Designation,
		Hazardous:   n.Hazardous,
	}
	if n.Name != "" {
		name := n.Name
		v.Name = &name
	}
	if n.HasDiameter() {
		d := n.Diameter
		v.DiameterKM = &d
	}
	return v
}

// CloseApproach is a single pass of a NEO near Earth.
type CloseApproach struct {
	// Designation of the approaching object, used for linking.
	Designation string

	// Time of closest approach, UTC, minute precision.
	Time time.Time

	// Distance is the nominal approach distance in au.
	Distance float64

	// Velocity is the relative approach velocity in km/s.
	Velocity float64

	// NEO is the linked object; nil when the designation is unknown.
	NEO *NearEarthObject
}

// NewCloseApproach validates a raw record and builds a CloseApproach.
func NewCloseApproach(rec ApproachRecord) (*CloseApproach, error) {
	designation := strings.TrimSpace(rec.Designation)
	if designation == "" {
		return nil, neoerrors.New(neoerrors.ErrCodeMissingField, "close approach has no designation", nil).
			WithDetail("field", "des")
	}

	t, err := ParseTime(rec.Time)
	if err != nil {
		if ne, ok := neoerrors.As(err); ok {
			ne.WithDetail("designation", designation)
		}
		return nil, err
	}

	distance, err := parseNumber("distance", rec.Distance, designation)
	if err != nil {
		return nil, err
	}
	velocity, err := parseNumber("velocity", rec.Velocity, designation)
	if err != nil {
		return nil, err
	}

	return &CloseApproach{
		Designation: designation,
		Time:        t,
		Distance:    distance,
		Velocity:    velocity,
	}, nil
}

// ParseTime parses a close approach timestamp into UTC.
// Accepted layouts: "2006-01-02 15:04", "2006-01-02" and "2006-Jan-02 15:04".
// Hours must have two digits.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		// Every layout is fixed width, but the "15" verb also takes one digit.
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, neoerrors.New(neoerrors.ErrCodeInvalidTimestamp,
		fmt.Sprintf("cannot parse time %q", s), nil).
		WithDetail("field", "time").
		WithSuggestion("Use YYYY-MM-DD HH:MM or YYYY-MM-DD")
}

func parseNumber(field, raw, designation string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, neoerrors.New(neoerrors.ErrCodeMissingField,
			fmt.Sprintf("%s of %s is empty", field, designation), nil).
			WithDetail("field", field).
			WithDetail("designation", designation)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, neoerrors.New(neoerrors.ErrCodeInvalidNumber,
			fmt.Sprintf("%s %q of %s is not a number", field, raw, designation), err).
			WithDetail("field", field).
			WithDetail("designation", designation)
	}
	return v, nil
}

// TimeString returns the approach time formatted without seconds.
func (c *CloseApproach) TimeString() string {
	return c.Time.UTC().Format(TimeLayout)
}

func (c *CloseApproach) String() string {
	who := c.Designation
	if c.NEO != nil {
		who = c.NEO.FullName()
	}
	return fmt.Sprintf("At %s, %s approaches Earth at a distance of %.2f au and a velocity of %.2f km/s.",
		c.TimeString(), who, c.Distance, c.Velocity)
}

// ApproachView is the serialized form of a CloseApproach.
type ApproachView struct {
	DateTimeUTC string   `json:"datetime_utc"`
	DistanceAU  float64  `json:"distance_au"`
	VelocityKMS float64  `json:"velocity_km_s"`
	NEO         *NEOView `json:"neo"`
}

// Serialize returns the output view with the linked NEO nested, or nil.
func (c *CloseApproach) Serialize() ApproachView {
	v := ApproachView{
		DateTimeUTC: c.TimeString(),
		DistanceAU:  c.Distance,
		VelocityKMS: c.Velocity,
	}
	if c.NEO != nil {
		nv := c.NEO.Serialize()
		v.NEO = &nv
	}
	return v
}
