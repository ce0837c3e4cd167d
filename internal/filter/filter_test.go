package filter

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/neodb/internal/database"
	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/models"
)

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func testDB(t *testing.T) *database.NEODatabase {
	t.Helper()
	neos := []*models.NearEarthObject{
		{Designation: "433", Name: "Eros", Diameter: 16.84},
		{Designation: "99942", Name: "Apophis", Diameter: 0.37, Hazardous: true},
		{Designation: "2020 AB", Diameter: math.NaN()},
	}
	at := func(d int, h int) time.Time { return time.Date(2020, 1, d, h, 30, 0, 0, time.UTC) }
	approaches := []*models.CloseApproach{
		{Designation: "433", Time: at(1, 6), Distance: 0.15, Velocity: 5.3},
		{Designation: "99942", Time: at(1, 23), Distance: 0.0003, Velocity: 7.4},
		{Designation: "ghost", Time: at(2, 0), Distance: 0.4, Velocity: 12.0},
		{Designation: "433", Time: at(3, 12), Distance: 0.31, Velocity: 6.1},
		{Designation: "2020 AB", Time: at(4, 1), Distance: 0.02, Velocity: 22.5},
	}
	db, err := database.New(neos, approaches)
	require.NoError(t, err)
	return db
}

func designations(seq []*models.CloseApproach) []string {
	out := make([]string, 0, len(seq))
	for _, ca := range seq {
		out = append(out, ca.Designation+"@"+ca.Time.Format("02"))
	}
	return out
}

func TestCreate_SingleCriterion(t *testing.T) {
	db := testDB(t)

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"no criteria", Options{}, []string{"433@01", "99942@01", "ghost@02", "433@03", "2020 AB@04"}},
		{"exact date ignores time of day", Options{Date: date(2020, 1, 1)}, []string{"433@01", "99942@01"}},
		{"start date inclusive", Options{StartDate: date(2020, 1, 3)}, []string{"433@03", "2020 AB@04"}},
		{"end date inclusive", Options{EndDate: date(2020, 1, 2)}, []string{"433@01", "99942@01", "ghost@02"}},
		{"max distance", Options{DistanceMax: ptr(0.1)}, []string{"99942@01", "2020 AB@04"}},
		{"min distance", Options{DistanceMin: ptr(0.31)}, []string{"ghost@02", "433@03"}},
		{"velocity range", Options{VelocityMin: ptr(6.0), VelocityMax: ptr(12.0)}, []string{"99942@01", "ghost@02", "433@03"}},
		{"min diameter skips orphans and unknown", Options{DiameterMin: ptr(0.0)}, []string{"433@01", "99942@01", "433@03"}},
		{"max diameter", Options{DiameterMax: ptr(1.0)}, []string{"99942@01"}},
		{"hazardous", Options{Hazardous: ptr(true)}, []string{"99942@01"}},
		{"not hazardous skips orphans", Options{Hazardous: ptr(false)}, []string{"433@01", "433@03", "2020 AB@04"}},
		{"designation", Options{Designation: "433"}, []string{"433@01", "433@03"}},
		{"orphan designation", Options{Designation: "ghost"}, []string{"ghost@02"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(db.Query(Create(tt.opts)...))
			assert.Equal(t, tt.want, designations(got))
		})
	}
}

func TestCreate_CombinedCriteriaCommute(t *testing.T) {
	// Given: two independent criteria
	db := testDB(t)
	filters := Create(Options{DistanceMax: ptr(0.2), Hazardous: ptr(false)})
	require.Len(t, filters, 2)

	// When: applying them in both orders
	forward := slices.Collect(db.Query(filters[0], filters[1]))
	backward := slices.Collect(db.Query(filters[1], filters[0]))

	// Then: both equal the intersection of the single-filter results
	assert.Equal(t, forward, backward)
	assert.Equal(t, []string{"433@01", "2020 AB@04"}, designations(forward))
}

func TestOptions_IsEmpty(t *testing.T) {
	assert.True(t, Options{}.IsEmpty())
	assert.False(t, Options{Hazardous: ptr(false)}.IsEmpty())
}

func TestOptions_Criteria(t *testing.T) {
	assert.Nil(t, Options{}.Criteria())
	assert.Nil(t, Options{Designation: "  "}.Criteria())

	opts := Options{
		Designation: "433",
		StartDate:   date(2020, 1, 1),
		DistanceMax: ptr(0.0),
		Hazardous:   ptr(false),
	}
	assert.Equal(t, []string{"start_date", "max_distance", "hazardous", "designation"}, opts.Criteria())
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, Options{}.Validate())
	assert.NoError(t, Options{DistanceMin: ptr(0.1), DistanceMax: ptr(0.1)}.Validate())

	err := Options{VelocityMin: ptr(10.0), VelocityMax: ptr(5.0)}.Validate()
	require.Error(t, err)
	assert.Equal(t, neoerrors.ErrCodeInvalidFilter, neoerrors.GetCode(err))

	err = Options{StartDate: date(2021, 1, 1), EndDate: date(2020, 1, 1)}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date range is empty")
}

func TestAttribute_Operators(t *testing.T) {
	ca := &models.CloseApproach{Distance: 0.5}

	tests := []struct {
		op    Operator
		value float64
		want  bool
	}{
		{LT, 0.6, true},
		{LT, 0.5, false},
		{LE, 0.5, true},
		{EQ, 0.5, true},
		{EQ, 0.4, false},
		{GE, 0.5, true},
		{GT, 0.5, false},
		{GT, 0.4, true},
		{Operator("!="), 0.4, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, Attribute(Distance, tt.op, tt.value)(ca))
		})
	}
}

func TestAttribute_UnavailableNeverMatches(t *testing.T) {
	orphan := &models.CloseApproach{Designation: "ghost"}
	unknown := &models.CloseApproach{NEO: &models.NearEarthObject{Diameter: math.NaN()}}

	for _, op := range []Operator{LT, LE, EQ, GE, GT} {
		assert.False(t, Attribute(Diameter, op, 1.0)(orphan))
		assert.False(t, Attribute(Diameter, op, 1.0)(unknown))
	}
}

func TestLimit(t *testing.T) {
	db := testDB(t)

	tests := []struct {
		name string
		n    int
		want int
	}{
		{"zero is unlimited", 0, 5},
		{"negative is unlimited", -1, 5},
		{"truncates", 2, 2},
		{"larger than input", 50, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, slices.Collect(Limit(db.Query(), tt.n)), tt.want)
		})
	}
}

func TestLimit_StopsPullingEarly(t *testing.T) {
	db := testDB(t)
	pulled := 0
	counting := database.Predicate(func(*models.CloseApproach) bool { pulled++; return true })

	got := slices.Collect(Limit(db.Query(counting), 2))

	assert.Len(t, got, 2)
	assert.Equal(t, 2, pulled)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2020-01-01")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err = ParseDate("01/01/2020")
	require.Error(t, err)
	assert.True(t, neoerrors.IsValidation(err))
}
