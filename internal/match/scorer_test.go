package match

import (
	"math"
	"testing"
	"time"
)

var departure = time.Date(2026, 4, 10, 8, 30, 0, 0, time.UTC)

// perfectPair returns a candidate and criteria that agree on everything:
// identical route endpoints, identical time, same department, 5.0 rating
// and a 100 behavior score.
func perfectPair() (Candidate, Criteria) {
	rating := 5.0
	pref := departure
	c := Candidate{
		FromLat: 51.0890, FromLon: 71.4160,
		ToLat: 51.1605, ToLon: 71.4704,
		DepartureAt:      departure,
		DriverDepartment: "Computer Science",
		DriverRating:     &rating,
		BehaviorScore:    100,
	}
	q := Criteria{
		FromLat: c.FromLat, FromLon: c.FromLon,
		ToLat: c.ToLat, ToLon: c.ToLon,
		PreferredTime: &pref,
		Department:    "computer science",
	}
	return c, q
}

func TestScorePerfectMatch(t *testing.T) {
	t.Parallel()
	c, q := perfectPair()
	res := Score(c, q)

	sum := res.Breakdown.Route + res.Breakdown.Time + res.Breakdown.Department +
		res.Breakdown.Rating + res.Breakdown.Behavior
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("breakdown sums to %v, want 100", sum)
	}
	if math.Abs(res.Score-100) > 1e-9 {
		t.Errorf("Score: got %v, want 100", res.Score)
	}
	if res.Badge != BadgePerfect {
		t.Errorf("Badge: got %q, want %q", res.Badge, BadgePerfect)
	}
}

func TestScoreDefaultRatingNoDepartmentOverlap(t *testing.T) {
	t.Parallel()
	c, q := perfectPair()
	c.DriverRating = nil       // unrated driver counts as 3
	c.DriverDepartment = "Law" // no overlap, no shared faculty bucket
	q.Department = "Physics"
	res := Score(c, q)

	if res.Breakdown.Rating != 9 {
		t.Errorf("rating term: got %v, want 9 (3/5*15)", res.Breakdown.Rating)
	}
	if res.Breakdown.Department != 5 {
		t.Errorf("department term: got %v, want baseline 5", res.Breakdown.Department)
	}
	// 35 + 25 + 5 + 9 + 10 = 84 with perfect route/time.
	if math.Abs(res.Score-84) > 1e-9 {
		t.Errorf("Score: got %v, want 84", res.Score)
	}
	if res.Badge != BadgeGreat {
		t.Errorf("Badge: got %q, want %q", res.Badge, BadgeGreat)
	}
}

func TestScoreRelatedDepartment(t *testing.T) {
	t.Parallel()
	c, q := perfectPair()
	c.DriverDepartment = "Software Engineering"
	q.Department = "Computer Science"
	if res := Score(c, q); res.Breakdown.Department != 10 {
		t.Errorf("related field term: got %v, want 10", res.Breakdown.Department)
	}
}

func TestTimeTerm(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		offset time.Duration
		want   float64
	}{
		{"exact", 0, 25},
		{"two minutes", 2 * time.Minute, 25}, // floor(2/3) = 0
		{"three minutes", 3 * time.Minute, 24},
		{"half hour", 30 * time.Minute, 15},
		{"half hour early", -30 * time.Minute, 15},
		{"75 minutes floors to zero", 75 * time.Minute, 0},
		{"way off", 6 * time.Hour, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, q := perfectPair()
			pref := departure.Add(tc.offset)
			q.PreferredTime = &pref
			if res := Score(c, q); res.Breakdown.Time != tc.want {
				t.Errorf("time term: got %v, want %v", res.Breakdown.Time, tc.want)
			}
		})
	}
}

func TestTimeTermNoPreference(t *testing.T) {
	t.Parallel()
	c, q := perfectPair()
	q.PreferredTime = nil
	if res := Score(c, q); res.Breakdown.Time != 20 {
		t.Errorf("time term without preference: got %v, want 20", res.Breakdown.Time)
	}
}

func TestRouteTermFallsWithDistance(t *testing.T) {
	t.Parallel()
	c, q := perfectPair()
	near := Score(c, q).Breakdown.Route

	// Move the pickup roughly 2 km away; the term must drop but stay positive.
	q.FromLat += 0.018
	mid := Score(c, q).Breakdown.Route
	if !(mid < near) || mid <= 0 {
		t.Errorf("route term at ~2km: got %v, want between 0 and %v", mid, near)
	}

	// A pickup in another city zeroes the term entirely.
	q.FromLat += 3
	if far := Score(c, q).Breakdown.Route; far != 0 {
		t.Errorf("route term at hundreds of km: got %v, want 0", far)
	}
}

func TestBadgeThresholds(t *testing.T) {
	t.Parallel()
	cases := []struct {
		total float64
		want  string
	}{
		{100, BadgePerfect},
		{90, BadgePerfect},
		{89.9, BadgeGreat},
		{75, BadgeGreat},
		{74.9, BadgeGood},
		{60, BadgeGood},
		{59.9, BadgeFair},
		{40, BadgeFair},
		{39.9, ""},
		{0, ""},
	}
	for _, tc := range cases {
		if got := BadgeFor(tc.total); got != tc.want {
			t.Errorf("BadgeFor(%v): got %q, want %q", tc.total, got, tc.want)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()
	c, q := perfectPair()
	first := Score(c, q)
	for i := 0; i < 10; i++ {
		if got := Score(c, q); got != first {
			t.Fatalf("Score is not deterministic: got %+v then %+v", first, got)
		}
	}
}

func TestDistanceKm(t *testing.T) {
	t.Parallel()
	// Astana city centre to the airport, roughly 13 km.
	d := DistanceKm(51.1605, 71.4704, 51.0222, 71.4669)
	if d < 14 || d > 16.5 {
		t.Errorf("DistanceKm: got %v, want roughly 15", d)
	}
	if z := DistanceKm(51.1, 71.4, 51.1, 71.4); z != 0 {
		t.Errorf("zero distance: got %v", z)
	}
}
