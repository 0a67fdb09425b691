// Package match ranks candidate rides against a rider's search criteria.
//
// Score is a pure function: it touches no database, no clock and no global
// state, so identical inputs always produce identical output.  That keeps
// ranking independently testable and lets the HTTP layer cache results
// without the scorer knowing.
package match

import (
	"math"
	"strings"
	"time"
)

// Term maxima.  Each term is clamped to its own range before summing, so
// the total always lands in 0–100.
const (
	maxRoute      = 35.0
	maxTime       = 25.0
	maxDepartment = 15.0
	maxRating     = 15.0
	maxBehavior   = 10.0

	// routeDecayPerKm is how many route points one kilometre of combined
	// pickup+dropoff detour costs.  35/3.5 = 10 km of detour zeroes the term.
	routeDecayPerKm = 3.5

	// timeDefault is the time term handed out when the searcher gave no
	// preferred departure time.
	timeDefault = 20.0

	// defaultRating backfills drivers who have never been rated.
	defaultRating = 3.0
)

// Badge thresholds on the total score.
const (
	BadgePerfect = "perfect" // >= 90
	BadgeGreat   = "great"   // >= 75
	BadgeGood    = "good"    // >= 60
	BadgeFair    = "fair"    // >= 40
)

// Criteria describes what a searching rider is looking for.  PreferredTime
// may be nil when the rider is flexible.
type Criteria struct {
	FromLat, FromLon float64
	ToLat, ToLon     float64
	PreferredTime    *time.Time
	Department       string
}

// Candidate is the read-only snapshot of a ride fed to the scorer.  It is
// deliberately not the storage model: the scorer sees only what the search
// query joined in, so it cannot reach back into mutable state.
type Candidate struct {
	FromLat, FromLon float64
	ToLat, ToLon     float64
	DepartureAt      time.Time
	DriverDepartment string
	DriverRating     *float64 // nil when the driver has no ratings yet
	BehaviorScore    int      // 0–100, externally maintained
}

// Breakdown carries the per-term contributions so the UI can explain why a
// ride ranked where it did.
type Breakdown struct {
	Route      float64 `json:"route"`
	Time       float64 `json:"time"`
	Department float64 `json:"department"`
	Rating     float64 `json:"rating"`
	Behavior   float64 `json:"behavior"`
}

// Result is the scorer's output for one candidate.
type Result struct {
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Badge     string    `json:"badge,omitempty"`
}

// Score ranks one candidate ride against the search criteria.  The five
// terms are independent and individually clamped:
//
//	route       0–35  falls linearly with combined pickup+dropoff distance
//	time        0–25  25 minus one point per 3 minutes of departure delta
//	department  0–15  exact 15, related field 10, baseline 5
//	rating      0–15  (rating/5)*15, unrated drivers count as 3
//	behavior    0–10  (behaviorScore/100)*10
func Score(c Candidate, q Criteria) Result {
	b := Breakdown{
		Route:      routeTerm(c, q),
		Time:       timeTerm(c.DepartureAt, q.PreferredTime),
		Department: departmentTerm(c.DriverDepartment, q.Department),
		Rating:     ratingTerm(c.DriverRating),
		Behavior:   behaviorTerm(c.BehaviorScore),
	}
	total := b.Route + b.Time + b.Department + b.Rating + b.Behavior
	return Result{Score: total, Breakdown: b, Badge: BadgeFor(total)}
}

// BadgeFor maps a total score onto its display badge; totals under 40 get
// no badge at all.
func BadgeFor(total float64) string {
	switch {
	case total >= 90:
		return BadgePerfect
	case total >= 75:
		return BadgeGreat
	case total >= 60:
		return BadgeGood
	case total >= 40:
		return BadgeFair
	default:
		return ""
	}
}

func routeTerm(c Candidate, q Criteria) float64 {
	pickup := DistanceKm(q.FromLat, q.FromLon, c.FromLat, c.FromLon)
	dropoff := DistanceKm(q.ToLat, q.ToLon, c.ToLat, c.ToLon)
	return clamp(maxRoute-(pickup+dropoff)*routeDecayPerKm, 0, maxRoute)
}

func timeTerm(departure time.Time, preferred *time.Time) float64 {
	if preferred == nil {
		return timeDefault
	}
	deltaMin := math.Abs(departure.Sub(*preferred).Minutes())
	return clamp(maxTime-math.Floor(deltaMin/3), 0, maxTime)
}

func departmentTerm(driver, searcher string) float64 {
	driver = normalizeField(driver)
	searcher = normalizeField(searcher)
	if driver == "" || searcher == "" {
		return 5
	}
	if driver == searcher {
		return maxDepartment
	}
	if g, ok := fieldGroups[driver]; ok && g == fieldGroups[searcher] {
		return 10
	}
	return 5
}

func ratingTerm(rating *float64) float64 {
	r := defaultRating
	if rating != nil {
		r = clamp(*rating, 0, 5)
	}
	return r / 5 * maxRating
}

func behaviorTerm(score int) float64 {
	return clamp(float64(score), 0, 100) / 100 * maxBehavior
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalizeField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// fieldGroups buckets departments into broad faculties.  Two different
// departments in the same bucket count as a "related field" for the
// department term.  Unknown departments simply never match a bucket.
var fieldGroups = map[string]string{
	"computer science":       "engineering",
	"software engineering":   "engineering",
	"information systems":    "engineering",
	"electrical engineering": "engineering",
	"mechanical engineering": "engineering",
	"civil engineering":      "engineering",

	"finance":    "business",
	"accounting": "business",
	"economics":  "business",
	"marketing":  "business",
	"management": "business",

	"mathematics": "sciences",
	"physics":     "sciences",
	"chemistry":   "sciences",
	"biology":     "sciences",

	"medicine": "health",
	"nursing":  "health",
	"pharmacy": "health",
}
