package handler

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/adilbekov/ridepool/internal/match"
	"github.com/adilbekov/ridepool/internal/repository"
)

// SearchHandler serves GET /v1/rides/search: open rides filtered by the
// query, scored against the rider's criteria and sorted best first.
type SearchHandler struct {
	Rides *repository.RideRepo
}

func NewSearchHandler(rides *repository.RideRepo) *SearchHandler {
	if rides == nil {
		panic("nil repository passed to NewSearchHandler")
	}
	return &SearchHandler{Rides: rides}
}

// scoredRide is one search result: the candidate row plus its match
// score and per-term breakdown.
type scoredRide struct {
	repository.CandidateRideRow
	Score     float64         `json:"score"`
	Breakdown match.Breakdown `json:"breakdown"`
	Badge     string          `json:"badge,omitempty"`
}

// Search parses criteria from query parameters, fetches candidate rides
// and ranks them.  Coordinates are required; preferred_time and
// department are optional.
func (h *SearchHandler) Search(c echo.Context) error {
	crit, ok := parseCriteria(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from_lat, from_lon, to_lat, to_lon are required"})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	rows, total, err := h.Rides.SearchOpen(c.Request().Context(), repository.RideSearchQuery{
		FromLabel: c.QueryParam("from"),
		ToLabel:   c.QueryParam("to"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}

	out := make([]scoredRide, 0, len(rows))
	for _, row := range rows {
		departure, err := time.Parse("2006-01-02 15:04:05", row.DepartureAt)
		if err != nil {
			continue
		}
		res := match.Score(match.Candidate{
			FromLat:          row.FromLat,
			FromLon:          row.FromLon,
			ToLat:            row.ToLat,
			ToLon:            row.ToLon,
			DepartureAt:      departure.UTC(),
			DriverDepartment: row.Department,
			DriverRating:     row.AverageRating,
			BehaviorScore:    row.BehaviorScore,
		}, crit)
		out = append(out, scoredRide{
			CandidateRideRow: row,
			Score:            res.Score,
			Breakdown:        res.Breakdown,
			Badge:            res.Badge,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	return c.JSON(http.StatusOK, echo.Map{
		"rides":     out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func parseCriteria(c echo.Context) (match.Criteria, bool) {
	parse := func(name string) (float64, bool) {
		v, err := strconv.ParseFloat(c.QueryParam(name), 64)
		return v, err == nil
	}
	fromLat, ok1 := parse("from_lat")
	fromLon, ok2 := parse("from_lon")
	toLat, ok3 := parse("to_lat")
	toLon, ok4 := parse("to_lon")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return match.Criteria{}, false
	}

	crit := match.Criteria{
		FromLat:    fromLat,
		FromLon:    fromLon,
		ToLat:      toLat,
		ToLon:      toLon,
		Department: c.QueryParam("department"),
	}
	if raw := c.QueryParam("preferred_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			utc := t.UTC()
			crit.PreferredTime = &utc
		}
	}
	return crit, true
}
