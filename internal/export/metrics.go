package export

import (
	"math"

	"github.com/sells-group/locator-cli/internal/model"
)

// Metrics are the spot-check numbers written alongside each snapshot.
type Metrics struct {
	TotalDealers        int     `json:"total_dealers"`
	UniqueDealerIDs     int     `json:"unique_dealer_ids"`
	DuplicateDealerIDs  int     `json:"duplicate_dealer_ids"`
	DealersWithPhone    int     `json:"dealers_with_phone"`
	DealersMissingPhone int     `json:"dealers_missing_phone"`
	DealersWithEmail    int     `json:"dealers_with_email"`
	DealersMissingEmail int     `json:"dealers_missing_email"`
	DealersMissingGeo   int     `json:"dealers_missing_geocode"`
	AverageSourceZips   float64 `json:"average_source_zips"`
	MaxSourceZips       int     `json:"max_source_zips"`
	UniqueSourceZips    int     `json:"unique_source_zips"`
	UniqueRuns          int     `json:"unique_runs"`
}

// ComputeMetrics summarizes coverage and completeness across a snapshot.
func ComputeMetrics(aggs []model.Aggregate) Metrics {
	m := Metrics{TotalDealers: len(aggs)}
	if len(aggs) == 0 {
		return m
	}

	ids := make(map[string]bool)
	zips := make(map[string]bool)
	runs := make(map[string]bool)
	var zipCountSum int

	for _, agg := range aggs {
		if agg.DealerID != "" {
			ids[agg.DealerID] = true
		}
		if agg.Phone != "" {
			m.DealersWithPhone++
		}
		if len(agg.Emails) > 0 {
			m.DealersWithEmail++
		}
		if agg.Latitude == nil || agg.Longitude == nil {
			m.DealersMissingGeo++
		}
		zipCountSum += len(agg.SourceZips)
		if len(agg.SourceZips) > m.MaxSourceZips {
			m.MaxSourceZips = len(agg.SourceZips)
		}
		for _, z := range agg.SourceZips {
			zips[z] = true
		}
		for _, r := range agg.Runs {
			runs[r] = true
		}
	}

	m.UniqueDealerIDs = len(ids)
	m.DuplicateDealerIDs = m.TotalDealers - len(ids)
	m.DealersMissingPhone = m.TotalDealers - m.DealersWithPhone
	m.DealersMissingEmail = m.TotalDealers - m.DealersWithEmail
	m.AverageSourceZips = math.Round(float64(zipCountSum)/float64(m.TotalDealers)*100) / 100
	m.UniqueSourceZips = len(zips)
	m.UniqueRuns = len(runs)
	return m
}
