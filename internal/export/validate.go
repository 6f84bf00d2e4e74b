package export

import (
	"fmt"

	"github.com/sells-group/locator-cli/internal/model"
)

// Validate runs data-quality checks over an aggregate snapshot and returns
// one message per finding. Findings never block persistence; callers log
// them at each flush.
func Validate(aggs []model.Aggregate) []string {
	var issues []string
	seen := make(map[string]bool, len(aggs))

	for i, agg := range aggs {
		ctx := fmt.Sprintf("dealer[%d]", i)

		if agg.DealerID == "" {
			issues = append(issues, fmt.Sprintf("%s: dealer_id must be a non-empty string", ctx))
		} else if seen[agg.DealerID] {
			issues = append(issues, fmt.Sprintf("%s: duplicate dealer_id %q", ctx, agg.DealerID))
		} else {
			seen[agg.DealerID] = true
		}

		if agg.DealerName == "" {
			issues = append(issues, fmt.Sprintf("%s: dealer_name is empty", ctx))
		}
		if len(agg.SourceZips) == 0 {
			issues = append(issues, fmt.Sprintf("%s: source_zips must not be empty", ctx))
		}
		if len(agg.Runs) == 0 {
			issues = append(issues, fmt.Sprintf("%s: runs must not be empty", ctx))
		}
		if agg.FirstSeenAt == "" {
			issues = append(issues, fmt.Sprintf("%s: first_seen_at is empty", ctx))
		}
		if agg.LastSeenAt == "" {
			issues = append(issues, fmt.Sprintf("%s: last_seen_at is empty", ctx))
		}
		if (agg.Latitude == nil) != (agg.Longitude == nil) {
			issues = append(issues, fmt.Sprintf("%s: latitude/longitude must be both set or both null", ctx))
		}
	}
	return issues
}
