// Package export validates aggregated dealer snapshots and renders the
// deliverable tables (CSV, XLSX) and summary metrics.
package export

import (
	"strings"

	"github.com/sells-group/locator-cli/internal/model"
)

// DefaultDeliverableFields is the stakeholder-facing column set.
var DefaultDeliverableFields = []string{"dealer_name", "address", "phone", "website"}

// DeliverableValue renders one deliverable column for an aggregate. The
// synthetic "address" column joins street, city, and "ST postal" with
// commas, skipping whatever is missing.
func DeliverableValue(agg model.Aggregate, field string) string {
	switch field {
	case "dealer_name":
		return agg.DealerName
	case "address":
		return formatAddress(agg)
	case "phone":
		return agg.Phone
	case "website":
		return agg.Website
	case "city":
		return agg.City
	case "state":
		return agg.State
	case "postal_code":
		return agg.PostalCode
	case "emails":
		return strings.Join(agg.Emails, "; ")
	default:
		return ""
	}
}

// DeliverableRows renders aggregates into rows for the given column set.
func DeliverableRows(aggs []model.Aggregate, fields []string) [][]string {
	if len(fields) == 0 {
		fields = DefaultDeliverableFields
	}
	rows := make([][]string, 0, len(aggs))
	for _, agg := range aggs {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = DeliverableValue(agg, f)
		}
		rows = append(rows, row)
	}
	return rows
}

func formatAddress(agg model.Aggregate) string {
	var parts []string
	if agg.Street != "" {
		parts = append(parts, agg.Street)
	}
	if agg.City != "" {
		parts = append(parts, agg.City)
	}
	tail := strings.TrimSpace(strings.Join(nonEmpty(agg.State, agg.PostalCode), " "))
	if tail != "" {
		parts = append(parts, tail)
	}
	if len(parts) == 0 {
		return agg.AddressText
	}
	return strings.Join(parts, ", ")
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
