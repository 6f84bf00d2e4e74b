package dealer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/address"
	"github.com/sells-group/locator-cli/internal/model"
)

// NewAggregate builds an aggregate from the first sighting of an identity.
// All scalar fields come from this record; list fields are initialized
// from its values.
func NewAggregate(id string, rec model.NormalizedDealer, zipCode string, observedAt time.Time, runRef string) *model.Aggregate {
	c := address.Parse(rec.AddressText, rec.AddressLines, rec.RecordZip, rec.SourceZip)
	ts := observedAt.UTC().Format(time.RFC3339)

	agg := &model.Aggregate{
		DealerID:     id,
		DealerName:   rec.DealerName,
		Street:       c.Street,
		City:         c.City,
		State:        c.State,
		PostalCode:   c.Postal,
		Phone:        rec.Phone,
		Website:      rec.Website,
		Latitude:     rec.Latitude,
		Longitude:    rec.Longitude,
		AddressText:  rec.AddressText,
		AddressLines: dedupeOrdered(rec.AddressLines),
		Emails:       sortedSet(rec.Emails),
		SourceZips:   sortedSet([]string{zipCode, orDefault(rec.SourceZip, zipCode)}),
		Runs:         []string{runRef},
		FirstSeenAt:  ts,
		LastSeenAt:   ts,
	}
	if rec.HolosunID != "" {
		agg.HolosunIDs = []string{rec.HolosunID}
	}
	return agg
}

// Merge folds a later sighting into an existing aggregate. Scalar fields
// are first-write-wins: set only when currently empty and the incoming
// value is non-empty. List fields union; LastSeenAt always advances.
//
// First-write-wins is deliberate: sightings from geographically-distant
// ZIP matches often carry truncated address fields, and trusting the
// first complete observation avoids flip-flopping.
func Merge(agg *model.Aggregate, rec model.NormalizedDealer, zipCode string, observedAt time.Time, runRef string) {
	setIfEmpty(&agg.DealerName, rec.DealerName)

	c := address.Parse(rec.AddressText, rec.AddressLines, rec.RecordZip, rec.SourceZip)
	setIfEmpty(&agg.Street, c.Street)
	setIfEmpty(&agg.City, c.City)
	setIfEmpty(&agg.State, c.State)
	setIfEmpty(&agg.PostalCode, c.Postal)

	setIfEmpty(&agg.Phone, rec.Phone)
	setIfEmpty(&agg.Website, rec.Website)
	if agg.Latitude == nil && rec.Latitude != nil {
		agg.Latitude = rec.Latitude
	}
	if agg.Longitude == nil && rec.Longitude != nil {
		agg.Longitude = rec.Longitude
	}
	setIfEmpty(&agg.AddressText, rec.AddressText)

	if len(rec.AddressLines) > 0 {
		agg.AddressLines = dedupeOrdered(append(agg.AddressLines, rec.AddressLines...))
	}
	if len(rec.Emails) > 0 {
		agg.Emails = sortedSet(append(agg.Emails, rec.Emails...))
	}
	if rec.HolosunID != "" {
		agg.HolosunIDs = sortedSet(append(agg.HolosunIDs, rec.HolosunID))
	}
	agg.SourceZips = sortedSet(append(agg.SourceZips, zipCode, orDefault(rec.SourceZip, zipCode)))

	if !contains(agg.Runs, runRef) {
		agg.Runs = append(agg.Runs, runRef)
	}
	agg.LastSeenAt = observedAt.UTC().Format(time.RFC3339)
}

// FromSnapshot reconstructs an aggregate from a persisted JSON object.
// List fields tolerate scalar, single-value, or list representations from
// older snapshots; a missing dealer_id is an error.
func FromSnapshot(raw map[string]any) (*model.Aggregate, error) {
	id := coerceString(raw["dealer_id"])
	if id == "" {
		return nil, eris.New("dealer: snapshot entry missing dealer_id")
	}

	agg := &model.Aggregate{
		DealerID:     id,
		DealerName:   coerceString(raw["dealer_name"]),
		Street:       coerceString(raw["street"]),
		City:         coerceString(raw["city"]),
		State:        coerceString(raw["state"]),
		PostalCode:   coerceString(raw["postal_code"]),
		Phone:        coerceString(raw["phone"]),
		Website:      coerceString(raw["website"]),
		Latitude:     coerceFloat(raw["latitude"]),
		Longitude:    coerceFloat(raw["longitude"]),
		AddressText:  coerceString(raw["address_text"]),
		AddressLines: dedupeOrdered(coerceStringList(raw["address_lines"])),
		Emails:       sortedSet(coerceStringList(raw["emails"])),
		SourceZips:   sortedSet(coerceStringList(raw["source_zips"])),
		HolosunIDs:   sortedSet(coerceStringList(raw["holosun_ids"])),
		Runs:         dedupeOrdered(coerceStringList(raw["runs"])),
		FirstSeenAt:  coerceString(raw["first_seen_at"]),
		LastSeenAt:   coerceString(raw["last_seen_at"]),
	}
	return agg, nil
}

func setIfEmpty(dst *string, val string) {
	if *dst == "" && val != "" {
		*dst = val
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// dedupeOrdered removes exact duplicates and empty entries, preserving
// first-appearance order.
func dedupeOrdered(list []string) []string {
	var out []string
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// sortedSet unions into a sorted, deduplicated slice for determinism.
func sortedSet(list []string) []string {
	out := dedupeOrdered(list)
	sort.Strings(out)
	return out
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; ids are integral in practice.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case json.Number:
		return t.String()
	case bool:
		return fmt.Sprintf("%v", t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

func coerceFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		var f float64
		if _, err := fmt.Sscanf(t, "%g", &f); err == nil {
			return &f
		}
	}
	return nil
}

// coerceStringList accepts a list, a single scalar, or nil.
func coerceStringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	default:
		if s := coerceString(v); s != "" {
			return []string{s}
		}
		return nil
	}
}
