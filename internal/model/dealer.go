// Package model defines the records shared across the locator pipeline.
package model

// NormalizedDealer is one dealer record as returned by a single locator
// query, after response-level normalization. It is ephemeral: the
// accumulator consumes it once and folds it into an Aggregate.
type NormalizedDealer struct {
	DealerName   string   `json:"dealer_name"`
	Phone        string   `json:"phone"`
	Website      string   `json:"website"`
	AddressLines []string `json:"address_lines"`
	AddressText  string   `json:"address_text"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	HolosunID    string   `json:"holosun_id,omitempty"`
	RecordZip    string   `json:"record_zip"`
	SourceZip    string   `json:"source_zip"`
	Category     string   `json:"category,omitempty"`
	Emails       []string `json:"emails"`
}

// Aggregate is the merged record for one physical dealer across all runs.
//
// DealerID is assigned at creation and never recomputed: later sightings
// merge into the existing aggregate even when the merge changes the fields
// the id was derived from. Scalar fields follow first-write-wins; list
// fields are unioned.
type Aggregate struct {
	DealerID     string   `json:"dealer_id"`
	DealerName   string   `json:"dealer_name"`
	Street       string   `json:"street"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	PostalCode   string   `json:"postal_code"`
	Phone        string   `json:"phone"`
	Website      string   `json:"website"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	AddressText  string   `json:"address_text"`
	AddressLines []string `json:"address_lines"`
	Emails       []string `json:"emails"`
	SourceZips   []string `json:"source_zips"`
	HolosunIDs   []string `json:"holosun_ids"`
	Runs         []string `json:"runs"`
	FirstSeenAt  string   `json:"first_seen_at"`
	LastSeenAt   string   `json:"last_seen_at"`
}

// Centroid is the latitude/longitude reference point used to parameterize
// a distance-based locator search for one ZIP code.
type Centroid struct {
	Zip       string   `json:"zip"`
	City      string   `json:"city,omitempty"`
	County    string   `json:"county,omitempty"`
	State     string   `json:"state,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
