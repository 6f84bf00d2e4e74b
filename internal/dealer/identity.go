// Package dealer implements dealer identity, merge, and accumulation: the
// dedup engine that folds sightings from overlapping ZIP searches into one
// aggregate per physical dealer.
package dealer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sells-group/locator-cli/internal/address"
	"github.com/sells-group/locator-cli/internal/model"
)

// Identity computes the content-based identifier for a raw dealer record:
// a hex sha256 over normalized (name, street, city, postal). It is invoked
// fresh on every sighting for matching; the DealerID persisted on an
// aggregate is fixed at creation time and never recomputed.
func Identity(rec model.NormalizedDealer) string {
	c := address.Parse(rec.AddressText, rec.AddressLines, rec.RecordZip, rec.SourceZip)
	parts := []string{
		strings.ToLower(strings.TrimSpace(rec.DealerName)),
		strings.ToLower(strings.TrimSpace(c.Street)),
		strings.ToLower(strings.TrimSpace(c.City)),
		strings.TrimSpace(c.Postal),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
