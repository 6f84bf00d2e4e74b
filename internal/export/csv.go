package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/model"
)

// CSVFields is the full column set of the archival CSV, matching the
// aggregate's JSON field names so the CSV and the JSON snapshot line up.
var CSVFields = []string{
	"dealer_id",
	"dealer_name",
	"street",
	"city",
	"state",
	"postal_code",
	"phone",
	"website",
	"latitude",
	"longitude",
	"address_text",
	"address_lines",
	"emails",
	"source_zips",
	"holosun_ids",
	"runs",
	"first_seen_at",
	"last_seen_at",
}

// WriteFullCSV writes every aggregate column to path. List fields are
// flattened with delimiter (default "|"); nil coordinates become empty cells.
func WriteFullCSV(aggs []model.Aggregate, path string, delimiter string) error {
	if delimiter == "" {
		delimiter = "|"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create output dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create csv %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVFields); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, agg := range aggs {
		row := make([]string, len(CSVFields))
		for i, field := range CSVFields {
			row[i] = fullValue(agg, field, delimiter)
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "export: flush csv %s", path)
	}
	return nil
}

// WriteDeliverableCSV writes the stakeholder-facing CSV with the given
// column set (DefaultDeliverableFields when empty).
func WriteDeliverableCSV(aggs []model.Aggregate, path string, fields []string) error {
	if len(fields) == 0 {
		fields = DefaultDeliverableFields
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create output dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create csv %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, row := range DeliverableRows(aggs, fields) {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "export: flush csv %s", path)
	}
	return nil
}

func fullValue(agg model.Aggregate, field, delimiter string) string {
	switch field {
	case "dealer_id":
		return agg.DealerID
	case "dealer_name":
		return agg.DealerName
	case "street":
		return agg.Street
	case "city":
		return agg.City
	case "state":
		return agg.State
	case "postal_code":
		return agg.PostalCode
	case "phone":
		return agg.Phone
	case "website":
		return agg.Website
	case "latitude":
		return floatCell(agg.Latitude)
	case "longitude":
		return floatCell(agg.Longitude)
	case "address_text":
		return agg.AddressText
	case "address_lines":
		return strings.Join(agg.AddressLines, delimiter)
	case "emails":
		return strings.Join(agg.Emails, delimiter)
	case "source_zips":
		return strings.Join(agg.SourceZips, delimiter)
	case "holosun_ids":
		return strings.Join(agg.HolosunIDs, delimiter)
	case "runs":
		return strings.Join(agg.Runs, delimiter)
	case "first_seen_at":
		return agg.FirstSeenAt
	case "last_seen_at":
		return agg.LastSeenAt
	default:
		return ""
	}
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
