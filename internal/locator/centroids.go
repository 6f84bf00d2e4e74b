package locator

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/model"
)

// LoadCentroids reads a ZIP centroid CSV (zip, city, county, state,
// latitude, longitude; extra columns ignored). ZIPs are left-padded to five
// digits; rows with a non-numeric ZIP are skipped. An empty result is an
// error because every downstream lookup needs coordinates.
func LoadCentroids(path string) (map[string]model.Centroid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "locator: open centroid csv %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "locator: read centroid csv header %s", path)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["zip"]; !ok {
		return nil, eris.Errorf("locator: centroid csv %s has no zip column", path)
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	centroids := make(map[string]model.Centroid)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "locator: read centroid csv %s", path)
		}

		zip := PadZip(field(row, "zip"))
		if len(zip) != 5 || !isDigits(zip) {
			continue
		}

		c := model.Centroid{
			Zip:    zip,
			City:   field(row, "city"),
			County: field(row, "county"),
			State:  field(row, "state"),
		}
		if lat, err := strconv.ParseFloat(field(row, "latitude"), 64); err == nil {
			c.Latitude = &lat
		}
		if lng, err := strconv.ParseFloat(field(row, "longitude"), 64); err == nil {
			c.Longitude = &lng
		}
		centroids[zip] = c
	}

	if len(centroids) == 0 {
		return nil, eris.Errorf("locator: no zip entries loaded from %s", path)
	}
	zap.L().Debug("loaded zip centroids", zap.String("path", path), zap.Int("count", len(centroids)))
	return centroids, nil
}

// PadZip left-pads a ZIP fragment with zeros to five digits.
func PadZip(zip string) string {
	zip = strings.TrimSpace(zip)
	for len(zip) > 0 && len(zip) < 5 {
		zip = "0" + zip
	}
	return zip
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
