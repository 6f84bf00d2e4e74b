package locator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/locator-cli/internal/model"
)

// Normalize flattens one raw dealer object into the normalized record shape.
// The API is loose about field presence and types, so every accessor is
// tolerant: missing keys become empty values, numbers may arrive as strings.
func Normalize(raw map[string]any, sourceZip string) model.NormalizedDealer {
	phone := strings.TrimSpace(rawString(raw, "phone"))
	if phone == "" {
		phone = strings.TrimSpace(rawString(raw, "tel"))
	}
	if idx := strings.Index(strings.ToLower(phone), "phone:"); idx == 0 {
		phone = strings.TrimSpace(phone[len("phone:"):])
	}

	addressRaw := rawString(raw, "contact_addr")
	if addressRaw == "" {
		addressRaw = rawString(raw, "contact")
	}
	addressRaw = strings.ReplaceAll(addressRaw, "\r", "")
	var addressLines []string
	for _, line := range strings.Split(addressRaw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			addressLines = append(addressLines, trimmed)
		}
	}

	var emails []string
	for _, part := range strings.Split(rawString(raw, "email"), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			emails = append(emails, trimmed)
		}
	}

	return model.NormalizedDealer{
		DealerName:   strings.TrimSpace(rawString(raw, "company_name")),
		Phone:        phone,
		Website:      strings.TrimSpace(rawString(raw, "website")),
		AddressLines: addressLines,
		AddressText:  strings.Join(addressLines, ", "),
		Latitude:     rawFloat(raw, "lat"),
		Longitude:    rawFloat(raw, "lng"),
		HolosunID:    rawString(raw, "id"),
		RecordZip:    strings.TrimSpace(rawString(raw, "zip")),
		SourceZip:    sourceZip,
		Category:     strings.TrimSpace(rawString(raw, "category")),
		Emails:       emails,
	}
}

// NormalizeAll maps Normalize over the payload's dealer list.
func NormalizeAll(list []map[string]any, sourceZip string) []model.NormalizedDealer {
	out := make([]model.NormalizedDealer, 0, len(list))
	for _, raw := range list {
		out = append(out, Normalize(raw, sourceZip))
	}
	return out
}

func rawString(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func rawFloat(raw map[string]any, key string) *float64 {
	switch v := raw[key].(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}
