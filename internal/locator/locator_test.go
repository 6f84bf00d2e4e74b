package locator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locator-cli/internal/model"
)

func centroid(lat, lng float64) model.Centroid {
	return model.Centroid{Zip: "90001", City: "Los Angeles", State: "CA", Latitude: &lat, Longitude: &lng}
}

func TestPreparePayload(t *testing.T) {
	fields, err := PreparePayload(SearchRequest{
		ZipCode:  "90001",
		Centroid: centroid(33.973252, -118.249154),
		Distance: 100,
		Category: "both",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"keywords": "90001",
		"distance": "100",
		"lat":      "33.973252",
		"lng":      "-118.249154",
		"cate":     "both",
	}, fields)
}

func TestPreparePayloadDefaults(t *testing.T) {
	fields, err := PreparePayload(SearchRequest{ZipCode: "90001", Centroid: centroid(34, -118)})
	require.NoError(t, err)
	assert.Equal(t, "100", fields["distance"])
	assert.Equal(t, "both", fields["cate"])
}

func TestPreparePayloadMissingCoordinates(t *testing.T) {
	_, err := PreparePayload(SearchRequest{ZipCode: "90001", Centroid: model.Centroid{Zip: "90001"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing centroid coordinates")
}

func TestDetectIssues(t *testing.T) {
	okPayload := &SearchPayload{Code: 1}

	tests := []struct {
		name string
		res  SearchResult
		want []string
	}{
		{
			name: "clean response",
			res:  SearchResult{StatusCode: 200, ContentType: "application/json", Body: []byte(`{"code":1}`), Payload: okPayload},
			want: nil,
		},
		{
			name: "blocking status",
			res:  SearchResult{StatusCode: 403, ContentType: "application/json", Body: []byte(`{"code":1}`), Payload: okPayload},
			want: []string{"Unexpected status code 403"},
		},
		{
			name: "anti-automation page",
			res:  SearchResult{StatusCode: 200, ContentType: "text/html", Body: []byte("<html>Access Denied</html>")},
			want: []string{
				"Response body appears to be an anti-automation warning page",
				"Failed to parse response body as JSON",
			},
		},
		{
			name: "unexpected content type",
			res:  SearchResult{StatusCode: 200, ContentType: "text/plain", Body: []byte(`{"code":1}`), Payload: okPayload},
			want: []string{`Unexpected content-type "text/plain" (expected JSON)`},
		},
		{
			name: "non-success api code",
			res:  SearchResult{StatusCode: 200, ContentType: "application/json", Body: []byte(`{"code":0}`), Payload: &SearchPayload{Code: 0}},
			want: []string{"API returned non-success code: 0"},
		},
		{
			name: "server error with broken body",
			res:  SearchResult{StatusCode: 502, ContentType: "application/json", Body: []byte("not json")},
			want: []string{"Unexpected status code 502", "Failed to parse response body as JSON"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectIssues(&tt.res))
		})
	}
}

func TestNormalize(t *testing.T) {
	raw := map[string]any{
		"company_name": " Alpha Optics ",
		"phone":        "Phone: 555-0001",
		"contact_addr": "123 Main St\r\nLos Angeles, CA 90001\r\n",
		"lat":          "34.05",
		"lng":          float64(-118.25),
		"id":           float64(4521),
		"zip":          "90001",
		"category":     "dealer",
		"email":        "sales@alpha.example.com, support@alpha.example.com ,",
	}

	got := Normalize(raw, "90002")
	assert.Equal(t, "Alpha Optics", got.DealerName)
	assert.Equal(t, "555-0001", got.Phone)
	assert.Equal(t, []string{"123 Main St", "Los Angeles, CA 90001"}, got.AddressLines)
	assert.Equal(t, "123 Main St, Los Angeles, CA 90001", got.AddressText)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 34.05, *got.Latitude, 0.0001)
	require.NotNil(t, got.Longitude)
	assert.InDelta(t, -118.25, *got.Longitude, 0.0001)
	assert.Equal(t, "4521", got.HolosunID)
	assert.Equal(t, "90001", got.RecordZip)
	assert.Equal(t, "90002", got.SourceZip)
	assert.Equal(t, []string{"sales@alpha.example.com", "support@alpha.example.com"}, got.Emails)
}

func TestNormalizeFallbackFields(t *testing.T) {
	raw := map[string]any{
		"tel":     "555-0002",
		"contact": "500 Market Ave\nSan Diego, CA 92101",
	}
	got := Normalize(raw, "92101")
	assert.Equal(t, "555-0002", got.Phone)
	assert.Equal(t, []string{"500 Market Ave", "San Diego, CA 92101"}, got.AddressLines)
	assert.Nil(t, got.Latitude)
	assert.Empty(t, got.Emails)
}

func TestLoadCentroids(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.csv")
	data := "zip,city,county,state,latitude,longitude\n" +
		"90001,Los Angeles,Los Angeles,CA,33.973252,-118.249154\n" +
		"601,Adjuntas,Adjuntas,PR,18.18,-66.75\n" +
		"bogus,Nowhere,Nowhere,XX,0,0\n" +
		"92101,San Diego,San Diego,CA,,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	centroids, err := LoadCentroids(path)
	require.NoError(t, err)
	require.Len(t, centroids, 3)

	assert.Contains(t, centroids, "00601", "short zips are left-padded")
	assert.NotContains(t, centroids, "bogus")

	la := centroids["90001"]
	require.NotNil(t, la.Latitude)
	assert.InDelta(t, 33.973252, *la.Latitude, 0.000001)

	sd := centroids["92101"]
	assert.Nil(t, sd.Latitude, "blank coordinates stay nil")
	assert.Equal(t, "San Diego", sd.City)
}

func TestLoadCentroidsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.csv")
	require.NoError(t, os.WriteFile(path, []byte("zip,latitude,longitude\n"), 0o644))

	_, err := LoadCentroids(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no zip entries")
}

func TestHTTPClientSearch(t *testing.T) {
	var gotForm map[string]string
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":1,"data":{"list":[{"company_name":"Alpha"}]}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPOptions{
		Endpoint:          srv.URL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 100,
	})

	res, err := client.Search(context.Background(), SearchRequest{
		ZipCode:  "90001",
		Centroid: centroid(33.973252, -118.249154),
	})
	require.NoError(t, err)

	assert.Equal(t, "90001", gotForm["keywords"])
	assert.Equal(t, "33.973252", gotForm["lat"])
	assert.Equal(t, "XMLHttpRequest", gotHeaders.Get("X-Requested-With"))
	assert.Contains(t, gotHeaders.Get("Referer"), "where-to-buy")

	assert.Equal(t, 200, res.StatusCode)
	require.NotNil(t, res.Payload)
	assert.Equal(t, 1, res.Payload.Code)
	require.Len(t, res.Payload.Data.List, 1)
	assert.Equal(t, "Alpha", res.Payload.Data.List[0]["company_name"])
	assert.Empty(t, DetectIssues(res))
}
