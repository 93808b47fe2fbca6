package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPLocatorLocate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geolocateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "secret-token", req.Token)
		assert.Equal(t, "gsm", req.Radio)
		assert.Equal(t, 310, req.MCC)
		assert.Equal(t, 410, req.MNC)
		assert.Equal(t, []geolocateCell{{LAC: 4112, CID: 50085200}}, req.Cells)
		assert.Equal(t, 1, req.Address)
		assert.Equal(t, "en", req.AcceptLanguage)

		w.Header().Set("Content-Type", "application/json")
		// The real service's response is passed through verbatim; this
		// includes an extra field beyond lat/lon/accuracy to exercise that.
		json.NewEncoder(w).Encode(map[string]any{
			"lat":      37.7749,
			"lon":      -122.4194,
			"accuracy": 25.0,
			"fallback": "lacf",
		})
	}))
	defer srv.Close()

	l := NewHTTPLocator(srv.URL, "secret-token")
	pos, err := l.Locate(context.Background(), Cell{MCC: 310, MNC: 410, LAC: 4112, CID: 50085200})
	require.NoError(t, err)
	assert.Equal(t, 37.7749, pos.Latitude)
	assert.Equal(t, -122.4194, pos.Longitude)
	assert.Equal(t, 25.0, pos.Accuracy)
	assert.Equal(t, "lacf", pos.Raw["fallback"])
}

func TestHTTPLocatorNoEndpoint(t *testing.T) {
	l := &HTTPLocator{}
	_, err := l.Locate(context.Background(), Cell{})
	require.Error(t, err)
}

func TestHTTPLocatorNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	l := NewHTTPLocator(srv.URL, "secret-token")
	_, err := l.Locate(context.Background(), Cell{})
	require.Error(t, err)
}

func TestHTTPLocatorDefaultsAcceptLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geolocateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "en", req.AcceptLanguage)
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	l := NewHTTPLocator(srv.URL, "")
	_, err := l.Locate(context.Background(), Cell{})
	require.NoError(t, err)
}

func TestRegionEndpoint(t *testing.T) {
	assert.Contains(t, RegionEndpoint("us"), "geo-us")
	assert.Contains(t, RegionEndpoint("eu"), "geo-eu")
	assert.Contains(t, RegionEndpoint("apac"), "geo-apac")
	assert.Contains(t, RegionEndpoint("unknown"), "geo-global")
}
