package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

func TestIPLocator_Locate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","lat":24.4672,"lon":39.6112,"city":"Medina","country":"Saudi Arabia"}`))
	}))
	defer srv.Close()

	coord, err := NewIPLocator(srv.URL, time.Second).Locate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 24.4672, coord.Latitude)
	require.Equal(t, 39.6112, coord.Longitude)
	require.Equal(t, "Medina, Saudi Arabia", coord.DisplayName)
}

func TestIPLocator_Failures(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"fail status": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
		},
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			_, err := NewIPLocator(srv.URL, time.Second).Locate(context.Background())
			require.True(t, apperrors.IsCode(err, prayer.CodeLocationUnavailable))
		})
	}
}

func TestNominatimGeocoder_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		require.Equal(t, "21.4225", r.URL.Query().Get("lat"))
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"display_name":"Al Haram, Mecca, Saudi Arabia","address":{"city":"Mecca","country":"Saudi Arabia"}}`))
	}))
	defer srv.Close()

	name, err := NewNominatimGeocoder(srv.URL, "test-agent", time.Second).Reverse(context.Background(), 21.4225, 39.8262)
	require.NoError(t, err)
	require.Equal(t, "Mecca, Saudi Arabia", name)
}

func TestNominatimGeocoder_FallsBackToDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"display_name":"Empty Quarter","address":{}}`))
	}))
	defer srv.Close()

	name, err := NewNominatimGeocoder(srv.URL, "", time.Second).Reverse(context.Background(), 20, 50)
	require.NoError(t, err)
	require.Equal(t, "Empty Quarter", name)
}

func TestNominatimGeocoder_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewNominatimGeocoder(srv.URL, "", time.Second).Reverse(context.Background(), 0, 0)
	require.Error(t, err)
}
