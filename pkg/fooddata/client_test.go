package fooddata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/extract-relay/internal/resilience"
)

func TestSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/foods/search", r.URL.Path)
		assert.Equal(t, "banana", r.URL.Query().Get("query"))
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"totalHits": 1,
			"foods": []map[string]any{{
				"fdcId":       1105314,
				"description": "Bananas, raw",
				"dataType":    "Foundation",
				"foodNutrients": []map[string]any{
					{"nutrientId": 1008, "nutrientName": "Energy", "unitName": "KCAL", "value": 89},
					{"nutrientId": 1003, "nutrientName": "Protein", "unitName": "G", "value": 1.09},
				},
			}},
		})
	}))
	defer ts.Close()

	c := NewClient("k", WithBaseURL(ts.URL), WithRate(0))
	res, err := c.Search(context.Background(), "banana", 0)
	require.NoError(t, err)
	require.Len(t, res.Foods, 1)
	assert.Equal(t, int64(1105314), res.Foods[0].FdcID)
	require.Len(t, res.Foods[0].FoodNutrients, 2)
	assert.Equal(t, 89.0, res.Foods[0].FoodNutrients[0].Value)
}

func TestSearch_TransientStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient("k", WithBaseURL(ts.URL), WithRate(100))
	_, err := c.Search(context.Background(), "banana", 1)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	hc := c.(*httpClient)
	assert.InDelta(t, 50.0, float64(hc.limiter.current), 1e-9)
}

func TestSearch_ClientError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c := NewClient("bad", WithBaseURL(ts.URL), WithRate(0))
	_, err := c.Search(context.Background(), "banana", 1)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "403")
}

func TestAdaptiveLimiter_Floor(t *testing.T) {
	a := newAdaptiveLimiter(8, 1)
	for i := 0; i < 5; i++ {
		a.OnRateLimit()
	}
	assert.InDelta(t, 2.0, float64(a.current), 1e-9)
}
