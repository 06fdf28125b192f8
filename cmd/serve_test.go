package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzuki-lab/kyotei-cli/internal/fetch"
	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/venue"
)

func stubPrediction(q model.RaceQuery) *model.Prediction {
	return &model.Prediction{
		Query:     q,
		Narrative: "1号艇が展示トップ。",
		Buckets: model.BucketNotation{
			Primary:  []string{"1-23-23"},
			Cover:    []string{"2-1-34"},
			Longshot: []string{"5-12-12"},
		},
		Confidence: "A",
		SourceURL:  "https://example.com/race",
	}
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		return stubPrediction(q), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Venues(t *testing.T) {
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		return stubPrediction(q), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/venues", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got []venue.Venue
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 24)
	assert.Equal(t, "桐生", got[0].Name)
	assert.Equal(t, "大村", got[23].Name)
}

func TestRouter_Predict_FreeText(t *testing.T) {
	var got model.RaceQuery
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		got = q
		return stubPrediction(q), nil
	})

	body, _ := json.Marshal(map[string]string{"text": "住之江 8 20260825"})
	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 12, got.VenueID)
	assert.Equal(t, 8, got.RaceNumber)
	assert.Equal(t, "20260825", got.Date)

	var pred model.Prediction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pred))
	assert.Equal(t, []string{"1-23-23"}, pred.Buckets.Primary)
	assert.Equal(t, "A", pred.Confidence)
}

func TestRouter_Predict_FieldForm(t *testing.T) {
	var got model.RaceQuery
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		got = q
		return stubPrediction(q), nil
	})

	body, _ := json.Marshal(map[string]any{"venue": "12", "race": 8, "date": "20260825"})
	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 12, got.VenueID)
	assert.Equal(t, 8, got.RaceNumber)
}

func TestRouter_Predict_InvalidBody(t *testing.T) {
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		return stubPrediction(q), nil
	})

	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRouter_Predict_UnknownVenue(t *testing.T) {
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		return stubPrediction(q), nil
	})

	body, _ := json.Marshal(map[string]string{"text": "月面 8 20260825"})
	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown venue")
}

func TestRouter_Predict_NoData(t *testing.T) {
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		return nil, &fetch.NoDataAvailable{
			Query:     q,
			Attempted: []string{"https://a", "https://b"},
		}
	})

	body, _ := json.Marshal(map[string]string{"text": "住之江 8 20260825"})
	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)

	var resp struct {
		Error         string   `json:"error"`
		Race          string   `json:"race"`
		AttemptedURLs []string `json:"attempted_urls"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "no pre-race data available", resp.Error)
	assert.Equal(t, "20260825-12-08", resp.Race)
	assert.Len(t, resp.AttemptedURLs, 2)
}

func TestRouter_Predict_InternalError(t *testing.T) {
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		return nil, eris.New("extractor exploded")
	})

	body, _ := json.Marshal(map[string]string{"text": "住之江 8 20260825"})
	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "prediction failed")
	assert.NotContains(t, rr.Body.String(), "exploded")
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newRouter(func(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
		return stubPrediction(q), nil
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
