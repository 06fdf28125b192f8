package predictor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzuki-lab/kyotei-cli/internal/fetch"
	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/store"
)

const racePage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>出走表</title></head>
<body>
<div class="info">天候:晴 向かい風 風速:5m 波高:2cm</div>
<table class="shusso">
<tr><th>艇番</th><th>1</th><th>2</th><th>3</th><th>4</th><th>5</th><th>6</th></tr>
<tr><th>展示</th><td>6.72</td><td>6.80</td><td>6.75</td><td>6.90</td><td>6.85</td><td>6.95</td></tr>
<tr><th>周回</th><td>36.50</td><td>37.10</td><td>36.80</td><td>37.40</td><td>37.20</td><td>37.60</td></tr>
<tr><th>周り足</th><td>5.40</td><td>5.55</td><td>5.45</td><td>5.70</td><td>5.60</td><td>5.75</td></tr>
<tr><th>直線</th><td>7.10</td><td>7.25</td><td>7.15</td><td>7.40</td><td>7.30</td><td>7.45</td></tr>
</table>
</body></html>`

const thinPage = `<html><body><table>
<tr><th>艇番</th><th>1</th><th>2</th><th>3</th><th>4</th><th>5</th><th>6</th></tr>
<tr><th>展示</th><td>6.72</td><td>6.80</td><td>6.75</td><td>6.90</td><td>6.85</td><td>6.95</td></tr>
</table></body></html>`

type stubSource struct {
	id  string
	url string
}

func (s stubSource) ID() string                 { return s.id }
func (s stubSource) URL(model.RaceQuery) string { return s.url }
func (s stubSource) Headers() map[string]string { return nil }
func (s stubSource) Labels() []string           { return []string{"展示", "周回", "周り足", "直線"} }

type memStore struct {
	weights   map[int]model.WeightSet
	saved     []model.StoredPrediction
	loadCalls []int
}

func newMemStore() *memStore {
	return &memStore{weights: make(map[int]model.WeightSet)}
}

func (s *memStore) SavePrediction(_ context.Context, p model.StoredPrediction) error {
	s.saved = append(s.saved, p)
	return nil
}

func (s *memStore) GetPrediction(_ context.Context, raceKey string) (*model.StoredPrediction, error) {
	for i := range s.saved {
		if s.saved[i].RaceKey == raceKey {
			return &s.saved[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) SaveOutcome(_ context.Context, _ model.Outcome) error { return nil }

func (s *memStore) ListOutcomes(_ context.Context, _ store.OutcomeFilter) ([]model.Outcome, error) {
	return nil, nil
}

func (s *memStore) LoadWeights(_ context.Context, venueID int) (model.WeightSet, error) {
	s.loadCalls = append(s.loadCalls, venueID)
	w, ok := s.weights[venueID]
	if !ok {
		return model.WeightSet{}, store.ErrNotFound
	}
	return w, nil
}

func (s *memStore) SaveWeights(_ context.Context, venueID int, w model.WeightSet) error {
	s.weights[venueID] = w
	return nil
}

func (s *memStore) Migrate(context.Context) error { return nil }
func (s *memStore) Close() error                  { return nil }

func servePage(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPredictor(t *testing.T, srv *httptest.Server, opts Options) *Predictor {
	t.Helper()
	f := fetch.New(nil, []fetch.Source{stubSource{id: "test", url: srv.URL}}, fetch.Options{})
	return New(f, opts)
}

func testQuery(t *testing.T) model.RaceQuery {
	t.Helper()
	q, err := model.NewRaceQuery(12, 8, "20260825")
	require.NoError(t, err)
	return q
}

func TestPredict_EndToEnd(t *testing.T) {
	srv := servePage(t, http.StatusOK, racePage)
	p := newPredictor(t, srv, Options{})

	pred, err := p.Predict(context.Background(), testQuery(t))
	require.NoError(t, err)

	assert.Equal(t, srv.URL, pred.SourceURL)
	assert.Empty(t, pred.Diagnostic.AttemptedURLs)
	assert.Equal(t, "A", pred.Confidence, "lane 1 tops every metric and the prior")

	assert.Equal(t, []string{"1-3-25", "1-2-35", "1-5-23"}, pred.Buckets.Primary)
	assert.NotEmpty(t, pred.Buckets.Cover)
	assert.NotEmpty(t, pred.Buckets.Longshot)

	assert.Contains(t, pred.Narrative, "イン逃げ")
	assert.Contains(t, pred.Narrative, "展示タイム最速(6.72)")
}

func TestPredict_NoDataAvailable(t *testing.T) {
	srv := servePage(t, http.StatusNotFound, "not found")
	p := newPredictor(t, srv, Options{})

	_, err := p.Predict(context.Background(), testQuery(t))
	require.Error(t, err)

	var noData *fetch.NoDataAvailable
	require.ErrorAs(t, err, &noData)
	assert.Len(t, noData.Attempted, 1)
}

func TestPredict_IncompleteExtractionStillPredicts(t *testing.T) {
	srv := servePage(t, http.StatusOK, thinPage)
	p := newPredictor(t, srv, Options{})

	pred, err := p.Predict(context.Background(), testQuery(t))
	require.NoError(t, err, "below-quorum extraction degrades, never fails")

	assert.NotEmpty(t, pred.Narrative)
	assert.NotEmpty(t, pred.Buckets.Primary)
}

func TestPredict_SavesPrediction(t *testing.T) {
	srv := servePage(t, http.StatusOK, racePage)
	st := newMemStore()
	p := newPredictor(t, srv, Options{Store: st})

	q := testQuery(t)
	_, err := p.Predict(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, st.saved, 1)
	sp := st.saved[0]
	assert.Equal(t, q.Key(), sp.RaceKey)
	assert.Equal(t, q.VenueID, sp.VenueID)
	assert.Equal(t, []int{1, 3, 2, 5, 4, 6}, sp.Ordered)
	assert.Equal(t, []int{1, 3, 2, 5, 4, 6}, sp.MetricRanks[model.MetricExhibition],
		"per-lane rank rows, index 0 = lane 1")
	assert.False(t, sp.CreatedAt.IsZero())
}

func TestPredict_WeightProfileCascade(t *testing.T) {
	srv := servePage(t, http.StatusOK, racePage)
	st := newMemStore()
	p := newPredictor(t, srv, Options{Store: st})

	_, err := p.Predict(context.Background(), testQuery(t))
	require.NoError(t, err)

	assert.Equal(t, []int{12, 0}, st.loadCalls, "venue profile first, then the global profile")
}

func TestPredict_StoredWeightsApply(t *testing.T) {
	srv := servePage(t, http.StatusOK, racePage)
	st := newMemStore()
	st.weights[12] = model.WeightSet{Metrics: map[string]float64{model.MetricExhibition: 0.9}}
	p := newPredictor(t, srv, Options{Store: st})

	pred, err := p.Predict(context.Background(), testQuery(t))
	require.NoError(t, err)

	assert.Equal(t, []int{12}, st.loadCalls, "venue hit skips the global profile")
	assert.NotEmpty(t, pred.Buckets.Primary)
}

func TestPredict_ContextCancelled(t *testing.T) {
	srv := servePage(t, http.StatusOK, racePage)
	p := newPredictor(t, srv, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, testQuery(t))
	require.Error(t, err)

	var noData *fetch.NoDataAvailable
	assert.False(t, errors.As(err, &noData))
}
