package model

import "time"

// BucketNotation holds the compressed grouped notation per bucket, e.g.
// ["3-1-124", "3-2-1"].
type BucketNotation struct {
	Primary  []string `json:"primary"`
	Cover    []string `json:"cover"`
	Longshot []string `json:"longshot"`
}

// Diagnostic carries fetch telemetry for the caller.
type Diagnostic struct {
	AttemptedURLs []string `json:"attempted_urls"`
}

// Prediction is the final payload handed to the transport layer.
type Prediction struct {
	Query      RaceQuery      `json:"query"`
	Narrative  string         `json:"narrative"`
	Buckets    BucketNotation `json:"buckets"`
	Confidence string         `json:"confidence"` // A, B or C
	SourceURL  string         `json:"source_url"`
	Diagnostic Diagnostic     `json:"diagnostic"`
}

// StoredPrediction is the persisted form of a prediction, kept so a later
// result can be settled against it.
type StoredPrediction struct {
	RaceKey    string         `json:"race_key"`
	VenueID    int            `json:"venue_id"`
	RaceNumber int            `json:"race_number"`
	Date       string         `json:"date"`
	Buckets    BucketNotation `json:"buckets"`
	Ordered    []int          `json:"ordered"`
	// MetricRanks maps metric key to the per-lane rank assigned during
	// scoring (index 0 = lane 1; 0 = metric missing for that lane).
	MetricRanks map[string][]int `json:"metric_ranks,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Outcome records an official race result settled against a stored
// prediction.
type Outcome struct {
	ID        string    `json:"id"`
	RaceKey   string    `json:"race_key"`
	Result    string    `json:"result"` // "1-3-2" notation
	HitBucket string    `json:"hit_bucket,omitempty"`
	Payout    int       `json:"payout,omitempty"` // trifecta payout in yen per 100-yen stake, 0 when unknown
	CreatedAt time.Time `json:"created_at"`
}
