package model

// Metric keys. Extraction labels, scoring weights and direction config all
// hang off these names.
const (
	MetricExhibition = "exhibition" // 展示タイム
	MetricLap        = "lap"        // 周回
	MetricTurn       = "turn"       // 周り足
	MetricStraight   = "straight"   // 直線
	MetricST         = "st"         // スタートタイミング
	MetricAvgST      = "avg_st"     // 平均ST
	MetricSTRank     = "st_rank"    // ST順位
	MetricMotor      = "motor"      // モーター2連率
	MetricBoat       = "boat"       // ボート2連率
	MetricTilt       = "tilt"       // チルト
)

// Direction fixes how a metric's raw values rank competitors. It is named
// configuration, never inferred from data.
type Direction string

const (
	// Ascending ranks the smallest value first (times, start timings).
	Ascending Direction = "asc"
	// Descending ranks the largest value first (win rates).
	Descending Direction = "desc"
)

// MetricSpec describes one extractable signal: the labels it appears under
// in source documents, its ranking direction and its default weight. Specs
// are immutable configuration, loaded once and passed explicitly.
type MetricSpec struct {
	Key       string    `json:"key"`
	Labels    []string  `json:"labels"`
	Direction Direction `json:"direction"`
	Weight    float64   `json:"weight"`
}

// DefaultMetricSpecs returns the built-in signal table. Weights follow the
// long-standing tuning for the just-before block; zero-weight specs are
// extracted for narrative and adjustment use but do not enter the weighted
// sum. Turn and straight are ranked ascending here; sources disagree on the
// convention, which is why Direction is configuration.
func DefaultMetricSpecs() []MetricSpec {
	return []MetricSpec{
		{Key: MetricExhibition, Labels: []string{"展示", "展示タイム", "展示航走"}, Direction: Ascending, Weight: 0.30},
		{Key: MetricLap, Labels: []string{"周回", "一周", "周回タイム"}, Direction: Ascending, Weight: 0.20},
		{Key: MetricTurn, Labels: []string{"周り足", "まわり足", "回り足"}, Direction: Ascending, Weight: 0.25},
		{Key: MetricStraight, Labels: []string{"直線", "直線タイム"}, Direction: Ascending, Weight: 0.15},
		{Key: MetricST, Labels: []string{"ST", "ST展示", "スタートタイミング"}, Direction: Ascending, Weight: 0.10},
		{Key: MetricAvgST, Labels: []string{"平均ST"}, Direction: Ascending, Weight: 0},
		{Key: MetricSTRank, Labels: []string{"ST順位"}, Direction: Ascending, Weight: 0},
		{Key: MetricMotor, Labels: []string{"モーター", "モーター2連率"}, Direction: Descending, Weight: 0},
		{Key: MetricBoat, Labels: []string{"ボート", "ボート2連率"}, Direction: Descending, Weight: 0},
		{Key: MetricTilt, Labels: []string{"チルト"}, Direction: Descending, Weight: 0},
	}
}

// DefaultWeights extracts the weighted subset of the default specs as a
// WeightSet, the shape stored per venue.
func DefaultWeights() WeightSet {
	w := WeightSet{Metrics: make(map[string]float64)}
	for _, s := range DefaultMetricSpecs() {
		if s.Weight > 0 {
			w.Metrics[s.Key] = s.Weight
		}
	}
	return w
}

// LaneMetrics holds the signals recovered for one lane. Nil means the source
// did not expose the value; it is never fabricated. Built once per request
// and read-only afterwards.
type LaneMetrics struct {
	Lane           int      `json:"lane"`
	ExhibitionTime *float64 `json:"exhibition_time,omitempty"`
	LapTime        *float64 `json:"lap_time,omitempty"`
	TurnSpeed      *float64 `json:"turn_speed,omitempty"`
	StraightSpeed  *float64 `json:"straight_speed,omitempty"`
	StartTiming    *float64 `json:"start_timing,omitempty"`
	AvgStartTiming *float64 `json:"avg_start_timing,omitempty"`
	StartRank      *float64 `json:"start_rank,omitempty"`
	MotorWinRate   *float64 `json:"motor_win_rate,omitempty"`
	BoatWinRate    *float64 `json:"boat_win_rate,omitempty"`
	TiltAngle      *float64 `json:"tilt_angle,omitempty"`
	ClassTier      string   `json:"class_tier,omitempty"`

	// STFlagged marks a flying/late start in the source. The timing value is
	// kept; scoring treats it as heavily penalized instead of missing.
	STFlagged bool `json:"st_flagged,omitempty"`
}

// Metric returns the value stored under a metric key, nil when absent.
func (m *LaneMetrics) Metric(key string) *float64 {
	switch key {
	case MetricExhibition:
		return m.ExhibitionTime
	case MetricLap:
		return m.LapTime
	case MetricTurn:
		return m.TurnSpeed
	case MetricStraight:
		return m.StraightSpeed
	case MetricST:
		if m.StartTiming != nil {
			return m.StartTiming
		}
		return m.AvgStartTiming
	case MetricAvgST:
		return m.AvgStartTiming
	case MetricSTRank:
		return m.StartRank
	case MetricMotor:
		return m.MotorWinRate
	case MetricBoat:
		return m.BoatWinRate
	case MetricTilt:
		return m.TiltAngle
	}
	return nil
}

// SetMetric stores a value under a metric key. Unknown keys are dropped.
func (m *LaneMetrics) SetMetric(key string, v *float64) {
	switch key {
	case MetricExhibition:
		m.ExhibitionTime = v
	case MetricLap:
		m.LapTime = v
	case MetricTurn:
		m.TurnSpeed = v
	case MetricStraight:
		m.StraightSpeed = v
	case MetricST:
		m.StartTiming = v
	case MetricAvgST:
		m.AvgStartTiming = v
	case MetricSTRank:
		m.StartRank = v
	case MetricMotor:
		m.MotorWinRate = v
	case MetricBoat:
		m.BoatWinRate = v
	case MetricTilt:
		m.TiltAngle = v
	}
}

// RaceConditions holds race-level context shared by all lanes.
type RaceConditions struct {
	Weather       string   `json:"weather,omitempty"`
	WindDirection string   `json:"wind_direction,omitempty"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"`
	WaveHeight    *float64 `json:"wave_height,omitempty"`
}

// CompetitorScore is one lane's composite score with its component breakdown.
// Derived fresh per request; never persisted by the core.
type CompetitorScore struct {
	Lane       int                `json:"lane"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components,omitempty"`
}

// WeightSet is a per-venue metric weight profile. Venue 0 is the global
// default profile.
type WeightSet struct {
	Metrics map[string]float64 `json:"metrics"`
}

// Clone returns a deep copy, so learning updates never alias a stored set.
func (w WeightSet) Clone() WeightSet {
	out := WeightSet{Metrics: make(map[string]float64, len(w.Metrics))}
	for k, v := range w.Metrics {
		out.Metrics[k] = v
	}
	return out
}
