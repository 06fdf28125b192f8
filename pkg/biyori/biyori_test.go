package biyori

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaceURL(t *testing.T) {
	got := RaceURL(BaseURL, 5, 12, "20260825", SliderChokuzen)
	assert.Equal(t,
		"https://kyoteibiyori.com/race_shusso.php?place_no=5&race_no=12&hiduke=20260825&slider=4",
		got)

	got = RaceURL("http://127.0.0.1:8080", 24, 1, "20260101", SliderMyData)
	assert.Equal(t,
		"http://127.0.0.1:8080/race_shusso.php?place_no=24&race_no=1&hiduke=20260101&slider=9",
		got)
}

func TestHeaders(t *testing.T) {
	h := Headers()
	assert.Contains(t, h["User-Agent"], "Chrome")
	assert.Equal(t, "https://kyoteibiyori.com/", h["Referer"])
	assert.Equal(t, "no-cache", h["Cache-Control"])
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"展示", "周回", "周り足", "直線"}, Labels(SliderChokuzen))
	assert.Equal(t, []string{"平均ST", "ST順位"}, Labels(SliderMyData))
}
