// Package venue holds the registry of the 24 boat race stadiums. Venue
// codes are fixed nationwide: 1 桐生 through 24 大村.
package venue

import (
	"strings"

	"github.com/uzuki-lab/kyotei-cli/internal/normalize"
)

// Venue is one stadium.
type Venue struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Reading string   `json:"reading"`
	Aliases []string `json:"aliases,omitempty"`
}

var venues = []Venue{
	{ID: 1, Name: "桐生", Reading: "きりゅう", Aliases: []string{"kiryu"}},
	{ID: 2, Name: "戸田", Reading: "とだ", Aliases: []string{"toda"}},
	{ID: 3, Name: "江戸川", Reading: "えどがわ", Aliases: []string{"edogawa"}},
	{ID: 4, Name: "平和島", Reading: "へいわじま", Aliases: []string{"heiwajima"}},
	{ID: 5, Name: "多摩川", Reading: "たまがわ", Aliases: []string{"tamagawa"}},
	{ID: 6, Name: "浜名湖", Reading: "はまなこ", Aliases: []string{"hamanako"}},
	{ID: 7, Name: "蒲郡", Reading: "がまごおり", Aliases: []string{"gamagori"}},
	{ID: 8, Name: "常滑", Reading: "とこなめ", Aliases: []string{"tokoname"}},
	{ID: 9, Name: "津", Reading: "つ", Aliases: []string{"tsu"}},
	{ID: 10, Name: "三国", Reading: "みくに", Aliases: []string{"mikuni"}},
	{ID: 11, Name: "びわこ", Reading: "びわこ", Aliases: []string{"琵琶湖", "biwako"}},
	{ID: 12, Name: "住之江", Reading: "すみのえ", Aliases: []string{"suminoe"}},
	{ID: 13, Name: "尼崎", Reading: "あまがさき", Aliases: []string{"amagasaki"}},
	{ID: 14, Name: "鳴門", Reading: "なると", Aliases: []string{"naruto"}},
	{ID: 15, Name: "丸亀", Reading: "まるがめ", Aliases: []string{"marugame"}},
	{ID: 16, Name: "児島", Reading: "こじま", Aliases: []string{"kojima"}},
	{ID: 17, Name: "宮島", Reading: "みやじま", Aliases: []string{"miyajima"}},
	{ID: 18, Name: "徳山", Reading: "とくやま", Aliases: []string{"tokuyama"}},
	{ID: 19, Name: "下関", Reading: "しものせき", Aliases: []string{"shimonoseki"}},
	{ID: 20, Name: "若松", Reading: "わかまつ", Aliases: []string{"wakamatsu"}},
	{ID: 21, Name: "芦屋", Reading: "あしや", Aliases: []string{"ashiya"}},
	{ID: 22, Name: "福岡", Reading: "ふくおか", Aliases: []string{"fukuoka"}},
	{ID: 23, Name: "唐津", Reading: "からつ", Aliases: []string{"karatsu"}},
	{ID: 24, Name: "大村", Reading: "おおむら", Aliases: []string{"omura"}},
}

// All returns the registry in code order.
func All() []Venue {
	out := make([]Venue, len(venues))
	copy(out, venues)
	return out
}

// ByID looks a venue up by its code.
func ByID(id int) (Venue, bool) {
	if id < 1 || id > len(venues) {
		return Venue{}, false
	}
	return venues[id-1], true
}

// ByName looks a venue up by kanji name, reading or alias. Full-width
// variants and ASCII case are folded before matching.
func ByName(name string) (Venue, bool) {
	key := strings.ToLower(strings.TrimSpace(normalize.Fold(name)))
	if key == "" {
		return Venue{}, false
	}
	for _, v := range venues {
		if key == v.Name || key == v.Reading {
			return v, true
		}
		for _, a := range v.Aliases {
			if key == strings.ToLower(a) {
				return v, true
			}
		}
	}
	return Venue{}, false
}
