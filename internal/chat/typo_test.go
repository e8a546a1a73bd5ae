package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseMatch(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"spotify", "sportify", true},
		{"netflix", "netflx", true},
		{"woolworths", "woolwortsh", true},
		{"chase", "chanel", false},
		{"spotify", "spotfy", true},
		{"spotify", "spotfly", true},
		{"spotify", "spotflx", false},
		{"chase", "smith", false},
		{"uber", "ubereats", false},
		{"checkers", "chekcers", true},
		{"abc", "xyz", false},
		{"same", "same", true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, closeMatch(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
		require.Equal(t, tc.want, closeMatch(tc.b, tc.a), "%s vs %s", tc.b, tc.a)
	}
}

func TestParseCorrection(t *testing.T) {
	cases := []struct {
		name   string
		reply  string
		query  string
		simple []string
		want   []string
	}{
		{"arrow", "Metaflix -> Netflix", "How much on Metaflix?", []string{"metaflix"}, []string{"netflix"}},
		{"phrase in query", "Chanel Smith", "List Chanel Smith payments", []string{"chanel", "smith"}, []string{"chanel smith"}},
		{"typo", "Spotify", "sportify price", []string{"sportify"}, []string{"spotify"}},
		{"unrelated", "Chase", "List Chanel Smith payments", []string{"chanel", "smith"}, nil},
		{"unknown", "unknown", "what about that thing", []string{"thing"}, nil},
		{"verbatim word", "Woolworths Food", "woolworths last week", []string{"woolworths", "week"}, []string{"woolworths"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, parseCorrection(tc.reply, tc.query, tc.simple))
		})
	}
}
