package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTurnaboutPick(t *testing.T) {
	profile := Profile{
		Name:             "Kim",
		GivenPunishments: []string{"Buy dinner for the whole band"},
	}
	got := generateLocalSuggestions(profile, 10)
	require.NotEmpty(t, got)

	found := false
	for _, s := range got {
		if s.Suggestion == "Buy dinner for the whole band" {
			found = true
			assert.Equal(t, "A taste of their own medicine", s.Reason)
		}
	}
	assert.True(t, found, "authored punishment should come back around")
}

func TestLocalLastResortWhenEverythingUsed(t *testing.T) {
	var received []string
	for _, jokes := range instrumentJokes {
		received = append(received, jokes...)
	}
	for _, s := range genericFallbacks {
		received = append(received, s.Suggestion)
	}
	profile := Profile{
		Name:                "Max",
		Instruments:         []string{"guitar", "bass", "drums", "vocals", "keyboard", "piano", "music"},
		ReceivedPunishments: received,
	}
	got := generateLocalSuggestions(profile, 3)
	require.Len(t, got, 1)
	assert.Equal(t, lastResort, got[0])
}

func TestLocalInstrumentSubstringMatch(t *testing.T) {
	got := generateLocalSuggestions(Profile{Instruments: []string{"Electric Guitar"}}, 10)
	require.NotEmpty(t, got)
	foundGuitarJoke := false
	for _, s := range got {
		for _, joke := range instrumentJokes["guitar"] {
			if s.Suggestion == joke {
				foundGuitarJoke = true
			}
		}
	}
	assert.True(t, foundGuitarJoke)
}

func TestLocalTruncatesToCount(t *testing.T) {
	got := generateLocalSuggestions(Profile{Instruments: []string{"drums", "vocals"}}, 2)
	assert.Len(t, got, 2)
}
