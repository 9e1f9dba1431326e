package suggest

import (
	"math/rand"
	"strings"
)

// instrumentJokes keys are matched case-insensitively against the member's
// instrument tags, substring in either direction, so "electric guitar"
// reaches the "guitar" entries.
var instrumentJokes = map[string][]string{
	"guitar": {
		"Play a whole song on bass instead",
		"Play the set with zero distortion",
		"Swap the electric for a ukulele",
	},
	"bass": {
		"Play the guitar solo yourself",
		"Use a pick all rehearsal",
		"Learn a slap section on the spot",
	},
	"drum": {
		"Play a full song with one stick",
		"Brushes only, no sticks",
		"Swap snare and hi-hat hands",
		"Play a song standing up",
	},
	"vocal": {
		"Sing a whole song in falsetto",
		"Sing a ballad as rap",
		"Sing one song without the lyric sheet",
		"Do an a cappella verse",
	},
	"keyboard": {
		"Left hand only for the accompaniment",
		"Play a song without looking at the keys",
		"Improvise a jazz break",
	},
	"piano": {
		"Play the bass line on keys",
		"One hand only for a full song",
	},
	"music": {
		"Sing another member's part",
		"Perform an air guitar solo",
		"Imitate three instruments with your mouth",
	},
}

// genericFallbacks keep the local path non-empty for members with no
// instrument tags and a long punishment history.
var genericFallbacks = []Suggestion{
	{Suggestion: "Perform an air guitar solo", Reason: "Everyone can rock"},
	{Suggestion: "Imitate three instruments with your mouth", Reason: "Show us your beatbox"},
	{Suggestion: "Sing a chorus of a song you barely know", Reason: "A worthy challenge"},
	{Suggestion: "Perform a short dance for the group", Reason: "Music is not just for ears"},
	{Suggestion: "Buy bubble tea for everyone", Reason: "A classic never gets old"},
	{Suggestion: "Arrive first at the next rehearsal", Reason: "Redemption through punctuality"},
}

// lastResort guarantees the non-empty contract even when every table entry
// has already been used on this target.
var lastResort = Suggestion{
	Suggestion: "Arrive first at the next three rehearsals",
	Reason:     "The punishment that fixes the crime",
}

// generateLocalSuggestions is the deterministic offline path: instrument
// jokes first, then one turnabout pick from the target's own authored
// punishments, then generic fillers. Everything is de-duplicated against
// punishments the target already received and against suggestions already
// chosen in this call, then truncated to count.
func generateLocalSuggestions(profile Profile, count int) []Suggestion {
	received := make(map[string]bool, len(profile.ReceivedPunishments))
	for _, p := range profile.ReceivedPunishments {
		received[p] = true
	}
	used := make(map[string]bool)
	var suggestions []Suggestion

	add := func(s Suggestion) {
		if len(suggestions) >= count || used[s.Suggestion] || received[s.Suggestion] {
			return
		}
		suggestions = append(suggestions, s)
		used[s.Suggestion] = true
	}

	for _, instrument := range profile.Instruments {
		lower := strings.ToLower(instrument)
		for key, jokes := range instrumentJokes {
			if !strings.Contains(lower, key) && !strings.Contains(key, lower) {
				continue
			}
			for _, joke := range jokes {
				add(Suggestion{Suggestion: joke, Reason: instrument + " special"})
			}
		}
	}

	if len(profile.GivenPunishments) > 0 && len(suggestions) < count {
		pick := profile.GivenPunishments[rand.Intn(len(profile.GivenPunishments))]
		add(Suggestion{Suggestion: pick, Reason: "A taste of their own medicine"})
	}

	for _, s := range genericFallbacks {
		add(s)
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, lastResort)
	}
	if len(suggestions) > count {
		suggestions = suggestions[:count]
	}
	return suggestions
}
