package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punishroulette/roulette/internal/models"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		require.Equal(t, "user", req.Messages[0].Role)

		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
	}))
}

func candidates(n int) []models.Punishment {
	out := make([]models.Punishment, n)
	for i := range out {
		out[i] = models.Punishment{ID: uuid.New(), Title: fmt.Sprintf("punishment %d", i)}
	}
	return out
}

func TestGenerateNoKeyUsesLocalTable(t *testing.T) {
	e := NewEngine("", "", "", nil, nil)
	got := e.GeneratePersonalizedSuggestions(context.Background(), Profile{}, 3)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 3)
}

func TestGenerateNonEmptyForEmptyProfile(t *testing.T) {
	// The bare-minimum profile: no name, no instruments, no history, no AI.
	e := NewEngine("", "", "", nil, nil)
	for _, count := range []int{1, 3, 5} {
		got := e.GeneratePersonalizedSuggestions(context.Background(), Profile{}, count)
		require.NotEmpty(t, got, "count=%d", count)
		require.LessOrEqual(t, len(got), count)
		for _, s := range got {
			assert.NotEmpty(t, s.Suggestion)
		}
	}
}

func TestGenerateParsesBackendResponse(t *testing.T) {
	srv := chatServer(t, `{"suggestions":[{"suggestion":"Play bass for a night","reason":"guitarist humiliation"},{"suggestion":"Carry all the amps","reason":"cardio"}]}`)
	defer srv.Close()

	e := NewEngine(srv.URL, "test-key", "", nil, nil)
	got := e.GeneratePersonalizedSuggestions(context.Background(), Profile{Name: "Alex"}, 3)
	require.Len(t, got, 2)
	assert.Equal(t, "Play bass for a night", got[0].Suggestion)
}

func TestGenerateStripsCodeFence(t *testing.T) {
	srv := chatServer(t, "```json\n{\"suggestions\":[{\"suggestion\":\"Sing falsetto\",\"reason\":\"fun\"}]}\n```")
	defer srv.Close()

	e := NewEngine(srv.URL, "test-key", "", nil, nil)
	got := e.GeneratePersonalizedSuggestions(context.Background(), Profile{}, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "Sing falsetto", got[0].Suggestion)
}

func TestGenerateTruncatesToCount(t *testing.T) {
	srv := chatServer(t, `{"suggestions":[{"suggestion":"a"},{"suggestion":"b"},{"suggestion":"c"},{"suggestion":"d"}]}`)
	defer srv.Close()

	e := NewEngine(srv.URL, "test-key", "", nil, nil)
	got := e.GeneratePersonalizedSuggestions(context.Background(), Profile{}, 2)
	assert.Len(t, got, 2)
}

func TestGenerateFallsBackOnGarbage(t *testing.T) {
	srv := chatServer(t, "sorry, I can't help with that")
	defer srv.Close()

	e := NewEngine(srv.URL, "test-key", "", nil, nil)
	got := e.GeneratePersonalizedSuggestions(context.Background(), Profile{Name: "Sam"}, 3)
	require.NotEmpty(t, got)
}

func TestGenerateFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewEngine(srv.URL, "test-key", "", nil, nil)
	got := e.GeneratePersonalizedSuggestions(context.Background(), Profile{}, 3)
	require.NotEmpty(t, got)
}

func TestGenerateAvoidsReceivedPunishments(t *testing.T) {
	e := NewEngine("", "", "", nil, nil)
	profile := Profile{
		Name:                "Jo",
		Instruments:         []string{"guitar"},
		ReceivedPunishments: []string{"Play a whole song on bass instead"},
	}
	got := e.GeneratePersonalizedSuggestions(context.Background(), profile, 5)
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.NotEqual(t, "Play a whole song on bass instead", s.Suggestion)
	}
}

func TestSuggestPunishmentEmptyCandidates(t *testing.T) {
	e := NewEngine("", "", "", nil, nil)
	_, err := e.SuggestPunishment(context.Background(), nil, "anything")
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestSuggestPunishmentNoKeyRandom(t *testing.T) {
	e := NewEngine("", "", "", nil, nil)
	cands := candidates(3)
	got, err := e.SuggestPunishment(context.Background(), cands, "something easy")
	require.NoError(t, err)
	assert.NotEmpty(t, got.Reason)
	found := false
	for _, c := range cands {
		if c.ID == got.Punishment.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSuggestPunishmentHonorsIndex(t *testing.T) {
	srv := chatServer(t, `{"selected_index":2,"reason":"it fits the mood"}`)
	defer srv.Close()

	e := NewEngine(srv.URL, "test-key", "", nil, nil)
	cands := candidates(4)
	got, err := e.SuggestPunishment(context.Background(), cands, "something embarrassing")
	require.NoError(t, err)
	assert.Equal(t, cands[2].ID, got.Punishment.ID)
	assert.Equal(t, "it fits the mood", got.Reason)
}

func TestSuggestPunishmentClampsIndex(t *testing.T) {
	for _, tc := range []struct {
		index int
		want  int
	}{
		{index: 99, want: 2},
		{index: -5, want: 0},
	} {
		srv := chatServer(t, fmt.Sprintf(`{"selected_index":%d,"reason":"r"}`, tc.index))
		e := NewEngine(srv.URL, "test-key", "", nil, nil)
		cands := candidates(3)
		got, err := e.SuggestPunishment(context.Background(), cands, "x")
		srv.Close()
		require.NoError(t, err)
		assert.Equal(t, cands[tc.want].ID, got.Punishment.ID)
	}
}

func TestSuggestPunishmentFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewEngine(srv.URL, "test-key", "", nil, nil)
	got, err := e.SuggestPunishment(context.Background(), candidates(2), "x")
	require.NoError(t, err)
	assert.NotEmpty(t, got.Punishment.Title)
}

func TestStripCodeFence(t *testing.T) {
	cases := []string{
		"{\"a\":1}",
		"```json\n{\"a\":1}\n```",
		"```\n{\"a\":1}\n```",
		"  {\"a\":1}  ",
		"```json\n{\"a\":1}\n```\n\n",
	}
	for _, in := range cases {
		assert.Equal(t, `{"a":1}`, stripCodeFence(in))
	}
}
