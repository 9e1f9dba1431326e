// Package suggest produces punishment suggestions for group members, either
// from a chat-completion backend or from a deterministic local joke table.
// The generation path never fails: any backend trouble degrades to the local
// fallback.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/models"
)

const defaultAPIURL = "https://api.deepseek.com/v1/chat/completions"
const defaultModel = "deepseek-chat"

// Profile is everything the engine knows about a target member.
type Profile struct {
	Name        string
	Instruments []string
	// ChronicLate escalates suggested severity: the target admitted during
	// onboarding that they are habitually late.
	ChronicLate bool
	// ReceivedPunishments lists titles already aimed at the target, to avoid
	// repeats.
	ReceivedPunishments []string
	// GivenPunishments lists titles the target wrote for others, enabling
	// turnabout suggestions.
	GivenPunishments []string
	// Wishes are free-text hints the target gave about punishments they'd
	// accept.
	Wishes []string
}

// Suggestion is one proposed punishment text plus its rationale.
type Suggestion struct {
	Suggestion string `json:"suggestion"`
	Reason     string `json:"reason"`
}

// PickResult is the outcome of the single-pick variant used during a roll.
type PickResult struct {
	Punishment models.Punishment
	Reason     string
}

// ErrNoCandidates is returned when the picker is handed an empty list. That
// is a caller contract violation, not a runtime condition to swallow.
var ErrNoCandidates = errors.New("suggest: no candidate punishments")

// Engine talks to a chat-completion backend. A missing API key is a normal
// runtime configuration: every call silently takes the local path.
type Engine struct {
	apiURL string
	apiKey string
	model  string
	httpc  *http.Client
	log    *logrus.Logger
}

// NewEngine builds an engine from explicit configuration; empty apiURL and
// model fall back to the DeepSeek defaults.
func NewEngine(apiURL, apiKey, model string, httpc *http.Client, log *logrus.Logger) *Engine {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if model == "" {
		model = defaultModel
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 20 * time.Second}
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{apiURL: apiURL, apiKey: apiKey, model: model, httpc: httpc, log: log}
}

// NewEngineFromEnv reads DEEPSEEK_API_URL, DEEPSEEK_API_KEY, DEEPSEEK_MODEL.
func NewEngineFromEnv(log *logrus.Logger) *Engine {
	return NewEngine(
		os.Getenv("DEEPSEEK_API_URL"),
		os.Getenv("DEEPSEEK_API_KEY"),
		os.Getenv("DEEPSEEK_MODEL"),
		nil, log,
	)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete sends one user-role message and returns the raw completion text.
func (e *Engine) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       e.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", errors.New("no content in completion response")
	}
	return out.Choices[0].Message.Content, nil
}

var codeFenceRe = regexp.MustCompile("```(?:json)?\n?")

// stripCodeFence removes a markdown fence the model sometimes wraps its JSON
// in.
func stripCodeFence(content string) string {
	if !strings.Contains(content, "```") {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(content, ""))
}

// GeneratePersonalizedSuggestions returns 1..count suggestions for the
// profile. The backend path is attempted when credentials exist; every
// failure mode (HTTP, parse, empty result) falls back to the local table.
func (e *Engine) GeneratePersonalizedSuggestions(ctx context.Context, profile Profile, count int) []Suggestion {
	if count <= 0 {
		count = 3
	}
	if e.apiKey == "" {
		return generateLocalSuggestions(profile, count)
	}

	content, err := e.complete(ctx, buildGeneratePrompt(profile, count), 0.9)
	if err != nil {
		e.log.Warnf("suggestion generation failed, using local table: %v", err)
		return generateLocalSuggestions(profile, count)
	}

	var parsed struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		e.log.Warnf("suggestion response parse failed, using local table: %v", err)
		return generateLocalSuggestions(profile, count)
	}
	if len(parsed.Suggestions) == 0 {
		return generateLocalSuggestions(profile, count)
	}
	if len(parsed.Suggestions) > count {
		parsed.Suggestions = parsed.Suggestions[:count]
	}
	return parsed.Suggestions
}

// SuggestPunishment picks one punishment from an existing candidate list by
// matching the user's free-text wish ("something easy", "something
// embarrassing"). Any backend failure selects uniformly at random instead.
// An empty candidate list is an error.
func (e *Engine) SuggestPunishment(ctx context.Context, candidates []models.Punishment, userMessage string) (PickResult, error) {
	if len(candidates) == 0 {
		return PickResult{}, ErrNoCandidates
	}
	if e.apiKey == "" {
		return randomPick(candidates), nil
	}

	content, err := e.complete(ctx, buildPickPrompt(candidates, userMessage), 0.7)
	if err != nil {
		e.log.Warnf("AI pick failed, choosing at random: %v", err)
		return randomPick(candidates), nil
	}

	var parsed struct {
		SelectedIndex int    `json:"selected_index"`
		Reason        string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		e.log.Warnf("AI pick response parse failed, choosing at random: %v", err)
		return randomPick(candidates), nil
	}

	idx := parsed.SelectedIndex
	if idx < 0 {
		idx = 0
	}
	if idx > len(candidates)-1 {
		idx = len(candidates) - 1
	}
	reason := parsed.Reason
	if reason == "" {
		reason = "Hand-picked for you by the AI!"
	}
	return PickResult{Punishment: candidates[idx], Reason: reason}, nil
}

func randomPick(candidates []models.Punishment) PickResult {
	return PickResult{
		Punishment: candidates[rand.Intn(len(candidates))],
		Reason:     "Drawn at random. Fate has spoken!",
	}
}

func buildGeneratePrompt(profile Profile, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the AI assistant of a band party-punishment game. Invent funny punishment suggestions for a member who shows up late. Play with instrument jokes wherever you can!\n\n")
	fmt.Fprintf(&b, "## Target member: %s\n", profile.Name)
	if len(profile.Instruments) > 0 {
		fmt.Fprintf(&b, "- Instruments/roles: %s\n", strings.Join(profile.Instruments, ", "))
	} else {
		b.WriteString("- Instruments/roles: regular member\n")
	}
	if profile.ChronicLate {
		b.WriteString("- Punctuality: a self-confessed repeat latecomer!\n")
		b.WriteString("\nThis person admits they are always late. Punishments may cost them more time, money or dignity, with a repeat-offender flavor. Keep them personal rather than generic.\n")
	} else {
		b.WriteString("- Punctuality: claims to be punctual\n")
	}

	b.WriteString("\n## Punishments they already received (avoid repeats)\n")
	writeList(&b, profile.ReceivedPunishments)
	b.WriteString("\n## Punishments they wrote for others (taste of their own medicine)\n")
	writeList(&b, profile.GivenPunishments)
	b.WriteString("\n## What they told the AI they'd like\n")
	writeList(&b, profile.Wishes)

	fmt.Fprintf(&b, "\n## Requirements\n")
	fmt.Fprintf(&b, "1. You MUST return %d suggestions, never an empty list.\n", count)
	b.WriteString("2. Use the instrument info: make a guitarist play bass, a drummer play standing up, a singer do a falsetto-only song.\n")
	b.WriteString("3. If they wrote harsh punishments for others, turn one back on them.\n")
	b.WriteString("4. Never repeat a punishment they already received.\n")
	b.WriteString("5. Keep each suggestion under 20 words and each reason under 15.\n")

	fmt.Fprintf(&b, "\nReturn JSON only, in exactly this shape:\n{\n  \"suggestions\": [\n    {\"suggestion\": \"...\", \"reason\": \"...\"}\n  ]\n}\nReturn %d suggestions and nothing else.\n", count)
	return b.String()
}

func buildPickPrompt(candidates []models.Punishment, userMessage string) string {
	var b strings.Builder
	b.WriteString("You are the AI assistant of a party punishment game. Someone is late and must take a punishment.\n\n")
	fmt.Fprintf(&b, "The latecomer says: %s\n\n", userMessage)
	b.WriteString("Available punishments:\n")
	for i, p := range candidates {
		if p.Description != "" {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, p.Title, p.Description)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p.Title)
		}
	}
	b.WriteString("\nPick the punishment that best matches what they said. Return JSON:\n")
	b.WriteString("{\n  \"selected_index\": <zero-based index>,\n  \"reason\": \"a playful one-liner, 30 words max\"\n}\n")
	b.WriteString("Return the JSON and nothing else.\n")
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("- none\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
