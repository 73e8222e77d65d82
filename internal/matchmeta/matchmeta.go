// Package matchmeta is the REST client for match metadata: which game a
// match runs on, its round format, and the per-game health scale used to
// turn raw health integers into display ratios.
package matchmeta

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/arenalive/arenalive/internal/httpclient"
)

// Match is the metadata record for one match.
type Match struct {
	ID       string `json:"id"`
	GameID   string `json:"game_id"`
	Format   int    `json:"format"`
	Status   string `json:"status"`
	FighterA string `json:"fighter_a"`
	FighterB string `json:"fighter_b"`
	Live     bool   `json:"live"`
}

// Per-game health scales from the emulator memory maps. Unknown games fall
// back to the Street Fighter scale.
const defaultMaxHealth = 176

var maxHealthByGame = map[string]int{
	"sf2ce":   176,
	"sfiii3n": 176,
	"kof98":   103,
	"tektagt": 170,
}

// MaxHealthForGame returns the raw health value that maps to a full bar.
func MaxHealthForGame(gameID string) int {
	if v, ok := maxHealthByGame[strings.ToLower(gameID)]; ok {
		return v
	}
	return defaultMaxHealth
}

// HealthRatio scales a raw health integer to [0, 1].
func HealthRatio(raw, maxHealth int) float64 {
	if maxHealth <= 0 {
		return 0
	}
	r := float64(raw) / float64(maxHealth)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// WinsNeeded returns the round wins that decide a match of the given
// format: ceil(format / 2).
func WinsNeeded(format int) int {
	if format < 1 {
		return 1
	}
	return (format + 1) / 2
}

// Client fetches match metadata from the platform API.
type Client struct {
	http    *httpclient.Client
	baseURL string
	log     *slog.Logger
}

// NewClient creates a metadata client rooted at baseURL.
func NewClient(hc *httpclient.Client, baseURL string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// Match fetches one match by ID.
func (c *Client) Match(ctx context.Context, id string) (*Match, error) {
	var m Match
	u := fmt.Sprintf("%s/matches/%s", c.baseURL, url.PathEscape(id))
	if err := c.http.GetJSON(ctx, u, &m); err != nil {
		return nil, fmt.Errorf("fetch match %s: %w", id, err)
	}
	return &m, nil
}

// LiveMatch fetches the currently live match, if any.
func (c *Client) LiveMatch(ctx context.Context) (*Match, error) {
	var m Match
	if err := c.http.GetJSON(ctx, c.baseURL+"/matches/live", &m); err != nil {
		return nil, fmt.Errorf("fetch live match: %w", err)
	}
	return &m, nil
}
