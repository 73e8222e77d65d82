package matchmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenalive/arenalive/internal/httpclient"
)

func TestMaxHealthForGame(t *testing.T) {
	assert.Equal(t, 176, MaxHealthForGame("sf2ce"))
	assert.Equal(t, 176, MaxHealthForGame("SFIII3N"))
	assert.Equal(t, 103, MaxHealthForGame("kof98"))
	assert.Equal(t, 170, MaxHealthForGame("tektagt"))
	assert.Equal(t, 176, MaxHealthForGame("some-new-game"))
}

func TestHealthRatio(t *testing.T) {
	assert.InDelta(t, 1.0, HealthRatio(176, 176), 1e-9)
	assert.InDelta(t, 0.5, HealthRatio(88, 176), 1e-9)
	assert.Zero(t, HealthRatio(-20, 176), "post-KO negative health clamps to zero")
	assert.InDelta(t, 1.0, HealthRatio(200, 176), 1e-9, "overshoot clamps to one")
	assert.Zero(t, HealthRatio(10, 0))
}

func TestWinsNeeded(t *testing.T) {
	tests := []struct{ format, want int }{
		{1, 1},
		{2, 1},
		{3, 2},
		{5, 3},
		{7, 4},
		{0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WinsNeeded(tt.format), "format %d", tt.format)
	}
}

func newTestClient(srvURL string) *Client {
	hc := httpclient.New(httpclient.Config{
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	})
	return NewClient(hc, srvURL+"/", nil)
}

func TestClient_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/matches/m-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": "m-1", "game_id": "sf2ce", "format": 3,
			"status": "live", "fighter_a": "ryu", "fighter_b": "guile", "live": true
		}`))
	}))
	defer srv.Close()

	m, err := newTestClient(srv.URL).Match(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "sf2ce", m.GameID)
	assert.Equal(t, 3, m.Format)
	assert.True(t, m.Live)
	assert.Equal(t, 2, WinsNeeded(m.Format))
}

func TestClient_MatchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Match(context.Background(), "missing")
	assert.ErrorIs(t, err, httpclient.ErrStatus)
}

func TestClient_LiveMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/matches/live", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"m-9","game_id":"kof98","format":5,"live":true}`))
	}))
	defer srv.Close()

	m, err := newTestClient(srv.URL).LiveMatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m-9", m.ID)
	assert.Equal(t, 103, MaxHealthForGame(m.GameID))
}
