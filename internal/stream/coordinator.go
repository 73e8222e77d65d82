package stream

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/arenalive/arenalive/internal/decode"
	"github.com/arenalive/arenalive/internal/observability"
	"github.com/arenalive/arenalive/internal/wschannel"
)

// ChannelKind identifies the websocket endpoints a coordinator owns.
type ChannelKind string

// Channel kinds.
const (
	ChannelVideo  ChannelKind = "video"
	ChannelState  ChannelKind = "state"
	ChannelReplay ChannelKind = "replay"
)

// EndpointURL derives the websocket URL for a channel kind from the base URL
// and match ID.
func EndpointURL(base string, kind ChannelKind, matchID string) string {
	base = strings.TrimRight(base, "/")
	id := url.PathEscape(matchID)
	switch kind {
	case ChannelVideo:
		return fmt.Sprintf("%s/match/%s/video", base, id)
	case ChannelState:
		return fmt.Sprintf("%s/match/%s/data", base, id)
	case ChannelReplay:
		return fmt.Sprintf("%s/replay/%s", base, id)
	default:
		return ""
	}
}

// CoordinatorOptions configures a coordinator.
type CoordinatorOptions struct {
	BaseURL    string
	Capability decode.Capability
	Logger     *slog.Logger
	Metrics    *observability.Metrics

	// Decoder and Surface back the live video pipeline. Decoder may be
	// nil when Capability is CapabilityNone.
	Decoder decode.Decoder
	Surface *decode.Surface

	// Renderer receives replay JPEG frames. Nil disables the replay
	// channel.
	Renderer *decode.JPEGRenderer

	// Dial overrides the websocket dialer on all channels, for tests.
	Dial wschannel.DialFunc

	// Reconnect is the per-channel retry policy.
	Reconnect wschannel.Config
}

// Coordinator owns the websocket channels for one match: video and state
// when live, replay during playback. It derives each channel's target URL
// from the current match and liveness, reports a single combined connected
// flag, and tears every channel down together when the stream ends or the
// match changes.
type Coordinator struct {
	log       *slog.Logger
	metrics   *observability.Metrics
	baseURL   string
	cap       decode.Capability
	sessionID ulid.ULID

	pipeline *Pipeline
	state    *StateTracker
	renderer *decode.JPEGRenderer

	video  *wschannel.Channel
	stateC *wschannel.Channel
	replay *wschannel.Channel

	mu          sync.Mutex
	matchID     string
	live        bool
	replayReady bool
	ended       bool
	urls        map[ChannelKind]string
}

// NewCoordinator builds a coordinator and its channels. Nothing connects
// until SetMatch or SetReplay supplies a match.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	if opts.Reconnect == (wschannel.Config{}) {
		opts.Reconnect = wschannel.DefaultConfig()
	}

	sessionID := ulid.Make()
	log := opts.Logger.With(slog.String("session_id", sessionID.String()))

	c := &Coordinator{
		log:       log,
		metrics:   opts.Metrics,
		baseURL:   opts.BaseURL,
		cap:       opts.Capability,
		sessionID: sessionID,
		renderer:  opts.Renderer,
		urls:      make(map[ChannelKind]string),
	}

	c.pipeline = NewPipeline(log, opts.Metrics, opts.Decoder, opts.Surface, func() { c.markEnded("end_of_stream") })
	c.state = NewStateTracker(log, opts.Metrics, func() { c.markEnded("state_sentinel") })

	c.video = c.newChannel(ChannelVideo, true, opts, func(_ int, data []byte) {
		c.pipeline.HandleMessage(data)
	})
	c.stateC = c.newChannel(ChannelState, false, opts, func(_ int, data []byte) {
		c.state.HandleMessage(data)
	})
	c.replay = c.newChannel(ChannelReplay, true, opts, c.routeReplayMessage)

	return c
}

func (c *Coordinator) newChannel(kind ChannelKind, binary bool, opts CoordinatorOptions, onMessage func(int, []byte)) *wschannel.Channel {
	name := string(kind)
	return wschannel.New(opts.Reconnect, wschannel.Options{
		Name:      name,
		Binary:    binary,
		Logger:    c.log,
		Dial:      opts.Dial,
		OnMessage: onMessage,
		OnOpen: func() {
			c.metrics.Connections.WithLabelValues(name).Set(1)
			if kind == ChannelVideo {
				c.pipeline.SetConnecting()
			}
		},
		OnClose: func() {
			c.metrics.Connections.WithLabelValues(name).Set(0)
		},
		OnReconnect: func(attempt uint32, delay time.Duration) {
			c.metrics.Connections.WithLabelValues(name).Set(0)
			c.metrics.ReconnectAttempts.WithLabelValues(name).Inc()
		},
	})
}

// routeReplayMessage splits the replay stream: binary messages are JPEG
// frames for the fallback renderer, text messages reuse the state channel
// format, including the terminal sentinel.
func (c *Coordinator) routeReplayMessage(messageType int, data []byte) {
	if messageType == websocket.BinaryMessage {
		if c.renderer != nil {
			c.renderer.Submit(data)
		}
		return
	}
	c.state.HandleMessage(data)
}

// SessionID returns the log-correlation ID for this coordinator.
func (c *Coordinator) SessionID() string {
	return c.sessionID.String()
}

// SetMatch points the coordinator at a live match. An empty ID or live=false
// tears everything down. Switching matches resets the ended latch, the video
// pipeline, and the state tracker.
func (c *Coordinator) SetMatch(matchID string, live bool) {
	c.mu.Lock()
	changed := matchID != c.matchID
	if changed {
		c.ended = false
	}
	c.matchID = matchID
	c.live = live
	c.replayReady = false
	c.mu.Unlock()
	if changed {
		c.resetSession()
	}
	c.reconcile()
}

// SetReplay points the coordinator at a finished match's replay stream.
func (c *Coordinator) SetReplay(matchID string, ready bool) {
	c.mu.Lock()
	changed := matchID != c.matchID
	if changed {
		c.ended = false
	}
	c.matchID = matchID
	c.live = false
	c.replayReady = ready
	c.mu.Unlock()
	if changed {
		c.resetSession()
	}
	c.reconcile()
}

// resetSession prepares the owned consumers for a different match. The
// channels are torn down first so no stale read loop can deliver into the
// freshly reset pipeline or tracker; reconcile then redials the new match.
func (c *Coordinator) resetSession() {
	c.mu.Lock()
	c.urls = make(map[ChannelKind]string)
	c.mu.Unlock()
	c.setChannelURL(ChannelVideo, "")
	c.setChannelURL(ChannelState, "")
	c.setChannelURL(ChannelReplay, "")
	c.pipeline.Reset()
	c.state.Reset()
}

// Close tears down all channels.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.matchID = ""
	c.live = false
	c.replayReady = false
	c.mu.Unlock()
	c.reconcile()
}

// markEnded latches the terminal state and tears the channels down together.
func (c *Coordinator) markEnded(reason string) {
	c.mu.Lock()
	already := c.ended
	c.ended = true
	c.mu.Unlock()
	if already {
		return
	}
	c.log.Info("stream ended", slog.String("reason", reason))
	c.reconcile()
}

// desiredURLs computes each channel's target. A channel gets a URL only
// while the match is set, the relevant mode flag holds, and the stream has
// not ended; video additionally requires decode capability.
func (c *Coordinator) desiredURLs() map[ChannelKind]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	urls := map[ChannelKind]string{
		ChannelVideo:  "",
		ChannelState:  "",
		ChannelReplay: "",
	}
	if c.matchID == "" || c.ended {
		return urls
	}
	if c.live {
		urls[ChannelState] = EndpointURL(c.baseURL, ChannelState, c.matchID)
		if c.cap != decode.CapabilityNone {
			urls[ChannelVideo] = EndpointURL(c.baseURL, ChannelVideo, c.matchID)
		}
	}
	if c.replayReady && c.renderer != nil {
		urls[ChannelReplay] = EndpointURL(c.baseURL, ChannelReplay, c.matchID)
	}
	return urls
}

// reconcile pushes the desired URLs onto the channels. SetURL is a full
// teardown, so it is only called when the target actually changed.
func (c *Coordinator) reconcile() {
	desired := c.desiredURLs()

	c.mu.Lock()
	changed := make(map[ChannelKind]string)
	for kind, u := range desired {
		if c.urls[kind] != u {
			c.urls[kind] = u
			changed[kind] = u
		}
	}
	c.mu.Unlock()

	for kind, u := range changed {
		c.setChannelURL(kind, u)
	}
}

// setChannelURL retargets one channel. SetURL is a full teardown that does
// not fire OnClose, so the open gauge is zeroed here; OnOpen raises it again
// once the new target connects.
func (c *Coordinator) setChannelURL(kind ChannelKind, u string) {
	c.metrics.Connections.WithLabelValues(string(kind)).Set(0)
	switch kind {
	case ChannelVideo:
		c.video.SetURL(u)
	case ChannelState:
		c.stateC.SetURL(u)
	case ChannelReplay:
		c.replay.SetURL(u)
	}
}

// Connected reports whether any owned channel is up. One live channel is
// enough to count the match as watchable.
func (c *Coordinator) Connected() bool {
	return c.video.Connected() || c.stateC.Connected() || c.replay.Connected()
}

// Ended reports whether the stream reached its terminal state.
func (c *Coordinator) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// Snapshot returns the latest match snapshot, or nil.
func (c *Coordinator) Snapshot() *Snapshot {
	return c.state.Latest()
}

// PipelineState returns the video pipeline lifecycle state.
func (c *Coordinator) PipelineState() PipelineState {
	return c.pipeline.State()
}
