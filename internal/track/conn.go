package track

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"delivery-track/internal/contracts"
	"delivery-track/internal/geo"
	"delivery-track/internal/logger"
)

// ConnState is the raw channel state, distinct from SessionState.
type ConnState int32

const (
	StateClosed ConnState = iota
	StateConnecting
	StateOpen
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

const (
	defaultReconnectWait = 3 * time.Second
	writeTimeout         = 5 * time.Second
)

// Options configures a Conn. One Options/Conn pair exists per
// (deliveryID, role); the same struct serves both roles.
type Options struct {
	Endpoint   string
	DeliveryID string
	Role       contracts.Role
	Token      string

	// ReconnectWait is the fixed delay before redialing after an
	// unexpected closure. Defaults to 3s.
	ReconnectWait time.Duration

	// RouteCapacity bounds the route buffer. Defaults to 2000.
	RouteCapacity int

	// KeepSessionOnClose leaves SessionState untouched when Close is
	// called. The default (false) resets it to inactive.
	KeepSessionOnClose bool

	// Producer names this agent in outbound envelopes.
	Producer string
}

// Conn owns one persistent bidirectional channel to the per-delivery
// tracking endpoint: connect/reconnect/close lifecycle, a typed inbound
// dispatcher, and a best-effort outbound sender.
//
// The dispatcher runs on a single read goroutine, so route buffer and
// session state see writes in strict arrival order.
type Conn struct {
	opts   Options
	log    *logger.Logger
	dialer *websocket.Dialer

	// Callbacks are invoked from the dispatch goroutine. Set them before
	// Connect; they are optional.
	OnLocation func(geo.Sample)
	OnStatus   func(active bool)
	OnError    func(error)

	mu      sync.Mutex
	state   ConnState
	ws      *websocket.Conn
	intent  bool   // owner wants the channel up
	gen     uint64 // bumped by Close; stale timers and read loops check it
	timer   *time.Timer
	lastErr error
	ctx     context.Context // base context for redials

	writeMu sync.Mutex

	session SessionState
	route   *RouteBuffer

	curMu   sync.Mutex
	current *geo.Sample
}

// NewConn builds a connection manager. It does not dial.
func NewConn(opts Options, log *logger.Logger) *Conn {
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = defaultReconnectWait
	}
	return &Conn{
		opts:   opts,
		log:    log,
		dialer: websocket.DefaultDialer,
		route:  NewRouteBuffer(opts.RouteCapacity),
	}
}

// Connect opens the channel. Idempotent: a call while Connecting or Open is
// a no-op. Dial failures are surfaced and also enter the reconnect loop.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.intent = true
	c.state = StateConnecting
	c.ctx = ctx
	gen := c.gen
	c.mu.Unlock()

	return c.dial(ctx, gen)
}

func (c *Conn) dial(ctx context.Context, gen uint64) error {
	url, err := contracts.TrackingURL(c.opts.Endpoint, c.opts.DeliveryID, c.opts.Role, c.opts.Token)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.intent = false
		c.lastErr = err
		c.mu.Unlock()
		return err
	}

	ws, resp, err := c.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		if gen != c.gen || !c.intent {
			c.mu.Unlock()
			return nil // superseded by an explicit Close while dialing
		}
		c.state = StateClosed
		c.lastErr = err
		c.scheduleReconnectLocked(gen)
		c.mu.Unlock()

		c.log.Error(ctx, "ws_dial_failed", "Tracking channel dial failed", err,
			map[string]any{"role": string(c.opts.Role)})
		c.reportError(err)
		return err
	}

	c.mu.Lock()
	if gen != c.gen || !c.intent {
		c.mu.Unlock()
		_ = ws.Close()
		return nil
	}
	c.ws = ws
	c.state = StateOpen
	c.lastErr = nil
	c.mu.Unlock()

	c.log.Info(ctx, "ws_connected", "Tracking channel open",
		map[string]any{"role": string(c.opts.Role)})

	go c.readLoop(ws, gen)
	return nil
}

// Close shuts the channel with a normal-closure frame and the given reason,
// suppresses any pending or future reconnect, and (unless configured
// otherwise) resets session state to inactive. Safe to call repeatedly.
func (c *Conn) Close(reason string) {
	c.mu.Lock()
	c.intent = false
	c.gen++ // invalidates in-flight dials, read loops, and timers
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ws := c.ws
	c.ws = nil
	c.state = StateClosed
	c.mu.Unlock()

	if ws != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		c.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		_ = ws.Close()
	}

	if !c.opts.KeepSessionOnClose {
		c.session.SetActive(false)
	}
}

// Send serializes and transmits msg only while the channel is open;
// otherwise the message is silently dropped. Fire-and-forget: transmission
// errors are logged, never returned, and never block the caller beyond a
// bounded write.
func (c *Conn) Send(msg any) {
	c.mu.Lock()
	ws := c.ws
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || ws == nil {
		c.log.Debug(context.Background(), "ws_send_dropped", "Outbound message dropped, channel not open",
			map[string]any{"state": c.State().String()})
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error(context.Background(), "ws_marshal_failed", "Failed to encode outbound message", err, nil)
		return
	}

	c.writeMu.Lock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = ws.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		// the read loop will observe the broken socket and recover
		c.log.Error(context.Background(), "ws_write_failed", "Outbound write failed", err, nil)
	}
}

// SendLocation transmits a position sample in wire form.
func (c *Conn) SendLocation(s geo.Sample) {
	c.Send(contracts.OutboundLocation{
		Type:         contracts.TypeLocationUpdate,
		Lat:          s.Latitude,
		Lng:          s.Longitude,
		Accuracy:     s.AccuracyMeters,
		Speed:        s.SpeedKMH,
		Heading:      s.HeadingDegrees,
		BatteryLevel: s.BatteryLevel,
		Envelope:     c.envelope(),
	})
}

// Pause asks the service to pause tracking for this delivery.
func (c *Conn) Pause() { c.command(contracts.TypePauseTracking) }

// Resume asks the service to resume tracking for this delivery.
func (c *Conn) Resume() { c.command(contracts.TypeResumeTracking) }

// RequestLastLocation asks for the carrier's most recent known position.
func (c *Conn) RequestLastLocation() { c.command(contracts.TypeGetLastLocation) }

// RequestRouteHistory asks for the traveled path so far (late-join catch-up).
func (c *Conn) RequestRouteHistory() { c.command(contracts.TypeGetRouteHistory) }

func (c *Conn) command(kind string) {
	c.Send(contracts.Command{Type: kind, Envelope: c.envelope()})
}

func (c *Conn) envelope() contracts.Envelope {
	return contracts.Envelope{
		CorrelationID: uuid.NewString(),
		Producer:      c.opts.Producer,
		SentAt:        time.Now().UTC(),
	}
}

// State reports the raw channel state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent transport error, nil after a clean open.
func (c *Conn) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Session exposes the logical tracking state.
func (c *Conn) Session() *SessionState { return &c.session }

// Route exposes the bounded traveled path.
func (c *Conn) Route() *RouteBuffer { return c.route }

// CurrentLocation returns the last position seen on the channel, whether or
// not it was appended to the route.
func (c *Conn) CurrentLocation() (geo.Sample, bool) {
	c.curMu.Lock()
	defer c.curMu.Unlock()
	if c.current == nil {
		return geo.Sample{}, false
	}
	return *c.current, true
}

func (c *Conn) setCurrent(s geo.Sample) {
	c.curMu.Lock()
	c.current = &s
	c.curMu.Unlock()
}

// --- inbound path ---

func (c *Conn) readLoop(ws *websocket.Conn, gen uint64) {
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.dispatch(payload)
	}
}

// dispatch parses one frame and routes it by type. Frames are processed
// strictly in arrival order; malformed ones are logged and dropped without
// touching connection state.
func (c *Conn) dispatch(payload []byte) {
	var msg contracts.Inbound
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.log.Error(context.Background(), "ws_bad_frame", "Discarding unparsable frame", err,
			map[string]any{"size": len(payload)})
		return
	}

	switch msg.Type {
	case contracts.TypeConnectionStatus:
		if msg.IsTrackingActive != nil {
			c.setActive(*msg.IsTrackingActive)
		}

	case contracts.TypeLocationUpdate:
		if msg.Location == nil {
			return
		}
		sample := msg.Location.Sample()
		c.route.Append(sample)
		c.setCurrent(sample)
		if c.OnLocation != nil {
			c.OnLocation(sample)
		}

	case contracts.TypeTrackingStarted, contracts.TypeTrackingResumed:
		c.setActive(true)

	case contracts.TypeTrackingStopped, contracts.TypeTrackingPaused:
		c.setActive(false)

	case contracts.TypeLastLocation:
		if msg.Location == nil {
			return
		}
		sample := msg.Location.Sample()
		c.setCurrent(sample) // current position only, not part of the path
		if c.OnLocation != nil {
			c.OnLocation(sample)
		}

	case contracts.TypeRouteHistory:
		points := make([]geo.Sample, 0, len(msg.RoutePoints))
		for _, p := range msg.RoutePoints {
			points = append(points, p.Sample())
		}
		c.route.ReplaceAll(points)
		if n := len(points); n > 0 {
			c.setCurrent(points[n-1])
		}

	default:
		c.log.Debug(context.Background(), "ws_unknown_type", "Ignoring unknown message type",
			map[string]any{"type": msg.Type})
	}
}

func (c *Conn) setActive(v bool) {
	c.session.SetActive(v)
	if c.OnStatus != nil {
		c.OnStatus(v)
	}
}

// handleClose classifies a read failure and either schedules a redial or
// settles into a terminal close. A close belonging to a superseded
// generation (explicit Close already ran) is a no-op.
func (c *Conn) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.ws = nil
	c.lastErr = err

	terminal := false
	var ce *websocket.CloseError
	if errors.As(err, &ce) &&
		(ce.Code == websocket.CloseNormalClosure || ce.Code == contracts.CloseSessionEnded) {
		terminal = true
	}

	if terminal {
		c.intent = false
		c.mu.Unlock()

		c.log.Info(c.logCtx(), "ws_session_ended", "Tracking channel closed by service",
			map[string]any{"code": ce.Code, "reason": ce.Text})
		// a final-state close ends the session regardless of config
		c.setActive(false)
		return
	}

	c.scheduleReconnectLocked(gen)
	c.mu.Unlock()

	c.log.Error(c.logCtx(), "ws_unexpected_close", "Tracking channel dropped, reconnect scheduled", err,
		map[string]any{"wait": c.opts.ReconnectWait.String()})
	c.reportError(err)
}

// scheduleReconnectLocked arms the single owned reconnect timer. The fire
// callback rechecks intent and generation, so a timer that outlives an
// explicit Close does nothing. Caller holds c.mu.
func (c *Conn) scheduleReconnectLocked(gen uint64) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.ReconnectWait, func() {
		c.mu.Lock()
		if gen != c.gen || !c.intent || c.state != StateClosed {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		ctx := c.ctx
		c.mu.Unlock()

		_ = c.dial(ctx, gen)
	})
}

func (c *Conn) reportError(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func (c *Conn) logCtx() context.Context {
	return logger.WithDeliveryID(context.Background(), c.opts.DeliveryID)
}
