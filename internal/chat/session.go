package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"chatsync/internal/metrics"
	"chatsync/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Emitter transmits outbound push events. Emit must not block.
type Emitter interface {
	Emit(event string, payload any) error
}

// Notifier receives render updates for the presentation layer.
type Notifier interface {
	Publish(Update)
}

// Archiver records confirmed messages.
type Archiver interface {
	SaveMessage(ctx context.Context, msg models.Message) error
}

// RoomBackend is the REST side of the chat server.
type RoomBackend interface {
	JoinRoom(ctx context.Context, roomID, password string) (*models.RoomInfo, error)
	History(ctx context.Context, roomID string) ([]models.Message, error)
	Participants(ctx context.Context, roomID string) ([]models.Participant, error)
}

type Config struct {
	Identity    Identity
	DedupWindow time.Duration
	// SendTimeout marks unconfirmed sends as failed after this long. Zero keeps them
	// provisional forever.
	SendTimeout   time.Duration
	SweepInterval time.Duration
	AutoScroll    bool
}

type Option func(*Session)

func WithEmitter(e Emitter) Option { return func(s *Session) { s.emitter = e } }

func WithNotifier(n Notifier) Option { return func(s *Session) { s.notifier = n } }

func WithArchiver(a Archiver) Option { return func(s *Session) { s.archiver = a } }

func WithBackend(b RoomBackend) Option { return func(s *Session) { s.backend = b } }

// WithEvents sets the inbound push channel.
func WithEvents(ch <-chan models.Envelope) Option { return func(s *Session) { s.events = ch } }

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// WithID overrides the generated session id.
func WithID(id string) Option { return func(s *Session) { s.id = id } }

// Session owns one user's chat state and mutates it from a single goroutine.
// Every exported method is safe for concurrent use once Run has started.
type Session struct {
	id    string
	state *State

	cmds   chan func()
	events <-chan models.Envelope
	done   chan struct{}

	emitter  Emitter
	notifier Notifier
	archiver Archiver
	backend  RoomBackend
	archiveQ chan models.Message

	log         *slog.Logger
	now         func() time.Time
	sendTimeout time.Duration
	sweepEvery  time.Duration
}

func NewSession(cfg Config, opts ...Option) *Session {
	st := NewState(cfg.Identity, cfg.DedupWindow)
	st.AutoScroll = cfg.AutoScroll
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = time.Second
	}
	s := &Session{
		id:          uuid.NewString(),
		state:       st,
		cmds:        make(chan func()),
		done:        make(chan struct{}),
		archiveQ:    make(chan models.Message, 256),
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		sendTimeout: cfg.SendTimeout,
		sweepEvery:  sweep,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("session", s.id, "user", cfg.Identity.Username)
	return s
}

func (s *Session) ID() string { return s.id }

// Run processes commands and inbound events until ctx is done. It must be called once.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.archiver != nil {
		g.Go(func() error {
			s.archiveLoop(gctx)
			return nil
		})
	}
	g.Go(func() error {
		return s.loop(gctx)
	})
	return g.Wait()
}

func (s *Session) loop(ctx context.Context) error {
	defer close(s.done)

	var sweep <-chan time.Time
	if s.sendTimeout > 0 {
		t := time.NewTicker(s.sweepEvery)
		defer t.Stop()
		sweep = t.C
	}

	events := s.events
	s.log.Info("chat session started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("chat session stopped")
			return nil
		case fn := <-s.cmds:
			fn()
		case env, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handle(env)
		case <-sweep:
			_ = s.apply(s.state.SweepPending(s.now(), s.sendTimeout))
		}
	}
}

type result[T any] struct {
	val T
	err error
}

// call runs fn on the session goroutine and waits for its result.
func call[T any](ctx context.Context, s *Session, fn func() (T, error)) (T, error) {
	var zero T
	resc := make(chan result[T], 1)
	run := func() {
		v, err := fn()
		resc <- result[T]{val: v, err: err}
	}
	select {
	case s.cmds <- run:
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-resc:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// do runs fn on the session goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func() error) error {
	_, err := call(ctx, s, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// apply runs effects in order: render updates, outbound events, archive writes.
func (s *Session) apply(fx Effects) error {
	for _, u := range fx.Updates {
		s.publish(u)
	}

	var firstErr error
	for _, o := range fx.Outbound {
		if s.emitter == nil {
			continue
		}
		if err := s.emitter.Emit(o.Event, o.Payload); err != nil {
			s.log.Warn("emit failed", "event", o.Event, "error", err)
			s.publish(Update{Kind: UpdateNotice, Notice: "Could not reach the chat server, please try again"})
			if firstErr == nil {
				firstErr = fmt.Errorf("emit %s: %w", o.Event, err)
			}
		}
	}

	for _, m := range fx.Archive {
		s.enqueueArchive(m)
	}

	metrics.OpenTabs.Set(float64(s.state.tabs.Len()))
	metrics.PendingMessages.Set(float64(s.state.PendingCount()))
	return firstErr
}

func (s *Session) publish(u Update) {
	if s.notifier != nil {
		s.notifier.Publish(u)
	}
}

func (s *Session) enqueueArchive(m models.Message) {
	if s.archiver == nil {
		return
	}
	select {
	case s.archiveQ <- m:
	default:
		metrics.ArchiveErrors.Inc()
		s.log.Warn("archive queue full, dropping message", "id", m.ID, "room", m.RoomID)
	}
}

func (s *Session) archiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.archiveQ:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := s.archiver.SaveMessage(wctx, m); err != nil {
				metrics.ArchiveErrors.Inc()
				s.log.Warn("archive write failed", "id", m.ID, "error", err)
			}
			cancel()
		}
	}
}

// Dispatch handles one inbound event on the session goroutine.
func (s *Session) Dispatch(ctx context.Context, env models.Envelope) error {
	return s.do(ctx, func() error {
		s.handle(env)
		return nil
	})
}

func (s *Session) handle(env models.Envelope) {
	switch env.Event {
	case models.EventConnect:
		_ = s.apply(s.state.Rejoin())

	case models.EventNewMessage, models.EventUserJoined, models.EventUserLeft:
		msg, err := s.decodeMessage(env)
		if err != nil {
			s.drop(env, err)
			return
		}
		fx := s.state.Receive(msg)
		metrics.ReconcileOutcomes.WithLabelValues(fx.Outcome.String()).Inc()
		s.log.Debug("message reconciled", "room", msg.RoomID, "id", msg.ID, "outcome", fx.Outcome.String())
		_ = s.apply(fx)

	case models.EventParticipantsUpdated:
		var ev models.ParticipantsUpdated
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			s.drop(env, err)
			return
		}
		_ = s.apply(s.state.ApplyParticipants(ev))

	case models.EventUserKicked:
		var ev models.UserKicked
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			s.drop(env, err)
			return
		}
		metrics.ModerationEvents.WithLabelValues(env.Event).Inc()
		if ev.KickedUser == s.state.self.Username {
			s.log.Info("kicked from room", "room", ev.RoomID, "by", ev.KickedBy)
		}
		_ = s.apply(s.state.ApplyKick(ev))

	case models.EventUserMuted:
		var ev models.UserMuted
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			s.drop(env, err)
			return
		}
		metrics.ModerationEvents.WithLabelValues(env.Event).Inc()
		_ = s.apply(s.state.ApplyMute(ev))

	case models.EventGiftAnimation:
		s.publish(Update{Kind: UpdateGiftAnimation, Payload: env.Data})

	default:
		s.drop(env, fmt.Errorf("unknown event"))
	}
}

func (s *Session) drop(env models.Envelope, err error) {
	metrics.DroppedFrames.Inc()
	s.log.Warn("dropping inbound event", "event", env.Event, "error", err)
}

func (s *Session) decodeMessage(env models.Envelope) (models.Message, error) {
	var w models.WireMessage
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return models.Message{}, err
	}
	if w.Type == "" {
		switch env.Event {
		case models.EventUserJoined:
			w.Type = string(models.KindJoin)
		case models.EventUserLeft:
			w.Type = string(models.KindLeave)
		}
	}
	if strings.TrimSpace(w.RoomID) == "" {
		return models.Message{}, fmt.Errorf("message has no room id")
	}
	return w.Decode(s.now())
}

// OpenTab opens a tab for d and announces the join. Re-opening returns the
// existing index. A failed join-room emit leaves the tab open: it is reported as a
// notice and replayed by Rejoin on the next connect.
func (s *Session) OpenTab(ctx context.Context, d models.RoomDescriptor) (int, error) {
	return call(ctx, s, func() (int, error) {
		idx, fx, err := s.state.OpenTab(d)
		if err != nil {
			return idx, err
		}
		if err := s.apply(fx); err != nil {
			s.log.Info("tab opened while offline, join deferred to reconnect", "room", d.ID)
		}
		return idx, nil
	})
}

// OpenPrivate opens the 1:1 conversation with peer.
func (s *Session) OpenPrivate(ctx context.Context, peer string) (int, error) {
	peer = strings.TrimSpace(peer)
	if peer == "" {
		return -1, ErrNoUsername
	}
	return s.OpenTab(ctx, models.RoomDescriptor{
		ID:    PrivateRoomID(s.state.self.Username, peer),
		Kind:  models.TabPrivate,
		Title: peer,
	})
}

// JoinRoom joins roomID through the REST backend, opens its tab and loads history
// and the participant roster. The HTTP calls run on the caller's goroutine.
func (s *Session) JoinRoom(ctx context.Context, roomID, password string) (int, error) {
	if s.backend == nil {
		return -1, ErrNoBackend
	}
	info, err := s.backend.JoinRoom(ctx, roomID, password)
	if err != nil {
		return -1, fmt.Errorf("join room %s: %w", roomID, err)
	}
	if info.ID == "" {
		info.ID = roomID
	}
	idx, err := s.OpenTab(ctx, info.Descriptor())
	if err != nil {
		return idx, err
	}
	s.Refresh(ctx, info.ID)
	return idx, nil
}

// Refresh reloads history and participants of roomID. Failures become notices.
func (s *Session) Refresh(ctx context.Context, roomID string) {
	if s.backend == nil {
		return
	}
	history, err := s.backend.History(ctx, roomID)
	if err != nil {
		s.notice(ctx, roomID, "Could not load message history", err)
	} else {
		_ = s.do(ctx, func() error { return s.apply(s.state.LoadHistory(roomID, history)) })
	}

	participants, err := s.backend.Participants(ctx, roomID)
	if err != nil {
		s.notice(ctx, roomID, "Could not load participants", err)
		return
	}
	ev := models.ParticipantsUpdated{RoomID: roomID, Participants: participants}
	_ = s.do(ctx, func() error { return s.apply(s.state.ApplyParticipants(ev)) })
}

func (s *Session) notice(ctx context.Context, roomID, text string, err error) {
	s.log.Warn(text, "room", roomID, "error", err)
	_ = s.do(ctx, func() error {
		s.publish(Update{Kind: UpdateNotice, RoomID: roomID, Notice: text})
		return nil
	})
}

// CloseTab leaves id. Closing a tab that is not open is a no-op.
func (s *Session) CloseTab(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		return s.apply(s.state.CloseTab(id))
	})
}

// Focus focuses the tab at index and clears its unread counter.
func (s *Session) Focus(ctx context.Context, index int) error {
	return s.do(ctx, func() error {
		fx, err := s.state.Focus(index)
		if err != nil {
			return err
		}
		return s.apply(fx)
	})
}

// Send shows content in roomID immediately as a provisional message, then
// transmits it. A transport error is returned alongside the provisional message,
// which stays in the tab.
func (s *Session) Send(ctx context.Context, roomID, content string) (models.Message, error) {
	return call(ctx, s, func() (models.Message, error) {
		m, fx, err := s.state.Send(roomID, content, s.now())
		if err != nil {
			metrics.SendsRejected.WithLabelValues(string(Classify(err))).Inc()
			return models.Message{}, err
		}
		metrics.MessagesSent.Inc()
		return m, s.apply(fx)
	})
}

// Kick asks the server to remove target from roomID. Requires admin or mentor.
func (s *Session) Kick(ctx context.Context, roomID, target string) error {
	return s.do(ctx, func() error {
		fx, err := s.state.Kick(roomID, target)
		if err != nil {
			metrics.SendsRejected.WithLabelValues(string(Classify(err))).Inc()
			return err
		}
		return s.apply(fx)
	})
}

// Mute asks the server to mute or unmute target in roomID. Requires admin or mentor.
func (s *Session) Mute(ctx context.Context, roomID, target, action string) error {
	return s.do(ctx, func() error {
		fx, err := s.state.Mute(roomID, target, action)
		if err != nil {
			metrics.SendsRejected.WithLabelValues(string(Classify(err))).Inc()
			return err
		}
		return s.apply(fx)
	})
}

func (s *Session) Block(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrNoUsername
	}
	return s.do(ctx, func() error { return s.apply(s.state.Block(username)) })
}

func (s *Session) Unblock(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrNoUsername
	}
	return s.do(ctx, func() error { return s.apply(s.state.Unblock(username)) })
}

// SetScrolling records whether the user is scrolling the focused tab by hand.
func (s *Session) SetScrolling(ctx context.Context, scrolling bool) error {
	return s.do(ctx, func() error {
		s.state.UserScrolling = scrolling
		return nil
	})
}

func (s *Session) SetAutoScroll(ctx context.Context, enabled bool) error {
	return s.do(ctx, func() error {
		s.state.AutoScroll = enabled
		return nil
	})
}

func (s *Session) Snapshot(ctx context.Context) (SessionView, error) {
	return call(ctx, s, func() (SessionView, error) {
		return s.state.Snapshot(), nil
	})
}

// Messages returns the visible messages of roomID.
func (s *Session) Messages(ctx context.Context, roomID string) ([]MessageView, error) {
	return call(ctx, s, func() ([]MessageView, error) {
		return s.state.VisibleMessages(roomID)
	})
}
