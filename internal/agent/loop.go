// Package agent implements the core bot loop: it consumes gateway
// events, runs the reply pipeline over room messages and pushes the
// result back out through the send path.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mucbot/mucbot/internal/bus"
	"github.com/mucbot/mucbot/internal/gateway"
	"github.com/mucbot/mucbot/internal/history"
	"github.com/mucbot/mucbot/internal/outbound"
	"github.com/mucbot/mucbot/internal/pipeline"
	"github.com/mucbot/mucbot/internal/provider"
	"github.com/mucbot/mucbot/internal/trace"
	"github.com/mucbot/mucbot/internal/transcript"
)

// Product strings stay in the room's language.
const (
	welcomeText    = "AI-Бот запущен и готов к работе"
	defaultContext = "Контекста нет"
	debugPrefix    = "❗️❗❗ DEBUG ❗❗❗ \n\n "
	msgTooSoon     = "Слишком рано после предыдущего ответа, пропускаю"
	msgBackendDown = "Ollama не подключена"
)

const adminErrorLimit = 50

// Sender delivers a message as-is, no typing reveal.
type Sender interface {
	Send(ctx context.Context, m outbound.Message) (string, error)
}

// Deliverer delivers replies, with the typing reveal when enabled.
type Deliverer interface {
	Deliver(ctx context.Context, m outbound.Message) (string, error)
	Cancel(room string) bool
}

// Recorder persists room traffic and verdicts. All writes are
// best-effort.
type Recorder interface {
	AddTurn(room, sender, body string, encrypted bool) error
	AddDecision(d *transcript.Decision) error
}

// Tracer streams decision telemetry.
type Tracer interface {
	Active() bool
	Publish(ctx context.Context, ev trace.Event) error
}

// LoopOptions contains configuration for the bot loop.
type LoopOptions struct {
	Bus       *bus.Bus
	Transport gateway.Transport
	Cipher    gateway.Cipher
	Sender    Sender
	Deliverer Deliverer
	Pipeline  *pipeline.Pipeline
	Backend   provider.Backend
	History   *history.Store

	Transcript Recorder
	Tracer     Tracer

	Room                string
	Nick                string
	AdminJID            string
	Debug               bool
	MinResponseInterval time.Duration
}

// Loop is the core processing engine.
type Loop struct {
	bus        *bus.Bus
	transport  gateway.Transport
	cipher     gateway.Cipher
	sender     Sender
	deliver    Deliverer
	pipe       *pipeline.Pipeline
	backend    provider.Backend
	history    *history.Store
	transcript Recorder
	tracer     Tracer

	gate        *ResponseGate
	reconnector *Reconnector

	room     string
	nick     string
	adminJID string
	debug    bool

	running atomic.Bool
}

// NewLoop creates the bot loop.
func NewLoop(opts LoopOptions) *Loop {
	return &Loop{
		bus:         opts.Bus,
		transport:   opts.Transport,
		cipher:      opts.Cipher,
		sender:      opts.Sender,
		deliver:     opts.Deliverer,
		pipe:        opts.Pipeline,
		backend:     opts.Backend,
		history:     opts.History,
		transcript:  opts.Transcript,
		tracer:      opts.Tracer,
		gate:        NewResponseGate(opts.MinResponseInterval),
		reconnector: NewReconnector(opts.Transport),
		room:        opts.Room,
		nick:        opts.Nick,
		adminJID:    opts.AdminJID,
		debug:       opts.Debug,
	}
}

// Run consumes gateway events until the context ends or the
// reconnection supervisor gives up.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	slog.Info("Agent loop started", "room", l.room, "nick", l.nick)

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.reconnector.Fatal():
			cancel()
		case <-rctx.Done():
		}
	}()

	for l.running.Load() {
		ev, err := l.bus.Consume(rctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-l.reconnector.Fatal():
				return fmt.Errorf("reconnect attempts exhausted")
			default:
			}
			slog.Error("Failed to consume event", "error", err)
			continue
		}
		l.handleEvent(rctx, ev)
	}
	return nil
}

// Stop ends the loop after the event in flight.
func (l *Loop) Stop() {
	l.running.Store(false)
}

func (l *Loop) handleEvent(ctx context.Context, ev bus.Event) {
	switch ev.Kind {
	case bus.EventSessionStart:
		l.reconnector.Reset()
		slog.Info("Session started, bot is ready")
		l.notifyAdmin(ctx, "🤖 "+welcomeText+"!")
		l.trace(ctx, trace.Event{Kind: trace.KindSession, Room: l.room, Body: "started"})
	case bus.EventGotOnline:
		slog.Info("Bot online, room join in progress", "room", l.room)
	case bus.EventGroupMessage:
		if ev.Message != nil {
			l.handleGroupMessage(ctx, ev.Message)
		}
	case bus.EventSessionEnd, bus.EventDisconnected:
		slog.Warn("Connection to server lost", "event", string(ev.Kind))
		l.reconnector.Wake(ctx)
	case bus.EventDeviceTrust:
		if ev.Trust != nil {
			slog.Info("Device trust update",
				"jid", ev.Trust.JID, "device", ev.Trust.DeviceID,
				"fingerprint", ev.Trust.Fingerprint, "trusted", ev.Trust.Trusted)
		}
	default:
		slog.Debug("Ignoring event", "kind", string(ev.Kind))
	}
}

func (l *Loop) handleGroupMessage(ctx context.Context, env *bus.Envelope) {
	switch env.Kind {
	case "chat", "normal", "groupchat":
	default:
		return
	}
	if env.Nick == l.nick {
		return
	}

	// Every trace event of this run carries the same id.
	traceID := uuid.NewString()

	body := env.Body
	if env.Encrypted {
		plain, err := l.cipher.Decrypt(ctx, *env)
		if err != nil {
			l.abortHandling(ctx, traceID, err)
			return
		}
		body = plain
		slog.Debug("Message decrypted", "nick", env.Nick)
	} else {
		// Client capability notices are not conversation.
		if strings.Contains(body, "OMEMO") && strings.Contains(body, "doesn't support") {
			return
		}
		slog.Debug("Plaintext message", "nick", env.Nick)
	}
	if body == "" {
		return
	}

	l.history.Append(env.Nick, body)
	if l.transcript != nil {
		_ = l.transcript.AddTurn(l.room, env.Nick, body, env.Encrypted)
	}

	if l.gate.TooSoon() {
		l.debugRoom(ctx, msgTooSoon)
		slog.Info("Minimum response interval not reached, skipping")
		l.trace(ctx, trace.Event{TraceID: traceID, Kind: trace.KindSkip, Room: l.room, Nick: env.Nick, Reason: msgTooSoon})
		return
	}

	if !l.backend.Healthy(ctx) {
		l.debugRoomAndAdmin(ctx, msgBackendDown)
		l.trace(ctx, trace.Event{TraceID: traceID, Kind: trace.KindHealth, Room: l.room, Reason: msgBackendDown})
		return
	}

	d, err := l.pipe.Decide(ctx)
	if err != nil && !errors.Is(err, pipeline.ErrBusy) {
		l.abortHandling(ctx, traceID, err)
		return
	}
	slog.Debug("Relevance decision", "should_reply", d.ShouldReply, "reason", d.Reason)
	l.trace(ctx, trace.Event{TraceID: traceID, Kind: trace.KindDecision, Room: l.room, Nick: env.Nick, Body: verdict(d.ShouldReply), Reason: d.Reason})

	// The record fills in as the pipeline advances and lands whole on
	// every exit path.
	rec := &transcript.Decision{Room: l.room, TraceID: traceID, ShouldReply: d.ShouldReply, Reason: d.Reason}
	defer func() {
		if l.transcript != nil {
			_ = l.transcript.AddDecision(rec)
		}
	}()

	if !d.ShouldReply {
		l.debugRoom(ctx, "Пропускаю. Причина:\n\n"+d.Reason)
		slog.Debug("Skipping reply", "reason", d.Reason)
		return
	}

	l.debugRoom(ctx, "Причина ответа:\n\n"+d.Reason)
	l.chatState(ctx, gateway.StateComposing)

	contextLine, err := l.pipe.Summarize(ctx)
	if err != nil && !errors.Is(err, pipeline.ErrBusy) {
		l.generationFailed(ctx, traceID, err)
		return
	}
	if contextLine == "" {
		slog.Error("Context analysis came back empty")
		contextLine = defaultContext
	}
	rec.Context = contextLine
	l.debugRoom(ctx, "Контекст беседы:\n\n"+contextLine)

	cls, err := l.pipe.Classify(ctx)
	if err != nil && !errors.Is(err, pipeline.ErrBusy) {
		l.generationFailed(ctx, traceID, err)
		return
	}
	rec.Programming = cls.IsProgramming
	rec.Confidence = cls.Confidence
	l.debugRoomAndAdmin(ctx, "Детектор кода:\n\n"+formatClassification(cls))

	start := time.Now()
	model := l.pipe.GeneralModel()
	var reply string
	if cls.IsProgramming {
		model = l.pipe.CodeModel()
		reply, err = l.pipe.ReplyCode(ctx)
	} else {
		reply, err = l.pipe.Reply(ctx, contextLine)
	}
	if err != nil && !errors.Is(err, pipeline.ErrBusy) {
		l.generationFailed(ctx, traceID, err)
		return
	}
	if reply == "" {
		slog.Warn("Model produced no reply")
		return
	}

	l.history.Append(l.nick, reply)
	if l.transcript != nil {
		_ = l.transcript.AddTurn(l.room, l.nick, reply, true)
	}

	slog.Info("Reply generated, sending", "model", model, "chars", len(reply))
	l.chatState(ctx, gateway.StateActive)

	msgID, err := l.deliver.Deliver(ctx, outbound.Message{
		To:      l.room,
		Kind:    "groupchat",
		Body:    reply,
		Encrypt: true,
	})
	if err != nil {
		l.generationFailed(ctx, traceID, err)
		return
	}

	l.gate.Record()
	rec.Replied = true
	rec.MessageID = msgID
	l.trace(ctx, trace.Event{
		TraceID:    traceID,
		Kind:       trace.KindReply,
		Room:       l.room,
		Body:       reply,
		Model:      model,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// abortHandling is the catch-all teardown for failures outside the
// generation phase: no admin message, just cleanup.
func (l *Loop) abortHandling(ctx context.Context, traceID string, err error) {
	slog.Error("Message handling failed", "error", err)
	l.chatState(ctx, gateway.StateActive)
	l.deliver.Cancel(l.room)
	l.trace(ctx, trace.Event{TraceID: traceID, Kind: trace.KindError, Room: l.room, Reason: err.Error()})
}

// generationFailed tears down a failed generation phase and tells the
// operator.
func (l *Loop) generationFailed(ctx context.Context, traceID string, err error) {
	slog.Error("Reply generation failed", "error", err)
	l.chatState(ctx, gateway.StateActive)
	l.deliver.Cancel(l.room)
	l.notifyAdmin(ctx, "Ошибка: "+snippet(err.Error(), adminErrorLimit))
	l.trace(ctx, trace.Event{TraceID: traceID, Kind: trace.KindError, Room: l.room, Reason: err.Error()})
}

func (l *Loop) chatState(ctx context.Context, state string) {
	if err := l.transport.SendChatState(ctx, l.room, state); err != nil {
		slog.Warn("Chat state send failed", "state", state, "error", err)
	}
}

func (l *Loop) notifyAdmin(ctx context.Context, text string) {
	if l.adminJID == "" {
		return
	}
	if _, err := l.sender.Send(ctx, outbound.Message{
		To:      l.adminJID,
		Kind:    "chat",
		Body:    text,
		Encrypt: true,
	}); err != nil {
		slog.Error("Admin notification failed", "error", err)
		return
	}
	slog.Info("Admin notified")
}

func (l *Loop) debugRoom(ctx context.Context, text string) {
	if !l.debug {
		return
	}
	if _, err := l.sender.Send(ctx, outbound.Message{
		To:      l.room,
		Kind:    "groupchat",
		Body:    debugPrefix + text,
		Encrypt: true,
	}); err != nil {
		slog.Warn("Debug message failed", "error", err)
	}
}

func (l *Loop) debugRoomAndAdmin(ctx context.Context, text string) {
	if !l.debug {
		return
	}
	l.debugRoom(ctx, text)
	l.notifyAdmin(ctx, debugPrefix+text)
}

func (l *Loop) trace(ctx context.Context, ev trace.Event) {
	if l.tracer == nil || !l.tracer.Active() {
		return
	}
	if err := l.tracer.Publish(ctx, ev); err != nil {
		slog.Debug("Trace publish failed", "error", err)
	}
}

func verdict(shouldReply bool) string {
	if shouldReply {
		return "yes"
	}
	return "no"
}

func formatClassification(c pipeline.Classification) string {
	return fmt.Sprintf("is_programming=%t confidence=%.2f", c.IsProgramming, c.Confidence)
}

// snippet trims s to at most max runes for operator-facing text.
func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
