// Package pipeline implements the four-stage reply decision pipeline.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/mucbot/mucbot/internal/history"
	"github.com/mucbot/mucbot/internal/provider"
)

// ErrBusy is returned when a stage is skipped because a
// generation-class call is already in flight. Not a failure.
var ErrBusy = errors.New("generation already in flight")

// History window sizes per stage.
const (
	decisionWindow = 1
	contextWindow  = 3
	classifyWindow = 1
	replyWindow    = 3
)

// Decision is the outcome of the relevance stage.
type Decision struct {
	ShouldReply bool
	Reason      string
}

// Classification is the outcome of the topic stage.
type Classification struct {
	IsProgramming bool    `json:"is_programming"`
	Confidence    float64 `json:"confidence"`
}

// Pipeline runs the LLM-backed stages over the shared history buffer.
type Pipeline struct {
	backend      provider.Backend
	history      *history.Store
	generalModel string
	codeModel    string
	gate         *gate
	chance       func() int
}

// New creates a Pipeline over the given backend and history buffer.
func New(backend provider.Backend, hist *history.Store, generalModel, codeModel string) *Pipeline {
	return &Pipeline{
		backend:      backend,
		history:      hist,
		generalModel: generalModel,
		codeModel:    codeModel,
		gate:         newGate(),
		chance: func() int {
			return 5 + rand.Intn(26)
		},
	}
}

// SetChance overrides the intervene-for-no-reason percentage. Tests only.
func (p *Pipeline) SetChance(f func() int) {
	p.chance = f
}

// Busy reports whether a generation-class call is in flight.
func (p *Pipeline) Busy() bool {
	return p.gate.Busy()
}

// GeneralModel returns the model used by the conversational stages.
func (p *Pipeline) GeneralModel() string {
	return p.generalModel
}

// CodeModel returns the model used for programming answers.
func (p *Pipeline) CodeModel() string {
	return p.codeModel
}

// Decide runs the relevance stage over the latest turn.
// Returns ErrBusy without queueing when a generation-class call is in
// flight. Backend failures come back as a negative decision plus a
// *provider.BackendError.
func (p *Pipeline) Decide(ctx context.Context) (Decision, error) {
	if !p.gate.TryAcquire() {
		slog.Warn("Skipping relevance decision, generation in flight")
		return Decision{Reason: reasonBusy}, ErrBusy
	}
	defer p.gate.Release()

	window := history.Format(p.history.Last(decisionWindow))
	slog.Info("Analyzing conversation", "turns", p.history.Len())

	raw, err := p.backend.Generate(ctx, p.generalModel, decisionPrompt(window, p.chance()))
	if err != nil {
		return Decision{}, &provider.BackendError{Stage: "decision", Err: err}
	}
	d := ParseDecision(raw)
	slog.Debug("Relevance decision", "reply", d.ShouldReply, "reason", d.Reason)
	return d, nil
}

// Summarize runs the context stage over the last three turns and
// returns the fixed-field context line. Consults the gate but does not
// hold it across the backend call.
func (p *Pipeline) Summarize(ctx context.Context) (string, error) {
	if p.gate.Busy() {
		slog.Warn("Skipping context analysis, generation in flight")
		return "", ErrBusy
	}

	window := history.Format(p.history.Last(contextWindow))
	slog.Info("Analyzing context")

	raw, err := p.backend.Generate(ctx, p.generalModel, contextPrompt(window))
	if err != nil {
		return "", &provider.BackendError{Stage: "context", Err: err}
	}
	line := strings.TrimSpace(raw)
	slog.Debug("Context line", "context", line)
	return line, nil
}

// Classify runs the topic stage over the latest turn. Consults the
// gate but does not hold it across the backend call.
func (p *Pipeline) Classify(ctx context.Context) (Classification, error) {
	if p.gate.Busy() {
		slog.Warn("Skipping topic classification, generation in flight")
		return Classification{}, ErrBusy
	}

	window := history.Format(p.history.Last(classifyWindow))
	slog.Info("Classifying topic")

	raw, err := p.backend.Generate(ctx, p.generalModel, classifyPrompt(window))
	if err != nil {
		return Classification{}, &provider.BackendError{Stage: "classify", Err: err}
	}
	c, err := parseClassification(raw)
	if err != nil {
		return Classification{}, &provider.BackendError{Stage: "classify", Err: err}
	}
	slog.Debug("Topic classification", "programming", c.IsProgramming, "confidence", c.Confidence)
	return c, nil
}

// Reply generates the conversational answer from the last three turns
// plus the context line. Holds the gate slot for the whole call.
func (p *Pipeline) Reply(ctx context.Context, contextLine string) (string, error) {
	if !p.gate.TryAcquire() {
		slog.Warn("Skipping generation, another one in flight")
		return "", ErrBusy
	}
	defer func() {
		p.gate.Release()
		slog.Info("Generation finished")
	}()

	window := history.Format(p.history.Last(replyWindow))
	slog.Debug("Generating reply", "model", p.generalModel)

	raw, err := p.backend.Generate(ctx, p.generalModel, replyPrompt(window, contextLine))
	if err != nil {
		return "", &provider.BackendError{Stage: "reply", Err: err}
	}
	return strings.TrimSpace(raw), nil
}

// ReplyCode generates the programming answer from the latest turn's
// text alone, using the code model. Holds the gate slot like Reply.
func (p *Pipeline) ReplyCode(ctx context.Context) (string, error) {
	if !p.gate.TryAcquire() {
		slog.Warn("Skipping code generation, another one in flight")
		return "", ErrBusy
	}
	defer func() {
		p.gate.Release()
		slog.Info("Generation finished")
	}()

	var question string
	if turns := p.history.Last(1); len(turns) > 0 {
		question = turns[0].Text
	}
	slog.Debug("Generating code reply", "model", p.codeModel)

	raw, err := p.backend.Generate(ctx, p.codeModel, codePrompt(question))
	if err != nil {
		return "", &provider.BackendError{Stage: "reply_code", Err: err}
	}
	return strings.TrimSpace(raw), nil
}
