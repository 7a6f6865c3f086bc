// Package chat runs one conversation turn end to end.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dishahealth/coach/internal/budget"
	"github.com/dishahealth/coach/internal/conversation"
	"github.com/dishahealth/coach/internal/memory"
	"github.com/dishahealth/coach/internal/metrics"
	"github.com/dishahealth/coach/internal/prompt"
	"github.com/dishahealth/coach/internal/protocol"
	"github.com/dishahealth/coach/internal/provider"
	"github.com/dishahealth/coach/internal/tokens"
	"github.com/dishahealth/coach/internal/typing"
	"github.com/dishahealth/coach/internal/user"
)

const typingResetTimeout = 5 * time.Second

// Deps are the collaborators of an Orchestrator. Users, Turns, Memory,
// Protocols, Provider and Typing are required; the rest have defaults.
type Deps struct {
	Users     user.Repository
	Turns     conversation.Repository
	Memory    *memory.Service
	Protocols protocol.Repository
	Provider  provider.Provider
	Typing    typing.Store

	Extractor *memory.Extractor
	Matcher   *protocol.Matcher
	Assembler *prompt.Assembler
	Truncator *budget.Truncator
	Counter   tokens.Counter
	Cadence   Cadence
}

// Orchestrator sequences a user turn: context lookup, prompt assembly,
// history truncation, generation and persistence.
type Orchestrator struct {
	users     user.Repository
	turns     conversation.Repository
	memory    *memory.Service
	protocols protocol.Repository
	provider  provider.Provider
	typing    typing.Store
	extractor *memory.Extractor
	matcher   *protocol.Matcher
	assembler *prompt.Assembler
	truncator *budget.Truncator
	counter   tokens.Counter
	cadence   Cadence

	config Config
	locks  *userLocks
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates an orchestrator. Zero config fields take DefaultConfig values.
func New(cfg Config, d Deps, logger *zap.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.FactsPerPrompt <= 0 {
		cfg.FactsPerPrompt = def.FactsPerPrompt
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = def.ExtractionTimeout
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}

	if d.Counter == nil {
		d.Counter = tokens.Heuristic{}
	}
	if d.Extractor == nil {
		d.Extractor = memory.NewExtractor(d.Provider, logger)
	}
	if d.Matcher == nil {
		d.Matcher = protocol.NewMatcher(protocol.DefaultMatchCap)
	}
	if d.Assembler == nil {
		d.Assembler = prompt.NewAssembler()
	}
	if d.Truncator == nil {
		d.Truncator = budget.NewTruncator(budget.DefaultConfig(), d.Counter, logger)
	}
	if d.Cadence == nil {
		d.Cadence = EveryN(5)
	}

	return &Orchestrator{
		users:     d.Users,
		turns:     d.Turns,
		memory:    d.Memory,
		protocols: d.Protocols,
		provider:  d.Provider,
		typing:    d.Typing,
		extractor: d.Extractor,
		matcher:   d.Matcher,
		assembler: d.Assembler,
		truncator: d.Truncator,
		counter:   d.Counter,
		cadence:   d.Cadence,
		config:    cfg,
		locks:     newUserLocks(),
		logger:    logger,
	}
}

// Chat runs a turn with the typing indicator raised. The indicator is
// cleared on every exit path, including cancellation of ctx.
func (o *Orchestrator) Chat(ctx context.Context, userID int64, text string) (*Result, error) {
	release, err := o.locks.acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("wait for user %d: %w", userID, err)
	}
	defer release()

	if err := o.typing.Set(ctx, userID, true); err != nil {
		o.logger.Warn("set typing", zap.Int64("user", userID), zap.Error(err))
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), typingResetTimeout)
		defer cancel()
		if err := o.typing.Set(rctx, userID, false); err != nil {
			o.logger.Error("reset typing", zap.Int64("user", userID), zap.Error(err))
		}
	}()

	return o.processTurn(ctx, userID, text)
}

// ProcessTurn runs a turn without touching the typing indicator.
func (o *Orchestrator) ProcessTurn(ctx context.Context, userID int64, text string) (*Result, error) {
	release, err := o.locks.acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("wait for user %d: %w", userID, err)
	}
	defer release()
	return o.processTurn(ctx, userID, text)
}

// processTurn expects the user's lock to be held.
func (o *Orchestrator) processTurn(ctx context.Context, userID int64, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	u, err := o.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	userTurn := &conversation.Turn{
		UserID:     userID,
		Role:       conversation.RoleUser,
		Content:    text,
		TokenCount: o.counter.Count(text),
	}
	if err := o.turns.Append(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("save user turn: %w", err)
	}

	onboarding := !u.OnboardingCompleted

	var (
		facts   []memory.Fact
		matched []protocol.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		facts, err = o.memory.PeekTopFacts(gctx, userID, o.config.FactsPerPrompt)
		return err
	})
	g.Go(func() error {
		active, err := o.protocols.ListActive(gctx)
		if err != nil {
			return fmt.Errorf("list protocols: %w", err)
		}
		matched = o.matcher.Match(text, active)
		return nil
	})
	if err := g.Wait(); err != nil {
		o.failed()
		return nil, fmt.Errorf("load context: %w", err)
	}

	instruction := o.assembler.BuildInstruction(u.Profile, facts, matched, onboarding)

	history, err := o.turns.Recent(ctx, userID, o.config.HistoryWindow)
	if err != nil {
		o.failed()
		return nil, fmt.Errorf("load history: %w", err)
	}
	window := o.truncator.Truncate(history, instruction)
	if len(window) < len(history) {
		metrics.HistoryTruncatedTotal.Inc()
	}

	resp, latency, err := o.generate(ctx, instruction, window)
	if err != nil {
		o.failed()
		o.logger.Error("error generating response",
			zap.Int64("user", userID),
			zap.String("provider", o.provider.Name()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	model := resp.Model
	if model == "" {
		model = o.provider.Model()
	}
	assistantTurn := &conversation.Turn{
		UserID:     userID,
		Role:       conversation.RoleAssistant,
		Content:    resp.Content,
		TokenCount: o.counter.Count(resp.Content),
		Metadata: &conversation.Metadata{
			Provider:      o.provider.Name(),
			Model:         model,
			MessagesUsed:  len(window),
			TotalMessages: len(history),
			TokensUsed:    resp.Usage.TotalTokens,
			ProtocolsUsed: protocol.Names(matched),
			MemoriesUsed:  len(facts),
			Onboarding:    onboarding,
			DemoMode:      resp.Demo,
			LatencyMs:     latency.Milliseconds(),
		},
	}
	if err := o.turns.Append(ctx, assistantTurn); err != nil {
		o.failed()
		return nil, fmt.Errorf("save assistant turn: %w", err)
	}

	if err := o.memory.Touch(ctx, facts); err != nil {
		o.logger.Warn("touch facts", zap.Int64("user", userID), zap.Error(err))
	}

	metrics.TurnsTotal.WithLabelValues("ok").Inc()

	if o.cadence.Tick(userID) {
		o.scheduleExtraction(ctx, userID, fmt.Sprintf("User: %s\nAssistant: %s", text, resp.Content))
	}

	return &Result{
		UserTurn:      *userTurn,
		AssistantTurn: *assistantTurn,
		Context: ContextUsed{
			ProtocolsUsed: assistantTurn.Metadata.ProtocolsUsed,
			MemoriesUsed:  len(facts),
		},
	}, nil
}

func (o *Orchestrator) generate(ctx context.Context, instruction string, window []conversation.Turn) (*provider.Response, time.Duration, error) {
	msgs := make([]provider.Message, len(window))
	for i, t := range window {
		msgs[i] = provider.Message{Role: string(t.Role), Content: t.Content}
	}

	gctx, cancel := context.WithTimeout(ctx, o.config.GenerationTimeout)
	defer cancel()

	start := time.Now()
	resp, err := o.provider.Generate(gctx, &provider.Request{
		System:      instruction,
		Messages:    msgs,
		MaxTokens:   o.truncator.Config().MaxResponseTokens,
		Temperature: o.config.Temperature,
	})
	latency := time.Since(start)
	metrics.GenerationDuration.WithLabelValues(o.provider.Name()).Observe(latency.Seconds())
	if err != nil {
		return nil, latency, err
	}
	metrics.GenerationTokens.WithLabelValues(o.provider.Name()).Add(float64(resp.Usage.TotalTokens))
	return resp, latency, nil
}

func (o *Orchestrator) failed() {
	metrics.TurnsTotal.WithLabelValues("failed").Inc()
}

// scheduleExtraction mines the exchange for facts in the background. It
// outlives the request but not ExtractionTimeout.
func (o *Orchestrator) scheduleExtraction(ctx context.Context, userID int64, excerpt string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.ExtractionTimeout)
		defer cancel()

		candidates := o.extractor.Extract(ectx, excerpt)
		if len(candidates) == 0 {
			return
		}

		release, err := o.locks.acquire(ectx, userID)
		if err != nil {
			o.logger.Warn("extraction abandoned", zap.Int64("user", userID), zap.Error(err))
			return
		}
		defer release()

		n := o.memory.Store(ectx, userID, candidates)
		metrics.FactsExtractedTotal.Add(float64(n))
		o.logger.Info("extracted memories",
			zap.Int64("user", userID),
			zap.Int("proposed", len(candidates)),
			zap.Int("stored", n))
	}()
}

// Wait blocks until background extraction has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
