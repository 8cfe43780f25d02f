// Package categorize resolves a spending category for a transaction
// description and signed amount.
//
// Resolution runs through tiers: previous transactions of the same merchant,
// the ordered rule table, the coarse keyword table, amount magnitude and a
// final fallback. A tier that errors or panics is skipped; Categorize always
// returns a result.
package categorize

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/merchant"
	"github.com/dvloznov/finance-ingest/internal/metrics"
)

// Fallback is returned when no tier recognizes the transaction.
var Fallback = domain.CategorizationResult{
	CategoryID: Other,
	Confidence: 0.1,
	Source:     domain.SourceAmount,
}

// Categorizer is implemented by Engine and by test doubles.
type Categorizer interface {
	Categorize(ctx context.Context, description string, amount float64) domain.CategorizationResult
}

// Engine is safe for concurrent use once built.
type Engine struct {
	history HistoricalMatchStore
	rules   *ruleSet
	log     *zerolog.Logger
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	history    HistoricalMatchStore
	rules      []CategoryRule
	recipients []TransferRecipient
	log        *zerolog.Logger
}

// WithHistoricalStore enables the historical tier.
func WithHistoricalStore(store HistoricalMatchStore) Option {
	return func(c *engineConfig) { c.history = store }
}

// WithTransferRecipients replaces the personal transfer recipients.
func WithTransferRecipients(recipients []TransferRecipient) Option {
	return func(c *engineConfig) {
		if len(recipients) > 0 {
			c.recipients = recipients
		}
	}
}

// WithRules replaces the rule table.
func WithRules(rules []CategoryRule) Option {
	return func(c *engineConfig) { c.rules = rules }
}

// WithLogger sets the logger used for skipped tiers. Without it the logger
// is taken from the request context.
func WithLogger(l zerolog.Logger) Option {
	return func(c *engineConfig) { c.log = &l }
}

// NewEngine builds an Engine.
func NewEngine(opts ...Option) *Engine {
	cfg := engineConfig{
		rules:      DefaultRules,
		recipients: DefaultTransferRecipients,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		history: cfg.history,
		rules:   newRuleSet(cfg.rules, cfg.recipients),
		log:     cfg.log,
	}
}

type tierFunc func(ctx context.Context, description string, amount float64) (domain.CategorizationResult, bool, error)

// Categorize returns exactly one result for (description, amount).
func (e *Engine) Categorize(ctx context.Context, description string, amount float64) domain.CategorizationResult {
	res := e.resolve(ctx, description, amount)
	metrics.Categorized(string(res.Source))
	return res
}

func (e *Engine) resolve(ctx context.Context, description string, amount float64) domain.CategorizationResult {
	if res, ok := e.runTier(ctx, "historical", e.historicalTier, description, amount); ok {
		return res
	}

	// A catch-all income outcome from the rules is kept aside so that the
	// keyword table gets a chance to name the income more precisely.
	var deferred *domain.CategorizationResult
	if out, ok := e.runRuleTier(ctx, description, amount); ok {
		res := domain.CategorizationResult{
			CategoryID: out.CategoryID,
			Confidence: hitConfidence(out.Hits),
			Source:     domain.SourceRules,
		}
		if !out.Generic {
			return res
		}
		deferred = &res
	}

	if res, ok := e.runTier(ctx, "keywords", keywordTier, description, amount); ok {
		return res
	}
	if deferred != nil {
		return *deferred
	}
	if res, ok := e.runTier(ctx, "amount", amountTier, description, amount); ok {
		return res
	}
	return Fallback
}

func (e *Engine) historicalTier(ctx context.Context, description string, _ float64) (domain.CategorizationResult, bool, error) {
	if e.history == nil {
		return domain.CategorizationResult{}, false, nil
	}
	key := merchant.NormalizeKey(description)
	if key == "" {
		return domain.CategorizationResult{}, false, nil
	}
	match, err := e.history.FindExactMatch(ctx, key)
	if err != nil {
		return domain.CategorizationResult{}, false, fmt.Errorf("historicalTier: lookup %q: %w", key, err)
	}
	if match == nil || match.CategoryID == "" {
		return domain.CategorizationResult{}, false, nil
	}
	return domain.CategorizationResult{
		CategoryID: match.CategoryID,
		Confidence: 1.0,
		Source:     domain.SourceHistorical,
	}, true, nil
}

func keywordTier(_ context.Context, description string, _ float64) (domain.CategorizationResult, bool, error) {
	id, conf, ok := matchKeywords(description)
	if !ok {
		return domain.CategorizationResult{}, false, nil
	}
	return domain.CategorizationResult{CategoryID: id, Confidence: conf, Source: domain.SourceKeywords}, true, nil
}

func amountTier(_ context.Context, _ string, amount float64) (domain.CategorizationResult, bool, error) {
	id, conf, ok := matchAmount(amount)
	if !ok {
		return domain.CategorizationResult{}, false, nil
	}
	return domain.CategorizationResult{CategoryID: id, Confidence: conf, Source: domain.SourceAmount}, true, nil
}

// runRuleTier evaluates the rule table behind the same recovery as the
// other tiers.
func (e *Engine) runRuleTier(ctx context.Context, description string, amount float64) (out ruleOutcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.tierFailed(ctx, "rules", fmt.Errorf("panic: %v", r))
			out, ok = ruleOutcome{}, false
		}
	}()
	return e.rules.match(description, amount)
}

func (e *Engine) runTier(ctx context.Context, name string, fn tierFunc, description string, amount float64) (res domain.CategorizationResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.tierFailed(ctx, name, fmt.Errorf("panic: %v", r))
			res, ok = domain.CategorizationResult{}, false
		}
	}()

	res, ok, err := fn(ctx, description, amount)
	if err != nil {
		e.tierFailed(ctx, name, err)
		return domain.CategorizationResult{}, false
	}
	return res, ok
}

func (e *Engine) tierFailed(ctx context.Context, tier string, err error) {
	metrics.TierFailed(tier)
	log := logger.FromContext(ctx)
	if e.log != nil {
		log = *e.log
	}
	log.Warn().Err(err).Str("tier", tier).Msg("Categorization tier skipped")
}
