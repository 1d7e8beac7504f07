// Package pipeline orchestrates a full match run: keyword extraction,
// paginated fetching, parsing, scoring, deduplication, ranking and filtering.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nkhaldi/jobradar/internal/jobboard"
	"github.com/nkhaldi/jobradar/internal/keywords"
	"github.com/nkhaldi/jobradar/internal/profile"
	"github.com/nkhaldi/jobradar/internal/scoring"
	"github.com/nkhaldi/jobradar/internal/utils"
)

// Config carries every tunable of a run. Defaults are explicit here instead
// of being scattered as ambient constants, so tests can override them.
type Config struct {
	MaxQueries  int     `mapstructure:"max-queries"`
	PageCap     int     `mapstructure:"page-cap"`
	Concurrency int     `mapstructure:"concurrency"`
	MinScore    float64 `mapstructure:"min-score"`
	MaxResults  int     `mapstructure:"max-results"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxQueries:  10,
		PageCap:     3,
		Concurrency: 3,
		MinScore:    30.0,
		MaxResults:  20,
	}
}

// Source is one job board to search, wrapped in its retrying fetcher.
type Source struct {
	Name    string
	Fetcher *jobboard.Fetcher
}

// Result is the terminal report of a run. A zero-match result still reports
// how many queries were blocked or errored, so "no jobs matched" stays
// distinguishable from "retrieval was blocked".
type Result struct {
	RunID        string                   `json:"run_id"`
	Matches      []*scoring.ScoredPosting `json:"matches"`
	TotalFetched int                      `json:"total_fetched"`
	TotalBlocked int                      `json:"total_blocked"`
	TotalErrored int                      `json:"total_errored"`
	TotalDropped int                      `json:"total_dropped"`
	QueryTerms   []string                 `json:"query_terms_used"`
	SourceCounts map[string]int           `json:"source_counts,omitempty"`
	Failures     []string                 `json:"failures,omitempty"`
}

// MatchedPostings returns the matches as a plain postings collection for
// reporting and dumping.
func (r *Result) MatchedPostings() *jobboard.Postings {
	postings := &jobboard.Postings{}
	for _, match := range r.Matches {
		postings.Items = append(postings.Items, match.Posting)
	}
	return postings
}

// Pipeline owns the lifecycle of all transient run entities. Each run is
// self-contained and independently re-runnable.
type Pipeline struct {
	cfg       *Config
	extractor *keywords.Extractor
	engine    *scoring.Engine
	sources   []*Source
	logger    *zap.Logger
}

func New(cfg *Config, engine *scoring.Engine, sources []*Source, log *zap.Logger) *Pipeline {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	} else {
		c := *cfg
		cfg = &c
	}
	// A partially populated config must not stall the worker pool or skip
	// fetching outright.
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.PageCap < 1 {
		cfg.PageCap = defaults.PageCap
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Pipeline{
		cfg:       cfg,
		extractor: keywords.NewExtractor(cfg.MaxQueries, log),
		engine:    engine,
		sources:   sources,
		logger:    log,
	}
}

type fetchTask struct {
	source *Source
	query  keywords.Query
}

// collector accumulates postings from concurrent fetch tasks. Append order
// under the mutex defines the first-seen order used for ranking tie-breaks.
type collector struct {
	mu       sync.Mutex
	postings []*jobboard.Posting
	fetched  int
	blocked  int
	errored  int
	dropped  int
	failures error
}

func (c *collector) add(posting *jobboard.Posting) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postings = append(c.postings, posting)
}

func (c *collector) recordFailure(kind jobboard.OutcomeKind, source, term string, page int, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kind == jobboard.OutcomeBlocked {
		c.blocked++
	} else {
		c.errored++
	}
	c.failures = multierr.Append(c.failures,
		fmt.Errorf("%s: query %q page %d: %s: %s", source, term, page, kind, detail))
}

// Run executes the whole pipeline for one profile. Only an empty profile is a
// run-level failure; every per-query and per-posting failure is recorded in
// the result and the run keeps going.
func (p *Pipeline) Run(ctx context.Context, prof *profile.Profile) (*Result, error) {
	plan, err := p.extractor.Extract(prof)
	if err != nil {
		return nil, fmt.Errorf("extracting keywords: %w", err)
	}

	p.logger.Info("extracted query plan", zap.Strings("terms", plan.Terms()))

	col := &collector{}
	p.fetchAll(ctx, plan, col)

	p.logger.Info("fetching completed",
		zap.Int("postings", len(col.postings)),
		zap.Int("fetched_rows", col.fetched),
		zap.Int("blocked_queries", col.blocked),
		zap.Int("errored_queries", col.errored),
		zap.Int("dropped_rows", col.dropped),
	)

	scored := make([]*scoring.ScoredPosting, 0, len(col.postings))
	for _, posting := range col.postings {
		scored = append(scored, p.engine.Score(prof, posting))
	}

	deduped := Dedup(scored)
	p.logger.Info("deduplicated",
		zap.Int("initial", len(scored)),
		zap.Int("dropped", len(scored)-len(deduped)),
		zap.Int("left", len(deduped)),
	)

	Rank(deduped)

	kept := Filter(deduped, p.cfg.MinScore, p.cfg.MaxResults)
	p.logger.Info("filtered",
		zap.Float64("min_score", p.cfg.MinScore),
		zap.Int("max_results", p.cfg.MaxResults),
		zap.Int("initial", len(deduped)),
		zap.Int("dropped", len(deduped)-len(kept)),
		zap.Int("left", len(kept)),
	)

	result := &Result{
		RunID:        uuid.NewString(),
		Matches:      kept,
		TotalFetched: col.fetched,
		TotalBlocked: col.blocked,
		TotalErrored: col.errored,
		TotalDropped: col.dropped,
		QueryTerms:   plan.Terms(),
	}
	if postings := result.MatchedPostings(); postings.Len() > 0 {
		result.SourceCounts = postings.CountBySource()
	}
	for _, failure := range multierr.Errors(col.failures) {
		result.Failures = append(result.Failures, failure.Error())
	}

	return result, nil
}

// fetchAll runs all (source, query) tasks through a bounded worker pool.
// Queries are independent and read-only against the boards, so fan-out is
// safe; the collector is the only shared state.
func (p *Pipeline) fetchAll(ctx context.Context, plan *keywords.QueryPlan, col *collector) {
	tasks := make(chan fetchTask)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				p.fetchQuery(ctx, task, col)
			}
		}()
	}

	for _, source := range p.sources {
		for _, query := range plan.Queries {
			tasks <- fetchTask{source: source, query: query}
		}
	}
	close(tasks)

	wg.Wait()
}

// fetchQuery walks the pages of one query on one source until the page cap,
// the last page, or a terminal failure.
func (p *Pipeline) fetchQuery(ctx context.Context, task fetchTask, col *collector) {
	parser := jobboard.NewParser(task.source.Name)

	for page := 0; page < p.cfg.PageCap; page++ {
		outcome := task.source.Fetcher.FetchPage(ctx, task.query.Term, page)

		if outcome.Kind != jobboard.OutcomeSuccess {
			col.recordFailure(outcome.Kind, task.source.Name, task.query.Term, page, outcome.Detail)
			return
		}

		col.mu.Lock()
		col.fetched += len(outcome.Postings)
		col.mu.Unlock()

		for _, raw := range outcome.Postings {
			posting, err := parser.Parse(raw)
			if err != nil {
				col.mu.Lock()
				col.dropped++
				col.mu.Unlock()
				p.logger.Debug("dropping unparsable posting",
					zap.String("source", task.source.Name),
					zap.String("description", utils.TruncateForLog(raw.Description, 120)),
					zap.Error(err),
				)
				continue
			}
			col.add(posting)
		}

		if !outcome.HasNextPage {
			return
		}
	}
}

// Dedup collapses postings with identical IDs, keeping the higher-scored
// instance at the first-seen position. It is a no-op on already-deduplicated
// input.
func Dedup(items []*scoring.ScoredPosting) []*scoring.ScoredPosting {
	index := make(map[string]int, len(items))
	out := make([]*scoring.ScoredPosting, 0, len(items))

	for _, item := range items {
		id := item.Posting.ID
		if at, ok := index[id]; ok {
			if item.Score > out[at].Score {
				out[at] = item
			}
			continue
		}
		index[id] = len(out)
		out = append(out, item)
	}

	return out
}

// Rank sorts in place: score descending, ties by skill then domain sub-score,
// first-seen order preserved beyond that.
func Rank(items []*scoring.ScoredPosting) {
	sort.SliceStable(items, func(i, j int) bool {
		return scoring.Compare(items[i], items[j]) < 0
	})
}

// Filter drops postings below minScore and truncates to maxResults. It
// assumes the input is already ranked.
func Filter(items []*scoring.ScoredPosting, minScore float64, maxResults int) []*scoring.ScoredPosting {
	kept := make([]*scoring.ScoredPosting, 0, len(items))
	for _, item := range items {
		if item.Score < minScore {
			continue
		}
		kept = append(kept, item)
	}

	if maxResults > 0 && len(kept) > maxResults {
		kept = kept[:maxResults]
	}
	return kept
}
