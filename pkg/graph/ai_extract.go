package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gUtil "github.com/bookrel/backend/internal/util"
	"github.com/bookrel/backend/pkg/ai"
	"github.com/bookrel/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// AIExtractor asks a language model for the characters and relationships of
// each chapter. Chapters are cut into token-bounded units; each unit is one
// request.
//
// An AIExtractor should be created using NewAIExtractor.
type AIExtractor struct {
	client     ai.GraphAIClient
	encoder    string
	maxTokens  int
	parallel   int
	maxRetries int
	dedupe     bool
	opts       []ai.GenerateOption
}

// NewAIExtractorParams configures an AIExtractor.
//
// TokenEncoder is the tiktoken encoding used to size units ("o200k_base"
// when empty). MaxTokens bounds a unit. ParallelAiRequests bounds concurrent
// model calls. Dedupe enables a final model pass that folds aliases.
// Thinking is passed to models that support a reasoning effort.
type NewAIExtractorParams struct {
	Client             ai.GraphAIClient
	TokenEncoder       string
	MaxTokens          int
	ParallelAiRequests int
	MaxRetries         int
	Dedupe             bool
	Thinking           string
}

// NewAIExtractor creates an AIExtractor.
//
// Example:
//
//	x, err := graph.NewAIExtractor(graph.NewAIExtractorParams{
//		Client:             aiClient,
//		MaxTokens:          4000,
//		ParallelAiRequests: 8,
//	})
func NewAIExtractor(params NewAIExtractorParams) (*AIExtractor, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("ai client is nil")
	}
	x := &AIExtractor{
		client:     params.Client,
		encoder:    params.TokenEncoder,
		maxTokens:  params.MaxTokens,
		parallel:   params.ParallelAiRequests,
		maxRetries: params.MaxRetries,
		dedupe:     params.Dedupe,
	}
	if x.encoder == "" {
		x.encoder = "o200k_base"
	}
	if x.maxTokens <= 0 {
		x.maxTokens = 4000
	}
	if x.parallel <= 0 {
		x.parallel = 4
	}
	if x.maxRetries <= 0 {
		x.maxRetries = 3
	}

	x.opts = []ai.GenerateOption{
		ai.WithSystemPrompts(ai.ExtractSystemPrompt),
		ai.WithTemperature(0.1),
		ai.WithMaxTokens(x.maxTokens),
	}
	if params.Thinking != "" {
		x.opts = append(x.opts, ai.WithThinking(params.Thinking))
	}
	return x, nil
}

func (x *AIExtractor) Extract(ctx context.Context, chapters []Chapter) ([]Fact, error) {
	var units []processUnit
	for _, ch := range chapters {
		u, err := transformIntoUnits(ch, x.encoder, x.maxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to split chapter %d into units: %w", ch.Number, err)
		}
		units = append(units, u...)
	}

	logger.Debug("[Graph] Extracting with model", "chapters", len(chapters), "units", len(units))

	if err := x.client.LoadModel(ctx, x.opts...); err != nil {
		logger.Warn("[Graph] Failed to preload model", "err", err)
	}

	facts := make([]Fact, 0)
	mu := sync.Mutex{}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(x.parallel)
	for _, unit := range units {
		eg.Go(func() error {
			res, err := ai.CallExtractAI(gCtx, unit.chapter, unit.text, x.client, x.maxRetries, x.opts...)
			if err != nil {
				return fmt.Errorf("failed to extract relationships from chapter %d: %w", unit.chapter, err)
			}

			unitFacts := factsFromResponse(unit.chapter, res)
			mu.Lock()
			facts = append(facts, unitFacts...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if x.dedupe {
		aliases, err := x.aliases(ctx, facts)
		if err != nil {
			logger.Warn("[Graph] Alias dedupe failed, keeping names as extracted", "err", err)
		} else {
			for i := range facts {
				if c, ok := aliases[facts[i].Source]; ok {
					facts[i].Source = c
				}
				if c, ok := aliases[facts[i].Target]; ok {
					facts[i].Target = c
				}
			}
		}
	}

	return facts, nil
}

func factsFromResponse(chapter int, res *ai.ExtractionResponse) []Fact {
	if res == nil {
		return nil
	}
	facts := make([]Fact, 0, len(res.Relationships))
	for _, r := range res.Relationships {
		src := gUtil.CollapseWhitespace(r.Source)
		dst := gUtil.CollapseWhitespace(r.Target)
		if src == "" || dst == "" || src == dst {
			continue
		}
		typ := strings.ToUpper(gUtil.CollapseWhitespace(r.Type))
		typ = strings.ReplaceAll(typ, " ", "_")
		if typ == "" {
			typ = "RELATED"
		}
		w := min(max(r.Strength, 0), 1)
		facts = append(facts, Fact{
			Source:      src,
			Target:      dst,
			Type:        typ,
			FromChapter: chapter,
			ToChapter:   chapter,
			Weight:      &w,
		})
	}
	return facts
}

func (x *AIExtractor) aliases(ctx context.Context, facts []Fact) (map[string]string, error) {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, f := range facts {
		for _, n := range []string{f.Source, f.Target} {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				names = append(names, n)
			}
		}
	}

	aliases := make(map[string]string)
	for start := 0; start < len(names); start += ai.DedupeBatchSize {
		end := min(start+ai.DedupeBatchSize, len(names))
		res, err := ai.CallDedupeAI(ctx, names[start:end], x.client, x.maxRetries)
		if err != nil {
			return nil, err
		}
		for _, group := range res.Duplicates {
			canonical := gUtil.CollapseWhitespace(group.Name)
			if canonical == "" {
				continue
			}
			for _, n := range group.Entities {
				if n = gUtil.CollapseWhitespace(n); n != "" && n != canonical {
					aliases[n] = canonical
				}
			}
		}
	}
	return aliases, nil
}
