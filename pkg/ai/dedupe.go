package ai

import (
	"context"
	"fmt"
	"strings"

	gUtil "github.com/bookrel/backend/internal/util"
)

const DedupeBatchSize = 300

// DuplicateGroup represents a group of names for one character with a
// canonical name.
type DuplicateGroup struct {
	Name     string   `json:"canonicalName" jsonschema_description:"The final name for the character."`
	Entities []string `json:"entities" jsonschema_description:"List of names that refer to the same character."`
}

// DuplicatesResponse is the response from the AI dedupe call
type DuplicatesResponse struct {
	Duplicates []DuplicateGroup `json:"duplicates" jsonschema_description:"List of groups of names for the same character."`
}

// CallDedupeAI asks the model which character names are aliases of each
// other.
func CallDedupeAI(
	ctx context.Context,
	names []string,
	aiClient GraphAIClient,
	maxRetries int,
) (*DuplicatesResponse, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if aiClient == nil {
		return nil, fmt.Errorf("ai client is nil")
	}

	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = gUtil.CollapseWhitespace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	if len(cleaned) < 2 {
		return &DuplicatesResponse{Duplicates: []DuplicateGroup{}}, nil
	}
	if len(cleaned) > DedupeBatchSize {
		return nil, fmt.Errorf("dedupe batch size exceeded: %d > %d", len(cleaned), DedupeBatchSize)
	}

	var data strings.Builder
	data.WriteString("Characters:\n")
	for _, n := range cleaned {
		fmt.Fprintf(&data, "- %s\n", n)
	}
	prompt := fmt.Sprintf(DedupePrompt, data.String())

	var res DuplicatesResponse
	err := gUtil.RetryErrWithContext(ctx, maxRetries, func(ctx context.Context) error {
		return aiClient.GenerateCompletionWithFormat(
			ctx, "dedupe_characters", "Merge aliases of the same character.", prompt, &res,
		)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ExtractedRelation is one relationship reported by the model.
type ExtractedRelation struct {
	Source   string  `json:"source" jsonschema_description:"Name of the source character."`
	Target   string  `json:"target" jsonschema_description:"Name of the target character."`
	Type     string  `json:"type" jsonschema_description:"Upper case relationship type."`
	Strength float64 `json:"strength" jsonschema_description:"Strength between 0 and 1."`
}

// ExtractionResponse is the structured output of one chapter extraction.
type ExtractionResponse struct {
	Characters    []string            `json:"characters" jsonschema_description:"Names of characters appearing in the chapter."`
	Relationships []ExtractedRelation `json:"relationships" jsonschema_description:"Relationships shown in the chapter."`
}

// CallExtractAI extracts characters and relationships from one chapter.
func CallExtractAI(
	ctx context.Context,
	chapter int,
	text string,
	aiClient GraphAIClient,
	maxRetries int,
	opts ...GenerateOption,
) (*ExtractionResponse, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("ai client is nil")
	}
	prompt := fmt.Sprintf(ExtractRelationsPrompt, chapter, text)

	return gUtil.RetryWithContext(ctx, maxRetries, func(ctx context.Context) (*ExtractionResponse, error) {
		var res ExtractionResponse
		if err := aiClient.GenerateCompletionWithFormat(
			ctx, "extract_relations", "Characters and relationships of a chapter.", prompt, &res, opts...,
		); err != nil {
			return nil, err
		}
		return &res, nil
	})
}
