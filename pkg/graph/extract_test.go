package graph

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bookrel/backend/pkg/ai"
)

func TestNamesInSentence(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		want     []mention
	}{
		{
			name:     "multi word names",
			sentence: "Elizabeth Bennet met Mr. Darcy at the ball.",
			want:     []mention{{name: "Elizabeth Bennet"}, {name: "Mr. Darcy"}},
		},
		{
			name:     "sentence initial single word is marked",
			sentence: "Darcy was proud.",
			want:     []mention{{name: "Darcy", initial: true}},
		},
		{
			name:     "leading stopwords are dropped",
			sentence: "The Netherfield ball was loud.",
			want:     []mention{{name: "Netherfield"}},
		},
		{
			name:     "possessive ends the name",
			sentence: "She took Jane's hand and Lydia laughed.",
			want:     []mention{{name: "Jane"}, {name: "Lydia"}},
		},
		{
			name:     "bare title is not a name",
			sentence: "thank you, Sir.",
			want:     []mention(nil),
		},
		{
			name:     "all caps words are skipped",
			sentence: "CHAPTER IV began.",
			want:     []mention(nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := namesInSentence(tt.sentence)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("namesInSentence() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCooccurrenceExtractor_WeightsAndSpans(t *testing.T) {
	chapters := []Chapter{
		{Number: 1, Text: "Elizabeth Bennet met Mr. Darcy at the ball. Darcy was proud."},
		{Number: 2, Text: "Jane Bennet wrote to Elizabeth Bennet."},
		{Number: 3, Text: "Elizabeth Bennet danced with Mr. Darcy. Later she saw Mr. Darcy and Elizabeth Bennet again."},
	}

	facts, err := (&CooccurrenceExtractor{}).Extract(context.Background(), chapters)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d: %+v", len(facts), facts)
	}

	tests := []struct {
		source, target string
		from, to       int
		weight         float64
	}{
		{"Elizabeth Bennet", "Jane Bennet", 2, 2, 0.3333},
		{"Elizabeth Bennet", "Mr. Darcy", 1, 3, 1},
	}
	for i, tt := range tests {
		f := facts[i]
		if f.Source != tt.source || f.Target != tt.target {
			t.Errorf("fact %d: expected %s -> %s, got %s -> %s", i, tt.source, tt.target, f.Source, f.Target)
		}
		if f.Type != CoOccurType {
			t.Errorf("fact %d: expected type %s, got %s", i, CoOccurType, f.Type)
		}
		if f.FromChapter != tt.from || f.ToChapter != tt.to {
			t.Errorf("fact %d: expected span [%d, %d], got [%d, %d]", i, tt.from, tt.to, f.FromChapter, f.ToChapter)
		}
		if f.Weight == nil || *f.Weight != tt.weight {
			t.Errorf("fact %d: expected weight %v, got %v", i, tt.weight, f.Weight)
		}
	}
}

func TestCooccurrenceExtractor_AliasFolding(t *testing.T) {
	chapters := []Chapter{
		{Number: 1, Text: "Elizabeth Bennet spoke with Mr. Darcy. She told Darcy everything about Elizabeth Bennet."},
	}

	facts, err := (&CooccurrenceExtractor{}).Extract(context.Background(), chapters)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected surname to fold into one pair, got %+v", facts)
	}
	if facts[0].Source != "Elizabeth Bennet" || facts[0].Target != "Mr. Darcy" {
		t.Fatalf("unexpected pair %s -> %s", facts[0].Source, facts[0].Target)
	}
	if *facts[0].Weight != 1 {
		t.Fatalf("expected weight 1, got %v", *facts[0].Weight)
	}
}

func TestCooccurrenceExtractor_AmbiguousSurnameStays(t *testing.T) {
	chapters := []Chapter{
		{Number: 1, Text: "Jane Bennet and Elizabeth Bennet met Bennet at home."},
	}

	facts, err := (&CooccurrenceExtractor{}).Extract(context.Background(), chapters)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("expected 3 pairs, got %+v", facts)
	}
	if facts[0].Source != "Bennet" {
		t.Fatalf("expected lone surname to stay a separate node, got %s", facts[0].Source)
	}
}

func TestCooccurrenceExtractor_KnownNames(t *testing.T) {
	chapters := []Chapter{
		{Number: 1, Text: "홍길동은 임꺽정과 싸웠다. 전우치는 없었다."},
	}

	x := &CooccurrenceExtractor{KnownNames: []string{"홍길동", "임꺽정", " 전우치 "}}
	facts, err := x.Extract(context.Background(), chapters)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %+v", facts)
	}
	if facts[0].Source != "임꺽정" || facts[0].Target != "홍길동" {
		t.Fatalf("unexpected pair %s -> %s", facts[0].Source, facts[0].Target)
	}
}

func TestCooccurrenceExtractor_NoPairs(t *testing.T) {
	facts, err := (&CooccurrenceExtractor{}).Extract(context.Background(), []Chapter{{Number: 1, Text: "nobody here."}})
	if err != nil || facts != nil {
		t.Fatalf("expected no facts, got %v, %v", facts, err)
	}
}

func TestCooccurrenceExtractor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&CooccurrenceExtractor{}).Extract(ctx, []Chapter{{Number: 1, Text: "Alice met Bob."}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFactsFromResponse(t *testing.T) {
	res := &ai.ExtractionResponse{
		Relationships: []ai.ExtractedRelation{
			{Source: " 홍길동 ", Target: "임꺽정", Type: "close friend", Strength: 0.8},
			{Source: "임꺽정", Target: "전우치", Type: "", Strength: 3},
			{Source: "전우치", Target: "전우치", Type: "SELF", Strength: 1},
			{Source: "", Target: "홍길동", Type: "ALLY", Strength: 1},
			{Source: "홍길동", Target: "전우치", Type: "rival", Strength: -1},
		},
	}

	facts := factsFromResponse(7, res)
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %+v", facts)
	}

	tests := []struct {
		source, typ string
		weight      float64
	}{
		{"홍길동", "CLOSE_FRIEND", 0.8},
		{"임꺽정", "RELATED", 1},
		{"홍길동", "RIVAL", 0},
	}
	for i, tt := range tests {
		f := facts[i]
		if f.Source != tt.source || f.Type != tt.typ || *f.Weight != tt.weight {
			t.Errorf("fact %d: expected (%s, %s, %v), got (%s, %s, %v)", i, tt.source, tt.typ, tt.weight, f.Source, f.Type, *f.Weight)
		}
		if f.FromChapter != 7 || f.ToChapter != 7 {
			t.Errorf("fact %d: expected chapter 7, got [%d, %d]", i, f.FromChapter, f.ToChapter)
		}
	}

	if factsFromResponse(1, nil) != nil {
		t.Fatal("expected nil facts for nil response")
	}
}
