package graph

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pkoukk/tiktoken-go"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "multiple sentences",
			text: "Hello world. This is a test! How are you?",
			want: []string{
				"Hello world.",
				"This is a test!",
				"How are you?",
			},
		},
		{
			name: "sentences with empty lines",
			text: "First sentence.\n\nSecond sentence.\n\nThird sentence.",
			want: []string{
				"First sentence.",
				"Second sentence.",
				"Third sentence.",
			},
		},
		{
			name: "multi-line sentence",
			text: "This is a long\nsentence that spans\nmultiple lines.",
			want: []string{"This is a long sentence that spans multiple lines."},
		},
		{
			name: "blank line ends an unfinished sentence",
			text: "A heading without a period\n\nThe text below it.",
			want: []string{"A heading without a period", "The text below it."},
		},
		{
			name: "honorifics do not end a sentence",
			text: "Mr. Darcy bowed. Mrs. Bennet fainted.",
			want: []string{"Mr. Darcy bowed.", "Mrs. Bennet fainted."},
		},
		{
			name: "initials do not end a sentence",
			text: "J. Smith arrived. So did I. Then he left.",
			want: []string{"J. Smith arrived.", "So did I.", "Then he left."},
		},
		{
			name: "closing quotes stay with their sentence",
			text: "“Stop.” He left. She said 'no.' Then silence.",
			want: []string{"“Stop.”", "He left.", "She said 'no.'", "Then silence."},
		},
		{
			name: "repeated punctuation",
			text: "What?! Really... Yes.",
			want: []string{"What?!", "Really...", "Yes."},
		},
		{
			name: "numbered item",
			text: "Step 1. Open the door.",
			want: []string{"Step 1. Open the door."},
		},
		{
			name: "korean text",
			text: "홍길동이 왔다. 임꺽정도 왔다.",
			want: []string{"홍길동이 왔다.", "임꺽정도 왔다."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitIntoSentences() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSplitIntoChapters(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Chapter
	}{
		{
			name: "blank text",
			text: "  \n\t ",
			want: nil,
		},
		{
			name: "no headers is one chapter",
			text: "Just a short story.",
			want: []Chapter{{Number: 1, Text: "Just a short story."}},
		},
		{
			name: "roman headers",
			text: "CHAPTER I\nOne.\nCHAPTER II\nTwo.",
			want: []Chapter{
				{Number: 1, Text: "CHAPTER I\nOne."},
				{Number: 2, Text: "CHAPTER II\nTwo."},
			},
		},
		{
			name: "prologue is its own part",
			text: "A preface.\n\nChapter 1\nOne.\n\nChapter 2\nTwo.",
			want: []Chapter{
				{Number: 1, Text: "A preface."},
				{Number: 2, Text: "Chapter 1\nOne."},
				{Number: 3, Text: "Chapter 2\nTwo."},
			},
		},
		{
			name: "header with a title",
			text: "  CHAPTER XII. The Ball\nThey danced.",
			want: []Chapter{{Number: 1, Text: "CHAPTER XII. The Ball\nThey danced."}},
		},
		{
			name: "words starting with numerals are not headers",
			text: "Chapter Ivory was a ship.\nIt sank.",
			want: []Chapter{{Number: 1, Text: "Chapter Ivory was a ship.\nIt sank."}},
		},
		{
			name: "header must start the line",
			text: "He read chapter 3 twice.",
			want: []Chapter{{Number: 1, Text: "He read chapter 3 twice."}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitIntoChapters(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitIntoChapters() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestStripGutenbergBoilerplate(t *testing.T) {
	text := strings.Join([]string{
		"The Project Gutenberg eBook of Pride and Prejudice",
		"*** START OF THE PROJECT GUTENBERG EBOOK PRIDE AND PREJUDICE ***",
		"",
		"CHAPTER I",
		"It is a truth universally acknowledged.",
		"",
		"*** END OF THE PROJECT GUTENBERG EBOOK PRIDE AND PREJUDICE ***",
		"Full license text.",
	}, "\n")

	if !hasGutenbergMarkers(text) {
		t.Fatal("expected markers to be detected")
	}
	got := stripGutenbergBoilerplate(text)
	want := "CHAPTER I\nIt is a truth universally acknowledged."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	onlyStart := "*** START OF THIS PROJECT GUTENBERG EBOOK X ***\nBody."
	if hasGutenbergMarkers(onlyStart) {
		t.Fatal("expected a single marker not to count as boilerplate")
	}
	if got := stripGutenbergBoilerplate(onlyStart); got != "Body." {
		t.Fatalf("expected %q, got %q", "Body.", got)
	}

	plain := "No markers at all."
	if got := stripGutenbergBoilerplate(plain); got != plain {
		t.Fatalf("expected text unchanged, got %q", got)
	}
}

func TestTransformIntoUnits(t *testing.T) {
	if _, err := tiktoken.GetEncoding("o200k_base"); err != nil {
		t.Skipf("tiktoken encoding not available: %v", err)
	}

	chapter := Chapter{Number: 4, Text: "First sentence here. Second sentence here. Third sentence here."}

	units, err := transformIntoUnits(chapter, "o200k_base", 1000)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].chapter != 4 || units[0].start != 0 || units[0].end != 3 {
		t.Fatalf("unexpected unit bounds: %+v", units[0])
	}
	if units[0].text != chapter.Text {
		t.Fatalf("expected unit text %q, got %q", chapter.Text, units[0].text)
	}

	units, err = transformIntoUnits(chapter, "o200k_base", 1)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("expected one unit per sentence, got %d", len(units))
	}
	seen := make(map[string]struct{})
	for i, u := range units {
		if u.start != i || u.end != i+1 {
			t.Errorf("unit %d: expected [%d, %d), got [%d, %d)", i, i, i+1, u.start, u.end)
		}
		if _, dup := seen[u.id]; dup || u.id == "" {
			t.Errorf("unit %d: expected a unique id, got %q", i, u.id)
		}
		seen[u.id] = struct{}{}
	}

	units, err = transformIntoUnits(Chapter{Number: 1, Text: "  "}, "o200k_base", 10)
	if err != nil || units != nil {
		t.Fatalf("expected no units for blank chapter, got %v, %v", units, err)
	}
}
