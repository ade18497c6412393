package textmatch

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and punctuation",
			input: `The Award, "Best Paper"!`,
			want:  "the award best paper",
		},
		{
			name:  "collapse whitespace",
			input: "  multiple   spaces\t and\nnewlines  ",
			want:  "multiple spaces and newlines",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only",
			input: "   \t\n ",
			want:  "",
		},
		{
			name:  "punctuation only",
			input: ".,;:!?",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected normalized text: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	tests := []struct {
		name      string
		longer    string
		shorter   string
		threshold float64
		want      bool
	}{
		{
			name:      "literal substring",
			longer:    "Dr. John Smith received the National Medal of Science",
			shorter:   "John Smith",
			threshold: 0.9,
			want:      true,
		},
		{
			name:      "word overlap above threshold",
			longer:    "the committee awarded the medal to smith in 2019",
			shorter:   "smith awarded medal 2019 paris",
			threshold: 0.8,
			want:      true,
		},
		{
			name:      "word overlap below threshold",
			longer:    "completely different subject matter here",
			shorter:   "smith awarded the medal",
			threshold: 0.9,
			want:      false,
		},
		{
			name:      "empty shorter",
			longer:    "some text",
			shorter:   "",
			threshold: 0.9,
			want:      false,
		},
		{
			name:      "case and punctuation insensitive",
			longer:    "ENTITY NAME: John Smith",
			shorter:   "entity name john smith",
			threshold: 0.9,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Contains(tt.longer, tt.shorter, tt.threshold)
			if got != tt.want {
				t.Fatalf("Contains(%q, %q, %v) = %v, want %v", tt.longer, tt.shorter, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "identical after normalization",
			a:    "The Award!",
			b:    "the award",
			want: 1.0,
		},
		{
			name: "disjoint word sets",
			a:    "alpha beta gamma",
			b:    "delta epsilon",
			want: 0.0,
		},
		{
			name: "half overlap",
			a:    "alpha beta",
			b:    "beta gamma",
			want: 1.0 / 3.0,
		},
		{
			name: "empty input",
			a:    "",
			b:    "anything",
			want: 0.0,
		},
		{
			name: "both empty",
			a:    "",
			b:    "",
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got != tt.want {
				t.Fatalf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	a := "the national medal of science"
	b := "national science medal winners"
	if Similarity(a, b) != Similarity(b, a) {
		t.Fatal("expected similarity to be symmetric")
	}
}
