package source

import "testing"

func TestExtractTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  string
	}{
		{"New LLM released", "LLM"},
		{"Advances in language models", "LLM"},
		{"Vision transformers explained", "Computer Vision"},
		{"Robots in the warehouse", "Robotics"},
		{"EU AI regulation update", "AI Policy"},
		{"New policy framework", "AI Policy"},
		{"Agentic workflows", "Agents"},
		{"Quarterly earnings report", ""},
		// First rule wins, no multi-tagging
		{"LLM agents with vision", "LLM"},
		{"Robot vision systems", "Computer Vision"},
		// Matching is case-insensitive
		{"LANGUAGE MODEL scaling laws", "LLM"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			t.Parallel()

			if got := ExtractTopic(tt.title); got != tt.want {
				t.Errorf("ExtractTopic(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}
