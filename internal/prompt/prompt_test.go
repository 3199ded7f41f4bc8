package prompt

import "testing"

func TestBuild(t *testing.T) {
	tests := []struct {
		name, query, context, instructions, want string
	}{
		{"plain", "What is total revenue?", "Total revenue: 100", "", "User query: What is total revenue?\nContext: Total revenue: 100"},
		{"with instructions", "q", "c", "Answer briefly.", "User query: q\nContext: c Answer briefly."},
		{"multi-line context", "q", "a\nb", "", "User query: q\nContext: a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Build(tt.query, tt.context, tt.instructions); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
