package usecases

import (
	"testing"
	"time"

	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
)

func TestMatcher_PrefersDuration(t *testing.T) {
	m := DefaultMatcher()
	target := ports.Candidate{Title: "Blinding Lights", Artist: "The Weeknd", Duration: 200 * time.Second}

	candidates := []ports.Candidate{
		{ID: "long", Title: "The Weeknd - Blinding Lights (Extended Mix)", Duration: 320 * time.Second},
		{ID: "exact", Title: "Blinding Lights", Artist: "The Weeknd", Duration: 201 * time.Second},
	}

	i, score := m.Best(target, candidates)
	if i != 1 {
		t.Fatalf("expected exact duration match at index 1, got %d (score %.2f)", i, score)
	}
	if score < 0.99 {
		t.Errorf("expected near perfect score, got %.2f", score)
	}
}

func TestMatcher_TieGoesToEarliest(t *testing.T) {
	m := DefaultMatcher()
	target := ports.Candidate{Title: "Song", Artist: "Band", Duration: 180 * time.Second}
	same := ports.Candidate{Title: "Song", Artist: "Band", Duration: 180 * time.Second}

	i, _ := m.Best(target, []ports.Candidate{same, same, same})
	if i != 0 {
		t.Errorf("expected earliest candidate, got %d", i)
	}
}

func TestMatcher_BelowThreshold(t *testing.T) {
	m := DefaultMatcher()
	target := ports.Candidate{Title: "Clair de Lune", Artist: "Debussy", Duration: 300 * time.Second}
	candidates := []ports.Candidate{
		{Title: "Top 10 Goals", Artist: "Sports Channel", Duration: 600 * time.Second},
	}

	if i, score := m.Best(target, candidates); i != -1 {
		t.Errorf("expected no match, got %d (score %.2f)", i, score)
	}
	if i, _ := m.Best(target, nil); i != -1 {
		t.Errorf("expected no match without candidates, got %d", i)
	}
}

func TestMatcher_UnknownDurationUsesText(t *testing.T) {
	m := DefaultMatcher()
	target := ports.Candidate{Title: "Song Title", Artist: "Band"}
	c := ports.Candidate{Title: "Band - Song Title (Official Video)", Duration: 200 * time.Second}

	if score := m.Score(target, c); score < 0.99 {
		t.Errorf("expected full text score, got %.2f", score)
	}
}

func TestMatcher_DurationDecay(t *testing.T) {
	m := Matcher{DurationTolerance: 2 * time.Second}

	tests := []struct {
		diff time.Duration
		want float64
	}{
		{0, 1},
		{2 * time.Second, 1},
		{5 * time.Second, 0.5},
		{8 * time.Second, 0},
		{time.Minute, 0},
	}
	for _, tt := range tests {
		got := m.durationScore(180*time.Second, 180*time.Second+tt.diff)
		if got < tt.want-0.001 || got > tt.want+0.001 {
			t.Errorf("diff %v: expected %.2f, got %.2f", tt.diff, tt.want, got)
		}
	}
}

func TestBuildMatchQuery(t *testing.T) {
	tests := []struct {
		title, artist, want string
	}{
		{"Song", "Band", "Band Song"},
		{"Song", "Band, Other Band", "Band Song"},
		{"Song", "", "Song"},
	}
	for _, tt := range tests {
		if got := BuildMatchQuery(tt.title, tt.artist); got != tt.want {
			t.Errorf("BuildMatchQuery(%q, %q): expected %q, got %q", tt.title, tt.artist, tt.want, got)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("The Weeknd - Blinding Lights (Official Video) feat. Someone")
	want := []string{"weeknd", "blinding", "lights", "someone"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
