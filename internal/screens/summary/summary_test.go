package summary

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/progress"
	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/settlement"
)

func testReward() *settlement.Reward {
	return &settlement.Reward{
		LevelID:      1,
		NewBalance:   10000,
		MoneyAwarded: 10000,
		Badge:        progress.Badge{LevelID: 1, BadgeName: "Market Rookie", EarnedAt: time.Now()},
	}
}

func TestSummaryScreen_Title(t *testing.T) {
	s := New(testReward(), levels.MustGet(1))
	if s.Title() != "Level Complete" {
		t.Errorf("Title = %q, want %q", s.Title(), "Level Complete")
	}
}

func TestSummaryScreen_Display(t *testing.T) {
	s := New(testReward(), levels.MustGet(1))
	view := s.View(80, 24)
	if !strings.Contains(view, "Market Rookie") {
		t.Error("expected badge name in summary view")
	}
	if !strings.Contains(view, "₹10,000") {
		t.Error("expected formatted reward in summary view")
	}
	if !strings.Contains(view, levels.MustGet(2).Title) {
		t.Error("expected the unlocked level to be announced")
	}
}

func TestSummaryScreen_AlreadyCompleted(t *testing.T) {
	r := testReward()
	r.MoneyAwarded = 0
	r.AlreadyCompleted = true
	view := New(r, levels.MustGet(1)).View(80, 24)
	if !strings.Contains(view, "Already claimed") {
		t.Error("expected already-claimed note")
	}
}

func TestSummaryScreen_EnterPopsToRoot(t *testing.T) {
	s := New(testReward(), levels.MustGet(1))
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command on Enter")
	}
	if _, ok := cmd().(router.PopToRootMsg); !ok {
		t.Errorf("expected PopToRootMsg, got %T", cmd())
	}
}

func TestSummaryScreen_Navigation_Esc(t *testing.T) {
	s := New(testReward(), levels.MustGet(1))
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd == nil {
		t.Error("expected a command on Esc")
	}
}

func TestSummaryScreen_NilReward(t *testing.T) {
	s := New(nil, levels.MustGet(1))
	if s.View(80, 24) != "" {
		t.Error("expected empty view without a reward")
	}
}
