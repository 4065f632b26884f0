package api

import "time"

// LevelProgress is the backend's view of one level.
type LevelProgress struct {
	TasksCompleted []int       `json:"tasksCompleted"`
	QuizAnswers    map[int]int `json:"quizAnswers,omitempty"`
	QuizScore      int         `json:"quizScore"`
	TotalQuestions int         `json:"totalQuestions"`
	IsCompleted    bool        `json:"isCompleted"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
}

// Badge is an earned level badge.
type Badge struct {
	LevelID   int       `json:"levelId"`
	BadgeName string    `json:"badgeName"`
	EarnedAt  time.Time `json:"earnedAt"`
}

// Progress is the response of GET /progress.
type Progress struct {
	CurrentLevel int                   `json:"currentLevel"`
	TotalBalance int                   `json:"totalBalance"`
	Progress     map[int]LevelProgress `json:"progress"`
	Badges       []Badge               `json:"badges"`
}

// LevelUpdate is a partial update of one level. Nil fields are omitted and
// left unchanged by the backend.
type LevelUpdate struct {
	TasksCompleted *[]int       `json:"tasksCompleted,omitempty"`
	QuizAnswers    *map[int]int `json:"quizAnswers,omitempty"`
	QuizScore      *int         `json:"quizScore,omitempty"`
	TotalQuestions *int         `json:"totalQuestions,omitempty"`
}

// TasksUpdate builds an update that only replaces the completed tasks.
func TasksUpdate(tasks []int) LevelUpdate {
	if tasks == nil {
		tasks = []int{}
	}
	return LevelUpdate{TasksCompleted: &tasks}
}

// QuizUpdate builds an update carrying a quiz attempt.
func QuizUpdate(answers map[int]int, score, total int) LevelUpdate {
	if answers == nil {
		answers = map[int]int{}
	}
	return LevelUpdate{QuizAnswers: &answers, QuizScore: &score, TotalQuestions: &total}
}

// CompleteRequest is the body of POST /progress/level/{id}/complete.
type CompleteRequest struct {
	RewardMoney int    `json:"rewardMoney"`
	BadgeName   string `json:"badgeName"`
}

// CompleteResponse is the authoritative result of a level completion.
type CompleteResponse struct {
	NewLevel     int   `json:"newLevel"`
	NewBalance   int   `json:"newBalance"`
	BadgeEarned  Badge `json:"badgeEarned"`
	MoneyAwarded int   `json:"moneyAwarded"`
}

// Quote is a market quote or index value.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Watchlist is the learner's list of tracked symbols.
type Watchlist struct {
	Symbols []string `json:"symbols"`
}

// ChatTurn is one message in a chat history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history,omitempty"`
}

// ChatResponse is the reply of POST /chat.
type ChatResponse struct {
	Reply     string   `json:"reply"`
	FollowUps []string `json:"followUps,omitempty"`
}

// Health is the response of GET /health.
type Health struct {
	Status     string `json:"status"`
	APIVersion string `json:"apiVersion"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
