package store

import (
	"context"
	"encoding/json"
	"time"
)

// Slot names for persisted client state.
const (
	ProgressSlot = "progress-store"
	IdentitySlot = "auth-identity"
)

// SlotRepo stores named JSON documents. Each slot holds one value.
type SlotRepo interface {
	// Get decodes the slot into v. Returns false if the slot does not exist.
	Get(ctx context.Context, name string, v any) (bool, error)

	// Put encodes v as JSON and replaces the slot.
	Put(ctx context.Context, name string, v any) error

	// Delete removes the named slots. Missing slots are ignored.
	Delete(ctx context.Context, names ...string) error
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
	Kind   string    // exact kind match ("" = all)
}

// SnapshotData is a summary of the learner's progress at a point in time.
type SnapshotData struct {
	Version         int   `json:"version"`
	CurrentLevel    int   `json:"currentLevel"`
	TotalBalance    int   `json:"totalBalance"`
	CompletedLevels []int `json:"completedLevels,omitempty"`
	BadgeCount      int   `json:"badgeCount"`
}

// Snapshot represents a point-in-time capture of learner progress.
type Snapshot struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	Data      SnapshotData
}

// SnapshotRepo manages progress snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot. A zero Sequence is assigned from the
	// global counter; a zero Timestamp becomes the current time.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot, or nil if none exist.
	Latest(ctx context.Context) (*Snapshot, error)

	// List returns up to limit snapshots, newest first.
	List(ctx context.Context, limit int) ([]Snapshot, error)

	// Prune deletes all but the N most recent snapshots.
	Prune(ctx context.Context, keep int) error
}

// Event kinds.
const (
	KindAPICall    = "api_call"
	KindLLMRequest = "llm_request"
	KindSettlement = "settlement"
)

// APICallEventData captures one backend HTTP call.
type APICallEventData struct {
	Method       string `json:"method"`
	Path         string `json:"path"`
	Status       int    `json:"status"`
	Attempts     int    `json:"attempts"`
	LatencyMs    int64  `json:"latencyMs"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Purpose      string `json:"purpose"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	LatencyMs    int64  `json:"latencyMs"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	RequestBody  string `json:"requestBody,omitempty"`
	ResponseBody string `json:"responseBody,omitempty"`
}

// SettlementEventData captures one step of the level completion flow.
type SettlementEventData struct {
	LevelID      int    `json:"levelId"`
	Action       string `json:"action"` // "submit", "settle", "retry"
	Score        int    `json:"score,omitempty"`
	Total        int    `json:"total,omitempty"`
	Passed       bool   `json:"passed,omitempty"`
	NewBalance   int    `json:"newBalance,omitempty"`
	BadgeName    string `json:"badgeName,omitempty"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Event is one row of the event log.
type Event struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	Kind      string
	Success   bool
	LatencyMs int64
	Summary   string
	Data      json.RawMessage
}

// KindStats aggregates events of one kind.
type KindStats struct {
	Kind     string
	Total    int
	Failures int
	AvgMs    float64
}

// EventRepo provides append and query access to the event log.
type EventRepo interface {
	// AppendAPICall records a backend HTTP call.
	AppendAPICall(ctx context.Context, data APICallEventData) error

	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// AppendSettlement records a quiz submission, settlement or retry.
	AppendSettlement(ctx context.Context, data SettlementEventData) error

	// Query returns events, newest first.
	Query(ctx context.Context, opts QueryOpts) ([]Event, error)

	// Get returns the event with the given ID, or nil if none exists.
	Get(ctx context.Context, id int) (*Event, error)

	// Stats aggregates the log by kind.
	Stats(ctx context.Context) ([]KindStats, error)
}
