package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/chat"
	"github.com/abhisek/investory/internal/config"
	"github.com/abhisek/investory/internal/identity"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/llm"
	"github.com/abhisek/investory/internal/progress"
	"github.com/abhisek/investory/internal/settlement"
	"github.com/abhisek/investory/internal/store"
	"github.com/spf13/cobra"
)

// env holds the collaborators shared by the TUI and the subcommands.
type env struct {
	cfg      config.Config
	store    *store.Store
	session  *identity.Session
	tokens   api.TokenSource
	client   *api.Client
	progress *progress.Store
	svc      *settlement.Service
}

// loadConfig reads .env and INVESTORY_* variables, then applies flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if u, _ := cmd.Flags().GetString("api-url"); u != "" {
		cfg.APIURL = u
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the database named by flags or config.
func openStore(cmd *cobra.Command, cfg config.Config) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// openEnv builds the store, identity, API client and settlement service.
// The caller must Close it.
func openEnv(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cmd, cfg)
	if err != nil {
		return nil, err
	}

	session := identity.NewSession(st.SlotRepo())
	if err := session.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}

	var tokens api.TokenSource = session
	if cfg.Token != "" {
		tokens = api.StaticToken(cfg.Token)
	}
	events := st.EventRepo()
	client := api.New(cfg.APIURL, tokens,
		api.WithTimeout(cfg.APITimeout),
		api.WithEventRecorder(events),
		api.WithRetry(api.DefaultRetryConfig()),
	)

	state, err := progress.Load(ctx, st.SlotRepo())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; starting from an empty copy\n", err)
	}
	ps := progress.New(
		progress.WithState(state),
		progress.WithPersister(progress.NewSlotPersister(st.SlotRepo(), st.SnapshotRepo())),
	)
	svc := settlement.New(ps, client,
		settlement.WithRecorder(events),
		settlement.WithDebounceWindow(cfg.DebounceWindow),
	)

	return &env{
		cfg:      cfg,
		store:    st,
		session:  session,
		tokens:   tokens,
		client:   client,
		progress: ps,
		svc:      svc,
	}, nil
}

// Close flushes pending task writes, waits for the local copy to be saved
// and closes the database.
func (e *env) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.svc.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save task progress: %v\n", err)
	}
	e.progress.WaitPersisted()
	e.store.Close()
}

// signedIn reports whether requests will carry a token.
func (e *env) signedIn() bool {
	if e.cfg.Token != "" {
		return true
	}
	_, ok := e.session.Current()
	return ok
}

// requireSignIn fails early with a hint instead of a 401 round trip.
func (e *env) requireSignIn() error {
	if e.signedIn() {
		return nil
	}
	return errors.New("not signed in; run `investory login <token>` first")
}

// hydrate pulls authoritative progress. When lenient, a failure is reported
// and the saved local copy is used instead.
func (e *env) hydrate(ctx context.Context, lenient bool) error {
	if err := e.requireSignIn(); err != nil {
		if lenient {
			fmt.Fprintln(os.Stderr, "warning: not signed in; showing saved progress")
			return nil
		}
		return err
	}
	if err := e.svc.Hydrate(ctx); err != nil {
		if lenient {
			fmt.Fprintf(os.Stderr, "warning: %s; showing saved progress\n", api.UserMessage(err))
			return nil
		}
		return err
	}
	return nil
}

// newAssistant builds the configured LLM provider and a tutor on top of it.
func (e *env) newAssistant(ctx context.Context) (*chat.Assistant, error) {
	provider, err := llm.NewProvider(ctx, e.cfg.LLM, llm.Deps{
		Backend: e.client,
		Events:  e.store.EventRepo(),
	})
	if err != nil {
		return nil, err
	}
	return chat.New(provider, chat.DefaultConfig(), chat.WithLearner(learnerFrom(e.progress))), nil
}

// learnerFrom describes the learner to the tutor from the current progress.
func learnerFrom(ps *progress.Store) func() *chat.Learner {
	return func() *chat.Learner {
		snap := ps.Snapshot()
		l := &chat.Learner{
			CurrentLevel: snap.CurrentLevel,
			Balance:      snap.TotalBalance,
		}
		if lvl, ok := levels.Get(snap.CurrentLevel); ok {
			l.LevelTitle = lvl.Title
		}
		for _, b := range snap.Badges {
			l.Badges = append(l.Badges, b.BadgeName)
		}
		return l
	}
}
