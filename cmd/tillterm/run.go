package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tillworks/tillfront"
	"github.com/tillworks/tillfront/backend"
	"github.com/tillworks/tillfront/catalog"
	"github.com/tillworks/tillfront/codec"
	"github.com/tillworks/tillfront/config"
	asynchook "github.com/tillworks/tillfront/hooks/async"
	zaplog "github.com/tillworks/tillfront/log/zap"
	"github.com/tillworks/tillfront/model"
	pr "github.com/tillworks/tillfront/provider"
	"github.com/tillworks/tillfront/provider/localdir"
	redisprov "github.com/tillworks/tillfront/provider/redis"
	"github.com/tillworks/tillfront/refresh"
	rev "github.com/tillworks/tillfront/revstore"
	"github.com/tillworks/tillfront/session"
	"github.com/tillworks/tillfront/shiftgate"
	"github.com/tillworks/tillfront/sloghooks"
	"github.com/tillworks/tillfront/state"
)

type runFlags struct {
	config   string
	username string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the POS terminal",
	Long: `Start the terminal: sign the operator in (or resume a saved
session), load cached data for an instant first paint, check shift
status and keep resources refreshed in the background.`,
	RunE: runTerminal,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOpts.config, "config", "c", "", "path to configuration file")
	runCmd.Flags().StringVarP(&runOpts.username, "username", "u", "", "operator username (omit to resume a saved session)")
}

func runTerminal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zl, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	logger := zaplog.ZapLogger{L: zl}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: local files by default, Redis when several terminals share a
	// cache. The session always stays on local disk.
	local, err := localdir.New(localdir.Config{Dir: cfg.Cache.Dir})
	if err != nil {
		return err
	}
	prov, revs, err := buildCacheStorage(cfg, local)
	if err != nil {
		return err
	}

	// Hook sink is async so a slow log destination never stalls cache reads.
	hooks := asynchook.New(sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10}), 1, 256)
	defer hooks.Close()

	be, err := backend.New(backend.Options{
		BaseURL:    cfg.Backend.URL,
		HTTPClient: &http.Client{Timeout: cfg.Backend.Timeout},
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	caches, err := buildCaches(cfg, prov, revs, logger, hooks)
	if err != nil {
		return err
	}

	st := state.NewStore()
	defer st.Close()

	cat, err := catalog.New(catalog.Options{
		Backend: be,
		Store:   st,
		Caches:  caches,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	gate, err := shiftgate.New(shiftgate.Options{
		Service:      be,
		Logger:       logger,
		CheckTimeout: cfg.Shift.CheckTimeout,
	})
	if err != nil {
		return err
	}
	defer gate.Close()

	sessions, err := session.New(session.Options{Provider: local, Logger: logger})
	if err != nil {
		return err
	}

	user, err := signIn(ctx, be, sessions, logger)
	if err != nil {
		return err
	}
	st.SetUser(&user)
	gate.SetIdentity(user.ID, user.Role)

	// Cached data first: the terminal paints before any network round-trip.
	cat.LoadCached(ctx)

	gate.Check(ctx)
	if err := cat.RefreshAll(ctx, false); err != nil {
		logger.Warn("initial refresh incomplete", tillfront.Fields{"err": err})
	}

	// Background refreshes always force: their whole point is catching
	// changes made on other terminals, which a valid local cache entry would
	// otherwise mask for hours.
	runner, err := refresh.New(refresh.Options{
		Run:      func(ctx context.Context) error { return cat.RefreshAll(ctx, true) },
		Interval: cfg.Refresh.Interval,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	runner.Start(ctx)
	defer runner.Close()

	// SIGHUP is the headless analog of a window-focus event: an immediate
	// out-of-schedule refresh.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			runner.Trigger()
		}
	}()

	logger.Info("terminal ready", tillfront.Fields{
		"operator": user.Username,
		"role":     string(user.Role),
		"gate":     gate.State().String(),
	})

	<-ctx.Done()
	logger.Info("terminal shutting down", nil)

	cleanup := context.Background()
	for _, closeFn := range []func(context.Context) error{
		caches.Meals.Close, caches.Categories.Close, caches.Stock.Close,
		caches.Orders.Close, caches.Tables.Close,
	} {
		if err := closeFn(cleanup); err != nil {
			logger.Warn("cache close failed", tillfront.Fields{"err": err})
		}
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if runOpts.config != "" {
		return config.Load(runOpts.config)
	}
	return config.LoadDefault()
}

func buildLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("tillterm: parse log level: %w", err)
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

// buildCacheStorage picks the cache provider and revision store. With Redis
// configured both live there, so invalidations from one terminal reach the
// others; otherwise entries persist in local files and revisions in process.
func buildCacheStorage(cfg *config.Config, local *localdir.Provider) (pr.Provider, rev.RevStore, error) {
	if cfg.Cache.Redis == nil {
		return local, nil, nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	p, err := redisprov.New(redisprov.Config{Client: client, CloseClient: true})
	if err != nil {
		return nil, nil, err
	}
	return p, rev.NewRedisRevStore(client, "till"), nil
}

func buildCaches(cfg *config.Config, prov pr.Provider, revs rev.RevStore, logger tillfront.Logger, hooks tillfront.Hooks) (catalog.Caches, error) {
	var (
		caches catalog.Caches
		err    error
	)
	if caches.Meals, err = buildCache[model.Meal](cfg, "meals", prov, revs, logger, hooks, false); err != nil {
		return caches, err
	}
	if caches.Categories, err = buildCache[model.Category](cfg, "categories", prov, revs, logger, hooks, false); err != nil {
		return caches, err
	}
	if caches.Stock, err = buildCache[model.StockItem](cfg, "stock", prov, revs, logger, hooks, false); err != nil {
		return caches, err
	}
	// Orders and tables change under the terminal's feet; they are fetched
	// live, so their caches are disabled.
	if caches.Orders, err = buildCache[model.Order](cfg, "orders", prov, revs, logger, hooks, true); err != nil {
		return caches, err
	}
	if caches.Tables, err = buildCache[model.Table](cfg, "tables", prov, revs, logger, hooks, true); err != nil {
		return caches, err
	}
	return caches, nil
}

func buildCache[T any](cfg *config.Config, ns string, prov pr.Provider, revs rev.RevStore, logger tillfront.Logger, hooks tillfront.Hooks, disabled bool) (tillfront.Cache[[]T], error) {
	var cdc codec.Codec[[]T]
	switch cfg.Cache.Codec {
	case "msgpack":
		cdc = codec.Msgpack[[]T]{}
	default:
		cdc = codec.JSON[[]T]{}
	}
	return tillfront.New(tillfront.Options[[]T]{
		Namespace: ns,
		Provider:  prov,
		Codec:     cdc,
		FormatTag: cfg.Cache.FormatTag,
		MaxAge:    cfg.Cache.MaxAge,
		Logger:    logger,
		Hooks:     hooks,
		RevStore:  revs,
		Disabled:  disabled,
	})
}

// signIn resumes a saved session, or authenticates with the backend when a
// username was given (password read from the terminal).
func signIn(ctx context.Context, be *backend.Client, sessions *session.Store, logger tillfront.Logger) (model.User, error) {
	if runOpts.username == "" {
		sess, ok, err := sessions.Load(ctx)
		if err != nil {
			return model.User{}, err
		}
		if !ok {
			return model.User{}, fmt.Errorf("tillterm: no saved session; sign in with --username")
		}
		be.SetToken(sess.Token)
		logger.Info("session resumed", tillfront.Fields{"operator": sess.User.Username})
		return sess.User, nil
	}

	fmt.Fprintf(os.Stderr, "password for %s: ", runOpts.username)
	rd := bufio.NewReader(os.Stdin)
	pw, err := rd.ReadString('\n')
	if err != nil {
		return model.User{}, fmt.Errorf("tillterm: read password: %w", err)
	}
	user, err := be.Login(ctx, runOpts.username, strings.TrimSpace(pw))
	if err != nil {
		return model.User{}, err
	}
	if err := sessions.Save(ctx, session.Session{Token: be.Token(), User: user}); err != nil {
		logger.Warn("session not persisted", tillfront.Fields{"err": err})
	}
	return user, nil
}
