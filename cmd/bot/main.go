package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eliseohh/shelfbot/internal/archive"
	"github.com/eliseohh/shelfbot/internal/bot"
	"github.com/eliseohh/shelfbot/internal/config"
	"github.com/eliseohh/shelfbot/internal/index"
	"github.com/eliseohh/shelfbot/internal/logger"
	"github.com/eliseohh/shelfbot/internal/selection"
	"github.com/eliseohh/shelfbot/internal/server"
	"github.com/eliseohh/shelfbot/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "shelfbot",
		Short:        "Search a Telegram library channel and forward books on request",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default ./.env)")
	root.AddCommand(newStatsCmd(&envFile))
	return root
}

func newStatsCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print archive index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(*envFile)
			db, err := openIndex(cfg.Index.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			st, err := index.NewStore(db).Stats(cmd.Context())
			if err != nil {
				return err
			}
			color.Cyan("Archive index: %s", cfg.Index.Path)
			fmt.Printf("  posts:        %d\n", st.Total)
			fmt.Printf("  with files:   %d\n", st.WithPayload)
			if !st.LastIndexed.IsZero() {
				fmt.Printf("  last indexed: %s\n", st.LastIndexed.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func run(parent context.Context, envFile string) error {
	color.Cyan("ShelfBot: library channel search")

	cfg := config.Load(envFile)
	if err := cfg.Validate(); err != nil {
		color.Red("Fatal: %v", err)
		return err
	}

	log := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction())
	defer log.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Archive index
	db, err := openIndex(cfg.Index.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	store := index.NewStore(db)

	// 2. Ingestion pipeline
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, index.NewWatermillLogger(log))
	defer pubSub.Close()
	ingested, err := index.NewIngester(store, pubSub, log).Start(ctx)
	if err != nil {
		return err
	}

	// 3. Sessions
	sessions, closeSessions, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeSessions()
	cache := session.NewCache(sessions)

	// 4. Telegram
	botCfg := bot.Config{
		Token:          cfg.Bot.Token,
		PollTimeout:    cfg.Bot.PollTimeout,
		RequestTimeout: cfg.App.RequestTimeout,
	}
	api, err := bot.NewAPI(botCfg, log)
	if err != nil {
		return fmt.Errorf("bot init failed: %w", err)
	}

	gateway := archive.NewGateway(archive.Handle(cfg.Bot.ArchiveChannel), api, store, cfg.Bot.SearchLimit, log)
	if !gateway.Handle().Configured() {
		log.Warn("Main", "ARCHIVE_CHANNEL is not configured; searches will be refused", nil)
	}

	publisher := index.NewPublisher(pubSub)
	b := bot.New(api, botCfg, bot.Deps{
		Search:   gateway,
		Cache:    cache,
		Selector: selection.NewDispatcher(cache, gateway, api, log),
		Indexer:  publisher,
		Pruner:   publisher,
		Stats:    store,
		Log:      log,
	})

	// 5. Health endpoint
	if cfg.App.HealthAddr != "" {
		hs := server.NewHealthServer(store, log)
		go func() {
			if err := hs.Listen(cfg.App.HealthAddr); err != nil {
				log.Error("Health", "Health server stopped", map[string]interface{}{"error": err})
			}
		}()
		defer hs.Shutdown()
	}

	go func() {
		<-ctx.Done()
		b.Stop()
	}()

	color.Green("🤖 Bot Online. Listening...")
	b.Start()

	stop()
	<-ingested
	log.Info("Main", "Shutdown complete", nil)
	return nil
}

func openIndex(path string) (*index.DB, error) {
	db, err := index.NewDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	if cfg.Backend == "redis" {
		rdb, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(rdb, cfg.TTL), func() { rdb.Close() }, nil
	}
	return session.NewMemoryStore(cfg.TTL), func() {}, nil
}
