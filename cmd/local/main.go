package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"catalog-tg-bot/api"
	"catalog-tg-bot/internal/app"
	"catalog-tg-bot/internal/bot"
	"catalog-tg-bot/internal/config"
	"catalog-tg-bot/internal/hashtag"
	"catalog-tg-bot/internal/logging"
)

var (
	envFileFlag     string
	pollTimeoutFlag time.Duration
	serveFlag       bool
	topFlag         int
)

var rootCmd = &cobra.Command{
	Use:   "local",
	Short: "Run the catalog bot with long polling",
	Long: `Local runs the bot against the Bot API with long polling instead of a webhook.
Settings come from the environment, a .env file and CATALOG_BOT_CONFIG.

Examples:
  local
  local --serve
  local classify "#سریال #Dark #S01E02"
  local search dark`,
	SilenceUsage: true,
	RunE:         runPoll,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <caption>",
	Short: "Show how a channel caption would be filed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := hashtag.Classify(strings.Join(args, " "))
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "category: %s\ntitle: %s\n", r.Category, r.Title)
		if r.Season != nil {
			fmt.Fprintf(out, "season: %d\n", *r.Season)
		}
		if r.Episode != nil {
			fmt.Fprintf(out, "episode: %d\n", *r.Episode)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search catalog titles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s storeView) error {
			refs := s.Search(ctx, strings.Join(args, " "))
			if len(refs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
				return nil
			}
			for _, r := range refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s | %s\n", r.Category, r.Title)
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print catalog size and the most requested titles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s storeView) error {
			fmt.Fprintln(cmd.OutOrStdout(), bot.StatsText(s.Load(ctx), topFlag))
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "dotenv file loaded before reading settings")
	rootCmd.Flags().DurationVar(&pollTimeoutFlag, "poll-timeout", 30*time.Second, "long polling timeout")
	rootCmd.Flags().BoolVar(&serveFlag, "serve", false, "also serve the HTTP API on PORT")
	statsCmd.Flags().IntVar(&topFlag, "top", 10, "number of top titles to list")
	rootCmd.AddCommand(classifyCmd, searchCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (config.Config, zerolog.Logger, error) {
	if err := loadDotEnv(envFileFlag); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", envFileFlag).Msg("dotenv not loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Logger{}, err
	}
	return cfg, logging.Init(cfg.LogLevel), nil
}

func runPoll(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if token := cfg.BotToken; len(token) > 8 {
		logger.Info().Str("token", token[:8]+"...").Msg("starting local bot")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Bot.Run(gctx) })
	g.Go(func() error { return a.Bot.Poll(gctx, a.Client, pollTimeoutFlag) })

	if serveFlag {
		gin.SetMode(gin.ReleaseMode)
		server := &http.Server{
			Addr: ":" + cfg.Port,
			Handler: api.NewRouter(&api.Handler{
				Bot:    a.Bot,
				Store:  a.Store,
				Logger: logging.Component(logger, "api"),
			}),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", server.Addr).Msg("listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}
