package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkmccarty/CoopBoard/src/config"
	"github.com/mkmccarty/CoopBoard/src/cookies"
	"github.com/mkmccarty/CoopBoard/src/coop"
	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/gateway"
	"github.com/mkmccarty/CoopBoard/src/leaderboard"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/mkmccarty/CoopBoard/src/metrics"
	"github.com/mkmccarty/CoopBoard/src/report"
	"github.com/mkmccarty/CoopBoard/src/tasks"
	"github.com/mkmccarty/CoopBoard/src/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"
)

const defaultConfigFile = ".config.json"

// Command line parameters that override .config.json
var (
	configFile  string
	debug       bool
	metricsAddr string

	rankSpeedRun bool
	rankFastRun  bool
	rankAnyGrade bool
	rankCarry    bool
	rankReverse  bool
	rankForce    bool
	rankWorkers  int
	rankPlayers  bool
	rankRecord   bool
	rankEvery    string
	rankFlags    string
	rankTop      int

	coopForce bool
)

// app holds the wired components for one invocation.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	gateway  *gateway.Gateway
	archive  *gateway.Archive
	board    *leaderboard.Orchestrator
	ledger   *cookies.Ledger
	out      io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "coopboard",
		Short:        "Coop contract leaderboards",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debug {
				log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", defaultConfigFile, "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "include timestamps and source lines in logs")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	rootCmd.AddCommand(newContractsCmd())
	rootCmd.AddCommand(newRankCmd())
	rootCmd.AddCommand(newCoopCmd())
	rootCmd.AddCommand(newArchiveCmd())
	rootCmd.AddCommand(newCookiesCmd())
	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newContractsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "List the contract catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			contracts, err := a.gateway.Contracts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load contracts: %w", err)
			}
			report.WriteContracts(a.out, contracts)
			return nil
		},
	}
}

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank <contract-id>",
		Short: "Build and print the ranked leaderboard of a contract",
		Args:  cobra.ExactArgs(1),
		RunE:  runRankCmd,
	}

	cmd.Flags().BoolVar(&rankSpeedRun, "speedrun", false, "include speedrun coops")
	cmd.Flags().BoolVar(&rankFastRun, "fastrun", false, "include fastrun coops")
	cmd.Flags().BoolVar(&rankAnyGrade, "anygrade", false, "include any grade coops")
	cmd.Flags().BoolVar(&rankCarry, "carry", false, "include carry coops")
	cmd.Flags().BoolVar(&rankReverse, "reverse", false, "worst coop first")
	cmd.Flags().BoolVar(&rankForce, "force", false, "refetch everything and rebuild every coop")
	cmd.Flags().IntVar(&rankWorkers, "workers", 0, "coops built concurrently (default from config)")
	cmd.Flags().BoolVar(&rankPlayers, "players", false, "print the players of each coop")
	cmd.Flags().BoolVar(&rankRecord, "record", false, "record the result in the cookie ledger")
	cmd.Flags().StringVar(&rankEvery, "every", "", "rebuild on this interval, e.g. 15m")
	cmd.Flags().StringVar(&rankFlags, "flags", "", "sections as a list, e.g. SpeedRun,Carry")
	cmd.Flags().IntVar(&rankTop, "top", 0, "players ranked per section (default 10, negative hides the ranking)")

	return cmd
}

func runRankCmd(cmd *cobra.Command, args []string) error {
	flags, err := requestedFlags()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	contractID := strings.TrimSpace(args[0])
	opts := leaderboard.Options{
		Force:   rankForce,
		Reverse: rankReverse,
		Workers: rankWorkers,
	}
	if opts.Workers <= 0 {
		opts.Workers = a.cfg.Workers
	}

	if metricsAddr != "" {
		a.serveMetrics(cmd.Context(), metricsAddr)
	}

	if rankEvery == "" {
		return a.rank(cmd.Context(), contractID, flags, opts)
	}

	interval, err := str2duration.ParseDuration(rankEvery)
	if err != nil {
		return fmt.Errorf("invalid --every %q: %w", rankEvery, err)
	}
	if err := a.rank(cmd.Context(), contractID, flags, opts); err != nil {
		return err
	}

	// Each pass starts from an empty result set and empty caches.
	scheduler := tasks.NewScheduler()
	err = scheduler.Every(interval, "rank "+contractID, func() {
		a.board.Forget(contractID)
		a.gateway.InvalidateAll()
		if err := a.rank(cmd.Context(), contractID, flags, opts); err != nil {
			log.Printf("rank %s: %v", contractID, err)
			return
		}
		log.Printf("rank %s: %d coops built", contractID, a.board.Built(contractID))
	})
	if err != nil {
		return err
	}
	go func() {
		<-cmd.Context().Done()
		scheduler.Stop()
	}()
	scheduler.Start()
	return nil
}

func newCoopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coop <contract-id> <coop-code>",
		Short: "Build and print one coop, prefix the code with " + maj.ReplayPrefix + " to replay the archived snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			agg, err := a.board.BuildCoop(cmd.Context(), strings.TrimSpace(args[0]), args[1], coopForce)
			if err != nil {
				return fmt.Errorf("failed to build %s: %w", args[1], err)
			}
			report.WriteCoops(a.out, []*coop.Aggregate{agg})
			fmt.Fprintln(a.out)
			report.WritePlayers(a.out, agg, 0)
			return nil
		},
	}
	cmd.Flags().BoolVar(&coopForce, "force", false, "refetch the snapshot")
	return cmd
}

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <contract-id>",
		Short: "List the archived coop snapshots of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, code := range a.archive.Coops(strings.TrimSpace(args[0])) {
				fmt.Fprintln(a.out, code)
			}
			return nil
		},
	}
}

func newCookiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cookies [contract-id]",
		Short: "Print the recorded cookie ledger entry of a contract, or list recorded contracts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				for _, id := range a.ledger.Contracts() {
					fmt.Fprintln(a.out, id)
				}
				return nil
			}
			entry, err := a.ledger.Get(args[0])
			if errors.Is(err, ei.ErrNotFound) {
				return fmt.Errorf("no ledger entry for %s", args[0])
			}
			if err != nil {
				return err
			}
			report.WriteCookies(a.out, entry)
			return nil
		},
	}
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new ArchiveKey for encrypting archived snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := config.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "coopboard", version.String())
		},
	}
}

func newApp(out io.Writer) (*app, error) {
	cfg, err := config.ReadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cipher *config.Cipher
	if cfg.ArchiveKey != "" {
		cipher, err = config.NewCipher(cfg.ArchiveKey)
		if err != nil {
			return nil, fmt.Errorf("invalid archive key: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	client := gateway.NewClient(gateway.ClientOptions{
		CoopStatusURL: cfg.CoopStatusURL,
		RosterURL:     cfg.RosterURL,
		ContractsURL:  cfg.ContractsURL,
		Info: ei.RequestInfo{
			UserID:        cfg.EIUserID,
			ClientVersion: cfg.ClientVersion,
			Version:       cfg.Version,
			Build:         cfg.Build,
			Platform:      cfg.Platform,
		},
		Timeout: cfg.Timeout,
		Metrics: m,
	})
	archive := gateway.NewArchive(filepath.Join(cfg.DataPath, "archive"), cipher)
	gw := gateway.New(gateway.Options{
		Contracts:  client,
		CoopStatus: client,
		Roster:     client,
		Archive:    archive,
		TTL:        cfg.CacheTTL,
		Metrics:    m,
	})

	return &app{
		cfg:      cfg,
		registry: registry,
		gateway:  gw,
		archive:  archive,
		board:    leaderboard.New(gw, m),
		ledger:   cookies.NewLedger(filepath.Join(cfg.DataPath, "cookies"), m),
		out:      out,
	}, nil
}

func (a *app) rank(ctx context.Context, contractID string, flags maj.Flags, opts leaderboard.Options) error {
	res, err := a.board.BuildRanked(ctx, contractID, flags, opts)
	if err != nil {
		return fmt.Errorf("failed to rank %s: %w", contractID, err)
	}
	report.WriteResult(a.out, res, report.Options{Players: rankPlayers, Top: rankTop})

	if rankRecord {
		if _, err := a.ledger.Record(res, time.Now()); err != nil {
			return fmt.Errorf("failed to record %s: %w", contractID, err)
		}
	}
	return nil
}

func (a *app) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Printf("metrics: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// requestedFlags merges the section switches with --flags.
func requestedFlags() (maj.Flags, error) {
	flags, ok := maj.ParseFlags(rankFlags)
	if !ok {
		return 0, fmt.Errorf("invalid --flags %q, want names from %v", rankFlags, maj.AllFlags)
	}
	if rankSpeedRun {
		flags |= maj.SpeedRun
	}
	if rankFastRun {
		flags |= maj.FastRun
	}
	if rankAnyGrade {
		flags |= maj.AnyGrade
	}
	if rankCarry {
		flags |= maj.Carry
	}
	return flags, nil
}
