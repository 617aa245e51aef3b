package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/Syncer/internal/config"
	"github.com/CZERTAINLY/Syncer/internal/log"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/syncer on given OS
	configPath     string // actual config file used (if loaded)
	cfg            config.Config

	flagConfigFilePath string   // value of --config flag
	flagVerbose        bool     // value of --verbose flag
	flagList           bool     // value of --list flag
	flagStart          []string // values of --start flag
	flagDryRun         bool     // value of --dry-run flag
	flagVersion        bool     // value of --version flag

	flagReload bool // value of server --reload flag
	flagStop   bool // value of server --stop flag
	flagWatch  bool // value of server --watch flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "syncer")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is syncer.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.Flags().BoolVar(&flagList, "list", false, "list jobs and their last run")
	rootCmd.Flags().StringArrayVar(&flagStart, "start", nil, "run a job by name and exit with its exit code, can be repeated")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", true, "pass --dry-run to the tool and do not record the run")
	rootCmd.Flags().BoolVar(&flagVersion, "version", false, "print version and exit")

	serverCmd.Flags().BoolVar(&flagReload, "reload", false, "ask the running server to reload job definitions")
	serverCmd.Flags().BoolVar(&flagStop, "stop", false, "ask the running server to stop")
	serverCmd.Flags().BoolVar(&flagWatch, "watch", false, "report when a server starts or stops")
	serverCmd.MarkFlagsMutuallyExclusive("reload", "stop", "watch")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse the config, setup logging
	rootCmd.PersistentPreRunE = initSyncer

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		slog.Error("syncer failed", "err", err)
		os.Exit(1)
	}
}

// exitCode makes the process exit with a job exit code.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

var rootCmd = &cobra.Command{
	Use:          "syncer",
	Short:        "Runs and schedules rsync based backup jobs",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         doRoot,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "server runs scheduled jobs in foreground",
	Args:  cobra.NoArgs,
	RunE:  doServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a syncer",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

func printVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Println("syncer: version info not available")
		return
	}

	if configPath != "" {
		fmt.Printf("config: %s\n", configPath)
	}
	fmt.Printf("syncer: %s\n", info.Main.Version)
	fmt.Printf("go:     %s\n", info.GoVersion)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			fmt.Printf("commit: %s\n", s.Value)
		case "vcs.time":
			fmt.Printf("date:   %s\n", s.Value)
		case "vcs.modified":
			fmt.Printf("dirty:  %s\n", s.Value)
		}
	}
	fmt.Println()
}

func doRoot(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("syncer",
		slog.String("cmd", "root"),
		slog.Int("pid", os.Getpid()),
	))
	switch {
	case flagVersion:
		printVersion()
		return nil
	case flagList:
		return doList(ctx, os.Stdout)
	case len(flagStart) > 0:
		return doStart(ctx, flagStart, flagDryRun)
	default:
		return cmd.Help()
	}
}

func initSyncer(cmd *cobra.Command, _ []string) error {
	configPath = config.Lookup(flagConfigFilePath, userConfigPath, ".")

	v, err := config.New(userConfigPath)
	if err != nil {
		return err
	}
	cfg, err = config.Load(v, configPath)
	if err != nil {
		return err
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		cfg.Verbose = true
	}

	// initialize logging
	slog.SetDefault(log.New(os.Stderr, cfg.Verbose))

	slog.Debug("syncer run", "configPath", configPath)
	slog.Debug("syncer run", "config", cfg)
	return nil
}
