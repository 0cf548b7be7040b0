// Package cmd wires the jeredmgr command line: one cobra command per
// lifecycle operation, all sharing a configured orchestrator.
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/JeredArc/jeredmgr/internal/backend"
	"github.com/JeredArc/jeredmgr/internal/config"
	"github.com/JeredArc/jeredmgr/internal/logging"
	"github.com/JeredArc/jeredmgr/internal/orchestrator"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var rootCmd = &cobra.Command{
	Use:   "jeredmgr",
	Short: "Manage self-hosted projects as services",
	Long: `JeredMgr manages heterogeneous self-hosted projects through one
lifecycle: docker-compose stacks, systemd services, and plain script
bundles are enabled, started, stopped, and updated with the same
commands. Project records and managed artifacts live together in a
single directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var (
	flagForce bool
	flagQuiet bool
	flagDir   string
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/jeredmgr/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagForce, "force", false, "answer yes to every confirmation prompt")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "d", "", "managed directory override")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/jeredmgr")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("JEREDMGR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// interactive reports whether prompts can reach an operator.
func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// askYesNo prompts on the terminal and accepts y/yes (case-insensitive).
func askYesNo(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// askSecret prompts for a value without echoing it.
func askSecret(question string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", question)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

// newOrchestrator assembles the shared stack for a command invocation.
// The returned cleanup flushes the debug log and must run before exit.
func newOrchestrator() (*orchestrator.Orchestrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if flagDir != "" {
		cfg.Paths.ManagedDir = flagDir
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logPath := filepath.Join(config.ConfigDir(), "jeredmgr.log")
		logger, err = logging.NewLogger(logPath, logging.ParseLevel(cfg.Logging.Level), logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	managedDir := cfg.Paths.ResolveManagedDir()
	store := project.NewStore(managedDir)
	factory := backend.NewFactory(cfg, managedDir)

	var out io.Writer = os.Stdout
	if flagQuiet {
		out = io.Discard
	}

	orch := orchestrator.New(cfg, store, factory, logger,
		orchestrator.WithOutput(out),
		orchestrator.WithForce(flagForce),
		orchestrator.WithInteractive(interactive() && !flagQuiet),
		orchestrator.WithPrompt(askYesNo),
		orchestrator.WithSecretPrompt(askSecret),
	)
	cleanup := func() { _ = logger.Close() }
	return orch, cleanup, nil
}
