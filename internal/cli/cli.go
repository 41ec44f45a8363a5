// Package cli implements the command-line interface for xlogdecode.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eunmann/xlog-decoder/internal/logctx"
	"github.com/eunmann/xlog-decoder/pkg/fileutil"
	"github.com/eunmann/xlog-decoder/pkg/logging"
	"github.com/eunmann/xlog-decoder/pkg/membudget"
)

// envPrefix prefixes every environment override, e.g. XLOG_OUT_DIR.
const envPrefix = "XLOG"

// memBudgetEnv is the environment variable consulted for the memory budget.
const memBudgetEnv = envPrefix + "_MEM_BUDGET"

const usage = "usage: xlogdecode <command> [flags]\ncommands: decode, inspect"

// Run executes the CLI with the given arguments. SIGINT and SIGTERM abort
// running decodes; partial output is still written.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootCmd(viper.New())
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "xlogdecode",
		Short:         "Decode xlog binary log files into plain text",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return errors.New(usage)
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(v); err != nil {
				return err
			}
			logging.InitWriter(cmd.ErrOrStderr(), v.GetBool("debug"), v.GetBool("human"))
			logctx.SetDefaultLogger(*logging.L())
			cmd.SetContext(logctx.WithLogger(cmd.Context(), *logging.L()))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default is $HOME/.config/xlogdecode.yaml)")
	pf.Bool("debug", false, "enable debug logging")
	pf.Bool("human", false, "human-friendly log output")
	_ = v.BindPFlags(pf)

	root.AddCommand(newDecodeCmd(v), newInspectCmd(v))
	return root
}

// initConfig wires environment overrides and reads the config file. An
// explicit --config must exist; the default location is optional.
func initConfig(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".config", "xlogdecode.yaml")
	if !fileutil.Exists(path) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// determineMemoryBudget resolves the budget from, in order: the --mem-budget
// flag, XLOG_MEM_BUDGET, the config file, and half of system RAM.
func determineMemoryBudget(cli, fromConfig string) (*membudget.Budget, error) {
	if cli != "" {
		n, err := membudget.ParseHumanSize(cli)
		if err != nil {
			return nil, fmt.Errorf("invalid --mem-budget: %w", err)
		}
		return membudget.New(membudget.Config{TotalBytes: n, Source: membudget.BudgetSourceCLI}), nil
	}

	if env := os.Getenv(memBudgetEnv); env != "" {
		n, err := membudget.ParseHumanSize(env)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", memBudgetEnv, err)
		}
		return membudget.New(membudget.Config{TotalBytes: n, Source: membudget.BudgetSourceEnv}), nil
	}

	if fromConfig != "" {
		n, err := membudget.ParseHumanSize(fromConfig)
		if err != nil {
			return nil, fmt.Errorf("invalid mem-budget in config: %w", err)
		}
		return membudget.New(membudget.Config{TotalBytes: n, Source: membudget.BudgetSourceConfig}), nil
	}

	return membudget.NewFromSystemRAM(), nil
}
