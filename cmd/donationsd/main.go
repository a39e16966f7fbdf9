package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

// app carries the flags shared by every subcommand.
type app struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func main() {
	root := newRootCmd(&app{stdout: os.Stdout, stderr: os.Stderr})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "donationsd",
		Short:         "PayPal donation notification receiver",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML config file")

	root.AddCommand(serveCmd(a))
	root.AddCommand(migrateCmd(a))
	root.AddCommand(approveCmd(a))
	root.AddCommand(settingsCmd(a))
	root.AddCommand(overviewCmd(a))
	root.AddCommand(auditCmd(a))
	root.AddCommand(usersCmd(a))
	return root
}

// open loads the config and builds the runtime. Tables are migrated when the
// config asks for it or force is set.
func (a *app) open(ctx context.Context, force bool) (*runtime, fileConfig, error) {
	cfg, err := loadFileConfig(a.configPath)
	if err != nil {
		return nil, fileConfig{}, err
	}
	logger := newLogger(cfg.Log, a.stderr)
	rt, err := openRuntime(ctx, cfg, logger, runtimeOptions{migrate: force || cfg.Database.AutoMigrate})
	if err != nil {
		return nil, fileConfig{}, err
	}
	return rt, cfg, nil
}
