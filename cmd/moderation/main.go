package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/yaml.v3"

	"moderation/internal/conf"
	"moderation/internal/data"
	"moderation/internal/document"
	"moderation/internal/server"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "moderation"
	// Version is the version of the compiled software.
	Version string

	id, _ = os.Hostname()
)

type rootOptions struct {
	conf string
}

func newApp(logger log.Logger, hs *http.Server, gs *grpc.Server, ss *server.SweepServer) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs, gs, ss),
	)
}

func newLogger(bc *conf.Bootstrap) log.Logger {
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)
	return log.NewFilter(logger, log.FilterLevel(log.ParseLevel(bc.Log.Level)))
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           Name,
		Short:         "Periodic content moderation for a shared document",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&opts.conf, "conf", "c", "./configs", "config path, eg: -c config.yaml")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers and the sweep loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := conf.Load(opts.conf)
			if err != nil {
				return err
			}
			app, cleanup, err := wireApp(bc.Server, bc.Data, bc.Moderation, newLogger(bc))
			if err != nil {
				return err
			}
			defer cleanup()

			// start and wait for stop signal
			return app.Run()
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := conf.Load(opts.conf)
			if err != nil {
				return err
			}
			if err := data.RunMigrate(bc.Data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

type checkOptions struct {
	memory bool
	output string
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	co := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Run one sweep over a document snapshot and print the result",
		Long: `Check loads a YAML or JSON document snapshot, runs a single moderation
sweep over it and prints the sweep report followed by the redacted document.

Example:
  moderation check -c configs/config.yaml testdata/doc.yaml
  moderation check --memory=false --output json doc.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, co, args[0])
		},
	}
	cmd.Flags().BoolVar(&co.memory, "memory", true, "keep image verdicts in memory instead of the configured store")
	cmd.Flags().StringVar(&co.output, "output", "yaml", "document output format (yaml|json)")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *rootOptions, co *checkOptions, path string) error {
	if co.output != "yaml" && co.output != "json" {
		return fmt.Errorf("invalid output %q: must be yaml or json", co.output)
	}
	bc, err := conf.Load(opts.conf)
	if err != nil {
		return err
	}
	if co.memory {
		bc.Data.VerdictStore = "memory"
		bc.Data.Redis.Enabled = false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	snap, err := document.Decode(raw)
	if err != nil {
		return err
	}
	nodes, err := document.Build(snap.Content)
	if err != nil {
		return err
	}
	name := snap.Name
	if name == "" {
		name = bc.Moderation.Document
	}

	uc, cleanup, err := wireSweeper(bc.Data, bc.Moderation, newLogger(bc))
	if err != nil {
		return err
	}
	defer cleanup()

	doc, err := document.NewRegistry().Register(name, "check", nodes)
	if err != nil {
		return err
	}
	report, err := uc.Sweep(context.Background(), doc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	var result document.Snapshot
	result.Name = name
	doc.View(func(root *document.Node) {
		result.Content = document.Encode(root)
	})
	if co.output == "json" {
		return enc.Encode(result)
	}
	fmt.Fprintln(out, "---")
	ye := yaml.NewEncoder(out)
	defer ye.Close()
	return ye.Encode(result)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
