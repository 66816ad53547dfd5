package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"toolagent/internal/agent"
	"toolagent/internal/channel"
	"toolagent/internal/config"
	"toolagent/internal/server"
)

func askCmd() *cobra.Command {
	var (
		maxSteps   int
		asJSON     bool
		verbose    bool
		provider   string
		translate  string
		transcript string
	)
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			loop, err := a.loop(provider)
			if err != nil {
				return err
			}
			var opts []agent.RunOption
			if maxSteps > 0 {
				opts = append(opts, agent.WithMaxSteps(maxSteps))
			}
			if translate != "" {
				opts = append(opts, agent.WithTranslation(translate))
			}

			res, err := loop.Run(cmd.Context(), strings.Join(args, " "), opts...)
			if err != nil {
				if isCancelled(err) {
					return err
				}
				return fmt.Errorf("run: %w", err)
			}
			if transcript != "" {
				if err := appendTranscript(transcript, res.Trace); err != nil {
					return err
				}
			}
			if asJSON {
				return writeResultJSON(cmd.OutOrStdout(), res)
			}
			writeResult(cmd.OutOrStdout(), res, verbose)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget for this run (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the transcript and debug logs")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "provider name from config (default: general.defaultProvider)")
	cmd.Flags().StringVar(&translate, "translate", "", "translate the final answer to this language code")
	cmd.Flags().StringVar(&transcript, "transcript", "", "append the run trace as JSON lines to this file")
	return cmd
}

func chatCmd() *cobra.Command {
	var (
		provider   string
		translate  string
		transcript string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			loop, err := a.loop(provider)
			if err != nil {
				return err
			}
			var runner channel.Runner = loop
			if transcript != "" {
				runner = &transcriptRunner{inner: loop, path: transcript, logger: logger}
			}
			cli := channel.NewCLI(channel.CLIConfig{
				Runner:    runner,
				Tools:     a.registry,
				Logger:    logger,
				In:        cmd.InOrStdin(),
				Out:       cmd.OutOrStdout(),
				Spinner:   isTerminal(os.Stdout),
				MaxSteps:  a.cfg.General.MaxSteps,
				Translate: translate,
			})
			return cli.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "provider name from config")
	cmd.Flags().StringVar(&translate, "translate", "", "translate every answer to this language code")
	cmd.Flags().StringVar(&transcript, "transcript", "", "append each run trace as JSON lines to this file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Serves POST /v1/ask, GET /v1/tools, GET /healthz and, when enabled, the metrics endpoint. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			sc := server.Config{
				Addr:   addr,
				APIKey: a.cfg.Server.APIKey,
				Tools:  a.registry,
				NewRunner: func(provider string) (server.Runner, error) {
					return a.loop(provider)
				},
				Logger: logger.With("component", "server"),
			}
			if a.metrics != nil {
				sc.Metrics = a.metrics.Handler()
				sc.MetricsPath = a.cfg.Metrics.Path
			}
			err = server.New(sc).ListenAndServe(cmd.Context())
			if cmd.Context().Err() != nil {
				logger.Info("server stopped")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()
			writeTools(cmd.OutOrStdout(), a.registry.Definitions(), terminalWidth())
			return nil
		},
	}
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the tool result cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List cached entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()
			writeCache(cmd.OutOrStdout(), a.cache.Snapshot(), a.cache.TTL(), time.Now())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()
			n := a.cache.Len()
			a.cache.Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries\n", n)
			return nil
		},
	})
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(config.ExpandPath(cfgPath)); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. general.defaultProvider)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. general.defaultProvider ollama)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.LoadRaw(cfgPath)
			if errors.Is(err, fs.ErrNotExist) {
				cfg, err = config.Defaults(), nil
			}
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			writeConfigPaths(cmd.OutOrStdout(), config.ListPaths(config.Sanitize(cfg)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	})

	return cmd
}
