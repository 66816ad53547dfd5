package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"toolagent/internal/config"
	"toolagent/internal/provider"
	"toolagent/internal/tool"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your toolagent setup",
		Long: `Verifies that the configuration, cache backend, and providers are
correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

type doctorReport struct {
	w                      io.Writer
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	fmt.Fprintf(r.w, "  [PASS] %-22s %s\n", check, detail)
	r.passed++
}

func (r *doctorReport) fail(check, detail string) {
	fmt.Fprintf(r.w, "  [FAIL] %-22s %s\n", check, detail)
	r.failed++
}

func (r *doctorReport) warn(check, detail string) {
	fmt.Fprintf(r.w, "  [WARN] %-22s %s\n", check, detail)
	r.warned++
}

func runDoctor(ctx context.Context, w io.Writer, cfgPath string) error {
	fmt.Fprintf(w, "toolagent doctor v%s\n\n", version)
	r := &doctorReport{w: w}

	if _, err := os.Stat(config.ExpandPath(cfgPath)); err != nil {
		r.warn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
	} else {
		r.pass("Config file", cfgPath)
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		r.fail("Config validation", err.Error())
		fmt.Fprintf(w, "\n%d passed, %d failed\n", r.passed, r.failed)
		return fmt.Errorf("config is invalid")
	}
	r.pass("Config validation", "valid")

	if err := checkCache(ctx, cfg.Cache); err != nil {
		r.fail("Cache: "+cfg.Cache.Backend, err.Error())
	} else {
		r.pass("Cache: "+cfg.Cache.Backend, cacheDetail(cfg.Cache))
	}

	factory := provider.NewFactory(cfg, nil)
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	usable := 0
	for _, name := range names {
		if !cfg.Providers[name].Enabled {
			continue
		}
		if _, err := factory.Get(name); err != nil {
			r.warn("Provider: "+name, err.Error())
			continue
		}
		usable++
		r.pass("Provider: "+name, "configured")
	}
	if _, err := factory.Select(""); err != nil {
		r.fail("Default provider", err.Error())
	} else if usable > 0 {
		r.pass("Default provider", cfg.General.DefaultProvider)
	}

	if cfg.Tools.News.APIKey == "" {
		r.warn("Tool: news", "tools.news.apiKey not set; news lookups will fail")
	}
	if cfg.Tools.Weather.DefaultCity == "" {
		r.warn("Tool: weather", "no default city; unknown cities are rejected")
	}
	if f := tool.NewFilter(cfg.Tools.Enabled, cfg.Tools.Denied); f.IsEmpty() {
		r.pass("Tool filter", "all built-in tools enabled")
	} else {
		r.pass("Tool filter", fmt.Sprintf("%d allowed, %d denied", len(cfg.Tools.Enabled), len(cfg.Tools.Denied)))
	}

	if err := checkAddr(cfg.Server.Addr); err != nil {
		r.warn("Server address", fmt.Sprintf("%s may be in use: %v", cfg.Server.Addr, err))
	} else {
		r.pass("Server address", cfg.Server.Addr+" available")
	}

	fmt.Fprintf(w, "\nResults: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	return nil
}

// checkCache opens the configured store and reads it once.
func checkCache(ctx context.Context, cc config.CacheConfig) error {
	store, closer, err := openStore(cc)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	if store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = store.Load(ctx)
	return err
}

func cacheDetail(cc config.CacheConfig) string {
	switch cc.Backend {
	case "redis":
		return cc.RedisAddr
	case "memory":
		return "in-memory only"
	}
	return cc.Path
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
