// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joamaki/rxcore/rx"
)

type settings struct {
	Config   string        `mapstructure:"config"`
	Watch    bool          `mapstructure:"watch"`
	URL      string        `mapstructure:"url"`
	Poll     time.Duration `mapstructure:"poll"`
	Rate     float64       `mapstructure:"rate"`
	Burst    int           `mapstructure:"burst"`
	LogLevel string        `mapstructure:"log-level"`
}

var rootCmd = &cobra.Command{
	Use:   "rxcore-example",
	Short: "Follow a configuration file and a remote resource",
	Long: `rxcore-example prints a YAML configuration file and, with --watch,
the differences each time it changes. With --url it also polls the given
URL and reports when its content changes.

Every flag can also be set through the environment, e.g. RXCORE_URL.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("config", "", "YAML configuration file to print")
	flags.Bool("watch", false, "keep following the configuration file for changes")
	flags.String("url", "", "URL to poll")
	flags.Duration("poll", 5*time.Second, "polling interval for --url")
	flags.Float64("rate", 1, "maximum reports per second from --url")
	flags.Int("burst", 1, "report burst size for --url")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	v := viper.New()
	v.SetEnvPrefix("RXCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error parsing settings: %w", err)
	}
	if s.Config == "" && s.URL == "" {
		return nil, fmt.Errorf("nothing to do: set --config and/or --url")
	}
	if s.Poll <= 0 {
		return nil, fmt.Errorf("invalid --poll %s", s.Poll)
	}
	return &s, nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger(), nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(s.LogLevel)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	looper := rx.NewLooper(rx.WithLogger(log), rx.WithName("main"))
	looper.Start()
	defer func() {
		looper.Stop()
		<-looper.Done()
	}()
	sched := rx.NewLooperScheduler(looper)

	var sources []rx.Observable[string]
	if s.Config != "" {
		sources = append(sources, rx.Log(configReports(s.Config, s.Watch), log, "config"))
	}
	if s.URL != "" {
		sources = append(sources,
			rx.Log(urlReports(sched, s.URL, s.Poll, s.Rate, s.Burst), log, "url"))
	}

	return printUntilDone(ctx, cmd, rx.ObserveOn(rx.MergeAll(sources...), sched))
}

// printUntilDone prints the reports until they complete or 'ctx' is
// cancelled.
func printUntilDone(ctx context.Context, cmd *cobra.Command, reports rx.Observable[string]) error {
	out := cmd.OutOrStdout()
	done := make(chan error, 1)
	sub := reports.Subscribe(rx.ObserverFuncs[string]{
		Next:      func(line string) { fmt.Fprintln(out, line) },
		Completed: func() { done <- nil },
		Error:     func(err error) { done <- err },
	})
	defer sub.Cancel()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
