package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/wizardpb/diningphils/core"
	"github.com/wizardpb/diningphils/internal/render"
)

// buildFunc constructs a table for one discipline from shared
// parameters.
type buildFunc func(p core.Params, status core.StatusFunc, l log15.Logger) (core.Table, error)

// runTable drives a full simulation: build, start, render status lines
// until the run ends (supply exhausted, --run-for elapsed, or SIGINT),
// then print the summary.
func runTable(build buildFunc) error {
	params, err := configParams()
	if err != nil {
		return err
	}

	console := render.NewConsole(os.Stdout, !viper.GetBool("no-colour"))

	l := log15.New()
	if !viper.GetBool("verbose") {
		l.SetHandler(log15.DiscardHandler())
	}

	tbl, err := build(params, console.Status, l)
	if err != nil {
		return err
	}
	tbl.Start()

	done := make(chan error, 1)
	go func() { done <- tbl.Wait() }()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigC)

	var deadline <-chan time.Time
	if d := viper.GetDuration("run-for"); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err = <-done:
	case <-sigC:
		tbl.Stop()
		err = <-done
	case <-deadline:
		tbl.Stop()
		err = <-done
	}

	console.Summary(tbl.Philosophers())
	return err
}

// configParams assembles core.Params from viper (flags, env,
// config file).
func configParams() (core.Params, error) {
	params := core.Params{
		Philosophers: viper.GetInt("phil-count"),
		Servings:     viper.GetInt64("food-amount"),
	}
	if params.Servings == 0 {
		params.Servings = -1 // unbounded
	}

	var err error
	if params.ThinkRange, err = parseRange(viper.GetString("think-range")); err != nil {
		return params, errors.Wrap(err, "invalid --think-range")
	}
	if params.EatRange, err = parseRange(viper.GetString("eat-range")); err != nil {
		return params, errors.Wrap(err, "invalid --eat-range")
	}
	return params, params.Validate()
}

// parseRange parses "min,max" duration bounds; a single duration means
// a fixed delay.
func parseRange(s string) (core.DurationRange, error) {
	var r core.DurationRange
	parts := strings.SplitN(s, ",", 2)

	min, err := time.ParseDuration(strings.TrimSpace(parts[0]))
	if err != nil {
		return r, errors.Wrapf(err, "bad duration %q", parts[0])
	}
	r.Min, r.Max = min, min

	if len(parts) == 2 {
		max, err := time.ParseDuration(strings.TrimSpace(parts[1]))
		if err != nil {
			return r, errors.Wrapf(err, "bad duration %q", parts[1])
		}
		r.Max = max
	}
	if r.Max < r.Min {
		return r, errors.Errorf("max %v below min %v", r.Max, r.Min)
	}
	return r, nil
}
