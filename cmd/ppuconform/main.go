package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	getopt "github.com/pborman/getopt/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/vatine/ppuconform/pkg/config"
	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/harness"
	"github.com/vatine/ppuconform/pkg/record"
	"github.com/vatine/ppuconform/pkg/script"
	"github.com/vatine/ppuconform/pkg/suite"
)

// Exit codes.
const (
	exitPass    = 0
	exitFailed  = 1
	exitHarness = 2
)

func setupLogging(level logrus.Level) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: !term.IsTerminal(int(os.Stderr.Fd())),
		FullTimestamp: true,
	})
	logrus.SetLevel(level)
}

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optScript := getopt.StringLong("script", 's', "", "Lua script with extra cases")
	optParallel := getopt.IntLong("parallel", 'p', 0, "Number of shards to run in parallel")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug to console")
	optBreak := getopt.ListLong("break", 'b', "Mnemonic the reference CPU should get wrong")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(exitPass)
	}
	os.Exit(run(*optConfig, *optScript, *optParallel, *optDebug, *optBreak))
}

func run(cfgPath, scriptPath string, parallel int, debug bool, breaks []string) int {
	setupLogging(logrus.InfoLevel)

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			logrus.WithError(err).Error("bad configuration")
			return exitHarness
		}
	}
	level, _ := cfg.Level()
	if debug {
		level = logrus.DebugLevel
	}
	setupLogging(level)
	if scriptPath == "" {
		scriptPath = cfg.Script
	}
	if parallel == 0 {
		parallel = cfg.Shards
	}
	breaks = append(breaks, cfg.Break...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	families, _ := cfg.FamilyList()
	cases, err := suite.Cases(families...)
	if err != nil {
		logrus.WithError(err).Error("could not build the case table")
		return exitHarness
	}
	if scriptPath != "" {
		extra, err := script.Load(ctx, scriptPath)
		if err != nil {
			logrus.WithError(err).Error("could not load script")
			return exitHarness
		}
		cases = append(cases, extra...)
	}

	factory := func() harness.Target {
		c := cpu.NewCPU()
		for _, name := range breaks {
			if err := c.Break(name); err != nil {
				logrus.WithError(err).Warn("cannot break instruction")
			}
		}
		return c
	}

	opts := cfg.Options()
	scratch := make([]byte, harness.MinScratch*max(parallel, 1))
	failures := make([]byte, max(harness.MinFailures, len(cases)*record.Size))

	logrus.WithFields(logrus.Fields{
		"cases":  len(cases),
		"shards": parallel,
	}).Info("starting run")

	var n int
	if parallel > 1 {
		n, err = harness.RunParallel(ctx, parallel, factory, opts, cases, 0, scratch, failures, 1.0)
	} else {
		n, err = harness.Run(factory(), opts, cases, 0, scratch, failures, 1.0)
	}
	if err != nil || n < 0 {
		logrus.WithError(err).WithField("code", n).Error("harness failed")
		return exitHarness
	}

	recs, err := record.Decode(failures, n, opts.Order)
	if err != nil {
		logrus.WithError(err).Error("could not decode failure records")
		return exitHarness
	}
	for _, r := range recs {
		fmt.Println(r)
	}
	fmt.Printf("%d failures out of %d cases\n", n, len(cases))
	if n > 0 {
		return exitFailed
	}
	return exitPass
}
