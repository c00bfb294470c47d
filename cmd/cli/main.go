package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/quaverlab/vocalgap/pkg/logger"
	"github.com/quaverlab/vocalgap/pkg/vocalgap"
)

const (
	exitOK       = 0
	exitError    = 1
	exitNotFound = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return exitError
	}

	switch os.Args[1] {
	case "scan":
		return runScan(os.Args[2:])
	case "confidence":
		return runConfidence(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		return exitError
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `vocalgap - locate where vocals begin in a song

Usage:
  vocalgap scan       -in <audio> -expected <ms> [options]
  vocalgap confidence -in <audio> -onset <ms> [options]

Options:
  -config <path>   YAML scan configuration (defaults baked in)
  -temp <dir>      directory for transcoded intermediates
  -cache <n>       isolated-vocals cache capacity

Exit codes:
  0  onset found / score computed
  1  error
  2  no sustained vocals found`)
}

type commonFlags struct {
	in     string
	config string
	temp   string
	cache  int
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.in, "in", "", "input audio file")
	fs.StringVar(&cf.config, "config", "", "YAML scan configuration file")
	fs.StringVar(&cf.temp, "temp", os.TempDir(), "directory for transcoded intermediates")
	fs.IntVar(&cf.cache, "cache", vocalgap.DefaultCacheCapacity, "isolated-vocals cache capacity")
	return cf
}

func buildService(cf *commonFlags) (vocalgap.Service, vocalgap.ScanConfig, error) {
	scanCfg := vocalgap.DefaultScanConfig()
	if cf.config != "" {
		loaded, err := vocalgap.LoadScanConfig(cf.config)
		if err != nil {
			return nil, scanCfg, err
		}
		scanCfg = loaded
	}
	svc, err := vocalgap.NewService(
		vocalgap.WithTempDir(cf.temp),
		vocalgap.WithCacheCapacity(cf.cache),
		vocalgap.WithScanConfig(scanCfg),
	)
	return svc, scanCfg, err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runScan(args []string) int {
	log := logger.GetLogger()
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	cf := registerCommon(fs)
	expected := fs.Float64("expected", 0, "expected vocal onset in milliseconds")
	fs.Parse(args)

	if cf.in == "" {
		fmt.Fprintln(os.Stderr, "scan: -in is required")
		return exitError
	}

	svc, scanCfg, err := buildService(cf)
	if err != nil {
		log.Errorf("setup failed: %v", err)
		return exitError
	}

	ctx, stop := signalContext()
	defer stop()

	outcome, err := svc.ScanForOnset(ctx, cf.in, *expected)
	if err != nil {
		log.Errorf("scan failed: %v", err)
		return exitError
	}
	if outcome.Cancelled {
		color.New(color.FgYellow).Fprintf(os.Stderr, "scan cancelled after %d chunks\n", outcome.ChunksProcessed)
		if !outcome.Found {
			return exitError
		}
	}
	if !outcome.Found {
		color.New(color.FgRed).Printf("no sustained vocals found (%d chunks, expansion %d)\n",
			outcome.ChunksProcessed, outcome.ExpansionReached)
		return exitNotFound
	}

	confidence, _ := svc.ComputeConfidence(ctx, cf.in, outcome.OnsetMs)
	color.New(color.FgGreen, color.Bold).Printf("vocals begin at %.0f ms\n", outcome.OnsetMs)
	fmt.Printf("confidence: %.2f  chunks: %d  expansion: %d  method: %s\n",
		confidence, outcome.ChunksProcessed, outcome.ExpansionReached, svc.MethodName())
	if confidence < scanCfg.ConfidenceThreshold {
		color.New(color.FgYellow).Printf("confidence below threshold %.2f; treat the result as a suggestion\n",
			scanCfg.ConfidenceThreshold)
	}
	return exitOK
}

func runConfidence(args []string) int {
	log := logger.GetLogger()
	fs := flag.NewFlagSet("confidence", flag.ExitOnError)
	cf := registerCommon(fs)
	onset := fs.Float64("onset", -1, "onset position to score, in milliseconds")
	fs.Parse(args)

	if cf.in == "" || *onset < 0 {
		fmt.Fprintln(os.Stderr, "confidence: -in and -onset are required")
		return exitError
	}

	svc, _, err := buildService(cf)
	if err != nil {
		log.Errorf("setup failed: %v", err)
		return exitError
	}

	ctx, stop := signalContext()
	defer stop()

	score, err := svc.ComputeConfidence(ctx, cf.in, *onset)
	if err != nil {
		log.Errorf("confidence failed: %v", err)
		return exitError
	}
	color.New(color.FgGreen).Printf("confidence at %.0f ms: %.2f\n", *onset, score)
	return exitOK
}
