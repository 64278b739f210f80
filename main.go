package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delivery-track/cmd/carrier"
	"delivery-track/cmd/watch"
	"delivery-track/internal/cli"
	"delivery-track/internal/config"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, roleArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {

	case cli.ModeCarrier:
		fs := flag.NewFlagSet(cli.ModeCarrier, flag.ContinueOnError)
		cfgPath := fs.String("config", "./config/config.yaml", "Path to the YAML config file")
		deliveryID := fs.String("delivery", "", "Delivery ID to stream positions for")
		token := fs.String("token", os.Getenv("TRACK_TOKEN"), "Tracking credential token")
		interval := fs.Int("interval", 0, "Minimum seconds between forwarded samples (0 = config default)")
		cli.AttachUsage(fs, cli.ModeCarrier)

		if err := fs.Parse(roleArgs); err != nil {
			exitFlagErr(err)
		}
		cfg := mustLoadConfig(*cfgPath)
		requireDelivery(fs, *deliveryID, *token)

		ivl := time.Duration(cfg.Sampling.IntervalSeconds) * time.Second
		if *interval > 0 {
			ivl = time.Duration(*interval) * time.Second
		}
		if err := carrier.Run(ctx, cfg, *deliveryID, *token, ivl); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeWatch:
		fs := flag.NewFlagSet(cli.ModeWatch, flag.ContinueOnError)
		cfgPath := fs.String("config", "./config/config.yaml", "Path to the YAML config file")
		deliveryID := fs.String("delivery", "", "Delivery ID to observe")
		token := fs.String("token", os.Getenv("TRACK_TOKEN"), "Tracking credential token")
		port := fs.Int("port", 0, "Local status port (0 = config default)")
		cli.AttachUsage(fs, cli.ModeWatch)

		if err := fs.Parse(roleArgs); err != nil {
			exitFlagErr(err)
		}
		cfg := mustLoadConfig(*cfgPath)
		requireDelivery(fs, *deliveryID, *token)

		if *port > 0 {
			cfg.Watch.Port = *port
		}
		if err := watch.Run(ctx, cfg, *deliveryID, *token); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}
}

func exitFlagErr(err error) {
	if err == flag.ErrHelp {
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(2)
}

func mustLoadConfig(path string) *config.Config {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	return cfg
}

func requireDelivery(fs *flag.FlagSet, deliveryID, token string) {
	if deliveryID == "" {
		fmt.Fprintln(os.Stderr, "Error: --delivery is required")
		fs.Usage()
		os.Exit(2)
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: --token (or TRACK_TOKEN) is required")
		fs.Usage()
		os.Exit(2)
	}
}
