// Package main is a small command-line harness for exercising a
// Client against a live origin: publish one message, or subscribe and
// print messages as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/duskline/hubclient"
	"github.com/duskline/hubclient/internal/buildinfo"
)

func main() {
	origin := flag.String("origin", "", "override the default origin (host:port)")
	publishKey := flag.String("pub-key", "demo", "publish key")
	subscribeKey := flag.String("sub-key", "demo", "subscribe key")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() == 0 {
		printUsage()
		return
	}

	var opts []hubclient.Option
	opts = append(opts, hubclient.WithLogger(logger))
	if *origin != "" {
		opts = append(opts, hubclient.WithOrigin(*origin))
	}

	switch flag.Arg(0) {
	case "publish":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "usage: hubclient-demo publish <channel> <payload>")
			os.Exit(1)
		}
		runPublish(logger, *publishKey, *subscribeKey, flag.Arg(1), flag.Arg(2), opts)
	case "subscribe":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: hubclient-demo subscribe <channel>")
			os.Exit(1)
		}
		runSubscribe(logger, *publishKey, *subscribeKey, flag.Arg(1), opts)
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("hubclient-demo - exercise the publish/subscribe client")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  publish <channel> <payload>   publish one message")
	fmt.Println("  subscribe <channel>           subscribe and print messages")
	fmt.Println("  version                       show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func runPublish(logger *slog.Logger, pubKey, subKey, channel, payload string, opts []hubclient.Option) {
	client, err := hubclient.NewClient(pubKey, subKey, opts...)
	if err != nil {
		logger.Error("failed to build client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	tt, err := client.Publish(context.Background(), channel, payload)
	if err != nil {
		logger.Error("publish failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("published, timetoken=%s\n", tt.T)
}

func runSubscribe(logger *slog.Logger, pubKey, subKey, channel string, opts []hubclient.Option) {
	client, err := hubclient.NewClient(pubKey, subKey, opts...)
	if err != nil {
		logger.Error("failed to build client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := client.Subscribe(ctx, channel)
	if err != nil {
		logger.Error("subscribe failed", "error", err)
		os.Exit(1)
	}
	defer sub.Drop()

	logger.Info("subscribed", "channel", channel)
	for {
		msg, ok := sub.Next(ctx)
		if !ok {
			logger.Info("subscription ended")
			return
		}
		fmt.Printf("[%s] %s: %s\n", msg.Kind, msg.Channel, string(msg.Payload))
	}
}
