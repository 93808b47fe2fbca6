// Command smsmodemctl drives a GSM modem over a serial port: send and
// receive SMS, query modem/network/signal state, and optionally expose the
// same operations over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/northfield-iot/gsmmodem/modem"
	"github.com/northfield-iot/gsmmodem/pdu"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	subcommand := os.Args[1]

	fs := flag.NewFlagSet(subcommand, flag.ExitOnError)
	fs.String("serial-port", "/dev/ttyUSB0", "serial port to connect to the modem")
	fs.Int("baud-rate", 115200, "baud rate for serial communication")
	fs.String("bind-address", "0.0.0.0:8080", "bind address for the HTTP server (serve subcommand)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Parse(os.Args[2:])

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fs))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load configuration:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(config.LogLevel)}))

	modemCfg, err := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{PortName: config.SerialPort, BaudRate: config.BaudRate}).
		WithCodec(pdu.GSM0340Codec{}).
		WithATTimeout(10 * time.Second).
		WithInitTimeout(30 * time.Second).
		Build()
	if err != nil {
		logger.Error("build modem config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	m, err := modem.New(ctx, modemCfg)
	if err != nil {
		logger.Error("connect to modem", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	args := fs.Args()
	var cmdErr error
	switch subcommand {
	case "send":
		cmdErr = runSend(ctx, m, args)
	case "list":
		cmdErr = runList(ctx, m, args)
	case "read":
		cmdErr = runRead(ctx, m, args)
	case "delete":
		cmdErr = runDelete(ctx, m, args)
	case "info":
		cmdErr = runInfo(ctx, m)
	case "watch":
		cmdErr = runWatch(ctx, m, logger)
	case "serve":
		cmdErr = runServe(ctx, m, config, logger)
	default:
		usage()
		os.Exit(2)
	}

	if cmdErr != nil {
		logger.Error("command failed", "command", subcommand, "error", cmdErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: smsmodemctl <send|list|read|delete|info|watch|serve> [flags] [args]

  send <to> <text>      encode and send an SMS
  list [stat]            list stored messages (default stat=4, all)
  read <index>           read a single message by index
  delete <index>         delete a message (and its fragments, if concatenated)
  info                   print modem/network/signal info
  watch                  block, printing incoming SMS as they arrive
  serve                  run the HTTP API server`)
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
