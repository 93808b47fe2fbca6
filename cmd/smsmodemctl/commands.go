package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/northfield-iot/gsmmodem/modem"
)

func runSend(ctx context.Context, m *modem.Modem, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: smsmodemctl send <to> <text>")
	}
	return m.SendMessage(ctx, args[0], args[1])
}

func runList(ctx context.Context, m *modem.Modem, args []string) error {
	stat := 4
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid stat %q: %w", args[0], err)
		}
		stat = v
	}
	messages, err := m.ListMessages(ctx, stat)
	if err != nil {
		return err
	}
	return printJSON(messages)
}

func runRead(ctx context.Context, m *modem.Modem, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: smsmodemctl read <index>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}
	msg, err := m.ReadMessage(ctx, index)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("no message at index %d", index)
	}
	return printJSON(msg)
}

func runDelete(ctx context.Context, m *modem.Modem, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: smsmodemctl delete <index>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}
	msg, err := m.DeleteMessage(ctx, index)
	if err != nil {
		return err
	}
	return printJSON(msg)
}

func runInfo(ctx context.Context, m *modem.Modem) error {
	info, err := m.ModemInfo(ctx)
	if err != nil {
		return err
	}
	network, err := m.NetworkInfo(ctx)
	if err != nil {
		return err
	}
	signal, err := m.SignalQuality(ctx)
	if err != nil {
		return err
	}
	return printJSON(struct {
		Modem   modem.ModemInfo      `json:"modem"`
		Network modem.NetworkInfo    `json:"network"`
		Signal  modem.SignalQuality  `json:"signal"`
	}{info, network, signal})
}

// runWatch subscribes to the modem's event surface and blocks, printing
// every completed SMS as it arrives, until interrupted.
func runWatch(ctx context.Context, m *modem.Modem, logger *slog.Logger) error {
	token := m.Events.Subscribe(func(ev modem.Event) {
		if ev.Kind != modem.EventSMSMessage {
			return
		}
		msg, ok := ev.Payload.(modem.Message)
		if !ok {
			return
		}
		logger.Info("message received", "from", msg.From, "text", msg.Text)
		printJSON(msg)
	})
	defer m.Events.Unsubscribe(token)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func runServe(ctx context.Context, m *modem.Modem, config *Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Modem:  m,
		},
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
