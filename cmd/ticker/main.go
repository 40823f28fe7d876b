// Command ticker is a self-hosted alternative to an external cron service:
// it POSTs the tick endpoint on a schedule. The server stays tick-driven
// either way; this process holds no job state.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
)

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	tickURL := envStr("TICK_URL", "http://localhost:8080/cron/tick")
	schedule := envStr("TICK_SCHEDULE", "@every 1m")
	secret := os.Getenv("CRON_SECRET")
	limit := os.Getenv("TICK_LIMIT")

	client := &http.Client{Timeout: 90 * time.Second}

	fire := func() {
		u, err := url.Parse(tickURL)
		if err != nil {
			logger.Error("bad tick url", "url", tickURL, "error", err)
			return
		}
		q := u.Query()
		if secret != "" {
			q.Set("secret", secret)
		}
		if limit != "" {
			q.Set("limit", limit)
		}
		u.RawQuery = q.Encode()

		start := time.Now()
		resp, err := client.Post(u.String(), "application/json", nil)
		if err != nil {
			logger.Error("tick request failed", "error", err)
			return
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		if resp.StatusCode != http.StatusOK {
			logger.Error("tick rejected", "status", resp.StatusCode, "body", string(body))
			return
		}
		logger.Info("tick done", "cost", time.Since(start).Round(time.Millisecond), "response", string(body))
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, fire); err != nil {
		fmt.Fprintf(os.Stderr, "invalid TICK_SCHEDULE %q: %v\n", schedule, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("ticker started", "url", tickURL, "schedule", schedule)
	c.Start()

	<-ctx.Done()
	logger.Info("ticker stopping")
	<-c.Stop().Done()
}
