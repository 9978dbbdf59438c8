package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rahul/perfwizard/internal/gateway"
	"github.com/rahul/perfwizard/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command protocol and the enabled chat gateways",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	live := observability.IsTerminal()
	var logOut io.Writer
	if live {
		// Route all log output through the terminal mutex so it never
		// interrupts the status line's cursor save/restore sequence.
		logOut = observability.NewTermWriter()
	}

	a, err := setup(ctx, logOut)
	if err != nil {
		return err
	}
	defer a.Close()

	var gateways []gateway.Messenger
	conv := &gateway.Conversation{
		Dispatcher: a.dispatcher,
		Session:    a.cfg.App.SessionID,
		Agent:      a.cfg.Agent.Default,
		Enabled:    a.cfg.Sources.Enabled,
	}

	httpCfg, ok := a.cfg.GetGateway("http")
	if ok {
		gateways = append(gateways, gateway.NewHTTPGateway(a.dispatcher, httpCfg.Addr, httpCfg.Token, a.cfg.App.SessionID, a.logger))
	}
	if tgCfg, ok := a.cfg.GetGateway("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, conv, a.logger)
		if err != nil {
			return fmt.Errorf("telegram gateway: %w", err)
		}
		gateways = append(gateways, tg)
	}
	if dcCfg, ok := a.cfg.GetGateway("discord"); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, conv, a.logger)
		if err != nil {
			return fmt.Errorf("discord gateway: %w", err)
		}
		gateways = append(gateways, dc)
	}
	if len(gateways) == 0 {
		return fmt.Errorf("no gateway is enabled in %s", configPath)
	}

	if live {
		observability.PrintBanner(a.cfg.App.SiteURL)
		observability.InitializeTerminal()
		defer observability.CleanupTerminal()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, gw := range gateways {
		g.Go(func() error { return gw.Start(ctx) })
	}

	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		observability.Heartbeat()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				observability.Heartbeat()
				a.logger.LogHeartbeat()
			}
		}
	})

	if live {
		g.Go(func() error {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					observability.PrintLiveStatus()
				}
			}
		})
	}

	err = g.Wait()
	a.logger.Z.Info("performance wizard stopped", zap.Error(err))
	return err
}
