package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/quantde/nolgate/internal/config"
	"github.com/quantde/nolgate/internal/logger"
	"github.com/quantde/nolgate/internal/session"
	"github.com/quantde/nolgate/internal/types"
	"github.com/quantde/nolgate/internal/version"
)

// runAction connects to the terminal, subscribes to the managed instrument
// and pumps session events until interrupted.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	if isin := cmd.String("isin"); isin != "" {
		cfg.InstrumentISIN = isin
	}

	username := cmd.String("username")
	password := cmd.String("password")
	autoConfirm := cmd.Bool("auto-confirm")

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	sess := session.NewSession(cfg, appLogger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := sess.Subscribe(ctx, cfg.InstrumentISIN); err != nil {
		appLogger.Warn("market data subscription failed", zap.Error(err))
	}

	appLogger.Info("session running",
		zap.String("run_id", sess.RunID()),
		zap.String("isin", cfg.InstrumentISIN),
	)

	for {
		select {
		case <-ctx.Done():
			sess.Disconnect()

			return nil

		case event := <-sess.Events():
			handleEvent(sess, appLogger, event, autoConfirm)

			if event.Type == types.EventDisconnected {
				return nil
			}
		}
	}
}

func handleEvent(sess *session.Session, log *logger.Logger, event types.Event, autoConfirm bool) {
	switch event.Type {
	case types.EventConfirmBotAction:
		request, ok := event.Data.(types.ConfirmationRequest)
		if !ok {
			return
		}

		if autoConfirm {
			log.Info("confirming stop move", zap.Float64("new_stop", request.NewStopPrice))

			if err := sess.Confirm(request); err != nil {
				log.Error("stop move failed", zap.Error(err))
			}

			return
		}

		log.Info("rejecting unattended stop move, run with --auto-confirm to apply",
			zap.Float64("new_stop", request.NewStopPrice))
		sess.Reject(request)

	case types.EventBotLog, types.EventLog:
		if msg, ok := event.Data.(string); ok {
			log.Info(msg)
		}

	case types.EventExecReport:
		if report, ok := event.Data.(types.ExecutionReport); ok {
			log.Info("execution report",
				zap.String("client_id", report.ClientRequestID),
				zap.String("broker_id", report.BrokerOrderID),
				zap.String("status", string(report.Status)),
				zap.String("last_px", report.LastFillPrice),
			)
		}

	case types.EventMarketDataUpdate:
		if quote, ok := event.Data.(types.Quote); ok {
			log.Debug("quote",
				zap.Float64("bid", quote.Bid),
				zap.Float64("ask", quote.Ask),
				zap.Float64("last", quote.LastPrice),
			)
		}

	case types.EventPortfolioUpdate:
		if update, ok := event.Data.(types.PortfolioUpdate); ok {
			log.Info("portfolio update",
				zap.Int("open_position_qty", update.OpenPositionQty),
				zap.Bool("existing_position", update.ExistingPositionFound),
			)
		}

	case types.EventBotStateUpdate:
		if update, ok := event.Data.(types.BotStateUpdate); ok {
			log.Info("bot state",
				zap.Bool("in_position", update.EntryPrice.IsSome()),
				zap.Float64("daily_profit", update.DailyProfit),
			)
		}

	case types.EventDisconnected:
		log.Info("disconnected from terminal")
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "nolgate",
		Usage:   "Trading client for the local brokerage terminal",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "nolgate.yaml",
			},
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Terminal login username",
				Sources:  cli.EnvVars("NOL_USERNAME"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Usage:    "Terminal login password",
				Sources:  cli.EnvVars("NOL_PASSWORD"),
				Required: true,
			},
			&cli.StringFlag{
				Name:  "isin",
				Usage: "Override the managed instrument ISIN from the config file",
			},
			&cli.BoolFlag{
				Name:  "auto-confirm",
				Usage: "Apply trailing stop moves without operator confirmation",
			},
		},
		Action: runAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
