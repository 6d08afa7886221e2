package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/vrc20/internal/config"
	"github.com/danmuck/vrc20/internal/gateway"
	"github.com/danmuck/vrc20/internal/ledger"
	"github.com/danmuck/vrc20/internal/observability"
	"github.com/danmuck/vrc20/internal/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "cmd/vrc20d/config.toml", "daemon config path")
	flag.Parse()

	cfg := config.DefaultDaemonConfig()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.LoadDaemonConfig(*configPath)
		if err != nil {
			observability.InitLogger("vrc20d", cfg.LogLevel)
			log.Fatal().Err(err).Msg("failed to load daemon config")
		}
		cfg = loaded
	}
	observability.InitLogger("vrc20d", cfg.LogLevel)
	observability.RegisterMetrics()
	log.Info().Str("path", *configPath).Str("symbol", cfg.Token.Symbol).Msg("loaded daemon config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("vrc20d stopped")
	}
	log.Info().Msg("vrc20d shut down")
}

func run(ctx context.Context, cfg config.DaemonConfig) error {
	book := ledger.NewBook(ledger.Metadata{
		Name:     cfg.Token.Name,
		Symbol:   cfg.Token.Symbol,
		Decimals: cfg.Token.Decimals,
	}, ledger.WithSink(observability.EventCounter{}))

	for _, alloc := range cfg.Token.Genesis {
		if !book.Mint(alloc.To, alloc.Amount) {
			return errors.New("genesis allocation overflows total supply")
		}
		log.Info().Str("to", alloc.To.String()).Str("amount", alloc.Amount.String()).Msg("genesis mint")
	}

	server := transport.NewServer(cfg.Transport, book,
		transport.WithServerObserver(observability.DispatchObserver("tcp")))
	book.Subscribe(server)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(server.Serve(gctx, ln))
	})
	if cfg.GatewayEnabled {
		gw := gateway.New(cfg.GatewayAddr, book, int64(cfg.Transport.Limits.MaxPayloadBytes))
		g.Go(func() error {
			return ignoreCanceled(gw.Serve(gctx))
		})
	}
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
