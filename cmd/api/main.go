package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"traderoom/internal/admin"
	"traderoom/internal/auth"
	"traderoom/internal/config"
	"traderoom/internal/db"
	"traderoom/internal/health"
	"traderoom/internal/httpserver"
	"traderoom/internal/kyc"
	"traderoom/internal/ledger"
	"traderoom/internal/marketdata"
	"traderoom/internal/trades"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	feed := marketdata.NewFeed()
	bus := marketdata.NewBus()
	candles := marketdata.NewCandleCache(5000)
	entries := marketdata.Catalog(cfg.Symbols)
	if len(entries) == 0 {
		log.Fatal("no known symbols in SYMBOLS")
	}
	simulator := marketdata.NewSimulator(feed, bus, candles, entries)

	ledgerSvc := ledger.NewService(pool)
	tradeStore := trades.NewStore()
	tradeSvc := trades.NewService(pool, tradeStore, ledgerSvc, feed)
	authSvc := auth.NewService(pool, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)
	welcomeCredit, err := decimal.NewFromString(cfg.WelcomeCredit)
	if err != nil {
		log.Fatal(err)
	}
	authSvc.SetWelcomeCredit(ledgerSvc, welcomeCredit)
	kycSvc := kyc.NewService(pool)

	faucetMax, err := decimal.NewFromString(cfg.FaucetMax)
	if err != nil {
		log.Fatal(err)
	}
	authHandler := auth.NewHandler(authSvc)
	kycHandler := kyc.NewHandler(kycSvc)
	ledgerHandler := ledger.NewHandler(ledgerSvc, kycSvc, cfg.FaucetEnabled, faucetMax)
	tradeHandler := trades.NewHandler(tradeSvc)
	marketHandler := marketdata.NewHandler(entries, candles, feed)
	adminHandler := admin.NewHandler(pool, cfg.JWTSecret, kycSvc, tradeSvc, ledgerSvc, simulator)
	healthHandler := health.NewHandler(pool, feed)
	wsHandler := httpserver.NewWSHandler(bus, authSvc, tradeSvc, cfg.WebSocketOrigin)
	quoteWS := marketdata.NewQuoteWS(cfg.WebSocketOrigin, bus)
	candleWS := marketdata.NewCandleWS(cfg.WebSocketOrigin, bus, candles)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:   authHandler,
		KYCHandler:    kycHandler,
		LedgerHandler: ledgerHandler,
		TradeHandler:  tradeHandler,
		MarketHandler: marketHandler,
		AdminHandler:  adminHandler,
		HealthHandler: healthHandler,
		AuthService:   authSvc,
		InternalToken: cfg.InternalToken,
		JWTSecret:     cfg.JWTSecret,
		WSHandler:     wsHandler,
		QuoteWS:       quoteWS,
		CandleWS:      candleWS,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	simulator.Start(ctx)

	log.Printf("server listening on %s", cfg.HTTPAddr)
	log.Printf("health endpoint: http://localhost%s/health", cfg.HTTPAddr)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
