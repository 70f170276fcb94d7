package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"storebot-tg-app/internal/bot"
	"storebot-tg-app/internal/config"
	"storebot-tg-app/internal/gateway"
	"storebot-tg-app/internal/ledger"
	"storebot-tg-app/internal/shop"
	"storebot-tg-app/internal/store"
	"storebot-tg-app/internal/ticket"
	"storebot-tg-app/internal/web"
)

func main() {
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)

	// 0. Load Config (Envars)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if len(cfg.AdminIDs) == 0 {
		logger.Println("Warning: STORE_ADMIN_IDS not set. Admin commands will be rejected for everyone.")
	}

	// 1. Load Review Ledger (the only durable state)
	led := ledger.New(logger, cfg.LedgerFile)
	if err := led.Load(); err != nil {
		logger.Fatalf("Failed to load ledger: %v", err)
	}
	logger.Printf("Review ledger loaded from %s", led.Path())

	// 2. Init Telegram Gateway
	tg, err := gateway.NewTelegram(logger, cfg.TelegramToken)
	if err != nil {
		logger.Fatalf("Failed to init Telegram bot: %v", err)
	}

	// 3. Wire Stores and the Transaction Machine
	st := store.New()
	machine := shop.NewMachine(logger, st, led, cfg.AdminIDs)
	tickets := ticket.NewManager(logger, st, tg, machine.IsAdmin)
	router := bot.NewRouter(logger, cfg, st, machine, tickets, tg)

	// 4. Status Web Surface
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      web.NewRouter(logger, st, led),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     logger,
	}
	go func() {
		logger.Printf("Status server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Status server error: %v", err)
		}
	}()

	// 5. Single Event-Loop Worker
	updates := tg.Updates(60)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runUpdateLoop(router, tg, updates)
	}()
	logger.Println("Bot is online and ready.")

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Printf("Received signal %s. Shutting down...", sig)

	tg.Stop()
	select {
	case <-loopDone:
		logger.Println("Update loop stopped.")
	case <-time.After(10 * time.Second):
		logger.Println("Update loop did not stop in time.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("Status server shutdown failed: %v", err)
	}

	if err := led.Save(); err != nil {
		logger.Printf("Final ledger save failed: %v", err)
	}
	logger.Println("Shutdown complete.")
}

// runUpdateLoop is the single worker that processes every inbound
// gateway event in order. All session mutations happen here.
func runUpdateLoop(router *bot.Router, tg *gateway.Telegram, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		action, message := gateway.DecodeUpdate(update)
		switch {
		case action != nil:
			if update.CallbackQuery != nil {
				tg.Ack(update.CallbackQuery.ID)
			}
			router.HandleAction(action)
		case message != nil:
			router.HandleMessage(message)
		}
	}
}
