package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aviator/config"
	"aviator/db"
	"aviator/internal/bot"
	"aviator/internal/game"
	"aviator/internal/jobs"
	"aviator/internal/repository"
	"aviator/internal/service"
	"aviator/internal/solana"
	"aviator/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	logger := utils.InitLogger()
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.Fatal("Failed to load config: ", err)
	}

	database, err := db.ConnectDb(cfg.DB_URL, logger)
	if err != nil {
		logger.Fatal(err)
	}

	if err := db.Migrate(database, true, logger); err != nil {
		logger.Fatal(err)
	}

	repo := repository.NewRepository(database, logger)

	chain, err := solana.NewClient(cfg.SolanaRPCURL, cfg.TreasuryPrivateKey, cfg.USDTMint, cfg.TreasuryUSDTAccount, logger)
	if err != nil {
		logger.Fatal("Failed to create solana client: ", err)
	}

	if cfg.TreasuryAddress != "" {
		if balance, err := chain.GetBalance(context.Background(), cfg.TreasuryAddress); err != nil {
			logger.Warnf("Failed to read treasury balance: %v", err)
		} else {
			logger.Infof("💰 Treasury balance: %s SOL", balance.String())
		}
	}

	rates := service.NewRates(logger, time.Duration(cfg.RateTTLSeconds)*time.Second)
	withdrawals := service.NewWithdrawalService(repo, rates, chain, nil, &cfg, logger)
	deposits := service.NewDepositService(repo, chain, rates, &cfg, logger)

	gameService := game.NewService(repo, logger,
		time.Duration(cfg.BettingWindowSeconds)*time.Second,
		time.Duration(cfg.RoundCooldownSeconds)*time.Second)

	telegramBot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal("Failed to create bot API: ", err)
	}

	adminBot := bot.NewBot(telegramBot, withdrawals, repo, logger, &cfg)
	withdrawals.SetNotifier(adminBot)
	go adminBot.Start()

	scheduler := jobs.NewScheduler(gameService, deposits, withdrawals, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler: ", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Shutting down...")
	scheduler.Stop()
	telegramBot.StopReceivingUpdates()
}
