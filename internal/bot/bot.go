package bot

import (
	"context"

	"aviator/config"
	"aviator/internal/service"
	"aviator/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the admin approval surface: it announces pending withdrawals and
// takes approve/reject actions through inline buttons.
type Bot struct {
	API         *tgbotapi.BotAPI
	withdrawals *service.WithdrawalService
	users       UserDirectory
	logger      *utils.Logger
	config      *config.Config
}

func NewBot(
	api *tgbotapi.BotAPI,
	withdrawals *service.WithdrawalService,
	users UserDirectory,
	logger *utils.Logger,
	config *config.Config,
) *Bot {
	return &Bot{
		API:         api,
		withdrawals: withdrawals,
		users:       users,
		logger:      logger,
		config:      config,
	}
}

func (b *Bot) Start() {
	b.logger.Info("Starting admin bot...")
	updates := b.API.GetUpdatesChan(tgbotapi.NewUpdate(0))
	for update := range updates {
		if update.CallbackQuery != nil {
			b.handleCallbackQuery(context.Background(), update.CallbackQuery)
			continue
		}
		if update.Message != nil && update.Message.IsCommand() {
			b.handleCommand(context.Background(), update.Message)
		}
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return userID == b.config.AdminChatID
}

func (b *Bot) sendMessage(chatID int64, text string, replyMarkup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}
	if _, err := b.API.Send(msg); err != nil {
		b.logger.Errorf("Failed to send message: %v", err)
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.API.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Errorf("Failed to answer callback: %v", err)
	}
}
