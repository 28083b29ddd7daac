package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"aviator/internal/models"
	"aviator/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// UserDirectory is the player-account surface the admin commands need.
type UserDirectory interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// handleUserCommand shows a player's ledger state: /user <telegram_id>
func (b *Bot) handleUserCommand(ctx context.Context, message *tgbotapi.Message) {
	telegramID, err := strconv.ParseInt(strings.TrimSpace(message.CommandArguments()), 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "Usage: /user <telegram\\_id>", nil)
		return
	}

	user, err := b.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		b.logger.Errorf("Failed to look up user %d: %v", telegramID, err)
		b.sendMessage(message.Chat.ID, "❌ Failed to look up user", nil)
		return
	}
	if user == nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("ℹ️ No user with telegram id `%d`.", telegramID), nil)
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"👤 User `%d` (telegram `%d`)\n💰 Balance: `%s USD`\n📬 Deposit address: `%s`",
		user.ID, user.TelegramID, user.BalanceUSD.StringFixed(2), user.DepositAddress), nil)
}

// handleAddUserCommand registers a player and their watched deposit
// address: /adduser <telegram_id> <deposit_address>
func (b *Bot) handleAddUserCommand(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 {
		b.sendMessage(message.Chat.ID, "Usage: /adduser <telegram\\_id> <deposit\\_address>", nil)
		return
	}

	telegramID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, "❌ Telegram id must be a number", nil)
		return
	}
	address := args[1]
	if !utils.IsValidSolanaAddress(address) {
		b.sendMessage(message.Chat.ID, "❌ That is not a valid Solana address", nil)
		return
	}

	existing, err := b.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		b.logger.Errorf("Failed to look up user %d: %v", telegramID, err)
		b.sendMessage(message.Chat.ID, "❌ Failed to look up user", nil)
		return
	}
	if existing != nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("ℹ️ User `%d` already registered.", telegramID), nil)
		return
	}

	user := &models.User{
		TelegramID:     telegramID,
		BalanceUSD:     decimal.Zero,
		DepositAddress: address,
		CreatedAt:      time.Now(),
	}
	if err := b.users.CreateUser(ctx, user); err != nil {
		b.logger.Errorf("Failed to create user %d: %v", telegramID, err)
		b.sendMessage(message.Chat.ID, "❌ Failed to register user", nil)
		return
	}

	b.logger.Infof("Registered user %d with deposit address %s", telegramID, address)
	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"✅ Registered user `%d`. Deposits to `%s` will be credited once finalized.", telegramID, address), nil)
}
