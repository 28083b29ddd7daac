package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"aviator/internal/models"
	"aviator/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const withdrawalsPerPage = 5

// WithdrawalPending implements service.Notifier: a fresh manual or
// multi_sig request lands in the admin chat with action buttons.
func (b *Bot) WithdrawalPending(withdrawal *models.WithdrawalRequest) {
	tierNote := ""
	if withdrawal.ApprovalTier == models.TierMultiSig {
		tierNote = fmt.Sprintf(" (%d approvals required)", b.config.MultiSigApprovals)
	}

	msg := fmt.Sprintf(
		"🆕 Withdrawal request #%d%s\n\n"+
			"👤 User: `%d`\n"+
			"📬 Address: `%s`\n"+
			"💰 Amount: `%s %s` (`%s USD`)\n"+
			"⚠️ Risk score: %d",
		withdrawal.ID,
		tierNote,
		withdrawal.UserID,
		withdrawal.ToAddress,
		withdrawal.Amount.String(),
		withdrawal.Currency,
		withdrawal.AmountUSD.StringFixed(2),
		withdrawal.RiskScore,
	)

	b.sendMessage(b.config.AdminChatID, msg, withdrawalKeyboard(withdrawal.ID))
}

func withdrawalKeyboard(id uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("approve_withdraw:%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("reject_withdraw:%d", id)),
		),
	)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message.From.ID) {
		return
	}

	switch message.Command() {
	case "pending":
		b.sendPendingPage(ctx, message.Chat.ID, 0)
	case "user":
		b.handleUserCommand(ctx, message)
	case "adduser":
		b.handleAddUserCommand(ctx, message)
	case "start", "help":
		b.sendMessage(message.Chat.ID,
			"Commands:\n"+
				"/pending - list withdrawal requests awaiting approval\n"+
				"/user <telegram\\_id> - show a player's balance\n"+
				"/adduser <telegram\\_id> <address> - register a player's deposit address", nil)
	}
}

func (b *Bot) sendPendingPage(ctx context.Context, chatID int64, page int) {
	withdrawals, err := b.withdrawals.PendingWithdrawals(ctx)
	if err != nil {
		b.logger.Errorf("Failed to get pending withdrawals: %v", err)
		b.sendMessage(chatID, "❌ Failed to load pending withdrawals", nil)
		return
	}
	if len(withdrawals) == 0 {
		b.sendMessage(chatID, "ℹ️ No withdrawal requests awaiting approval.", nil)
		return
	}

	start := page * withdrawalsPerPage
	if start >= len(withdrawals) {
		start = 0
		page = 0
	}
	end := start + withdrawalsPerPage
	if end > len(withdrawals) {
		end = len(withdrawals)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Pending withdrawals (page %d of %d):\n\n",
		page+1, (len(withdrawals)-1)/withdrawalsPerPage+1))

	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0)
	for i := start; i < end; i++ {
		w := withdrawals[i]
		sb.WriteString(fmt.Sprintf(
			"🆔 #%d · %s tier · risk %d\n👤 User %d\n💰 `%s %s` (`%s USD`) → `%s`\n\n",
			w.ID, w.ApprovalTier, w.RiskScore, w.UserID,
			w.Amount.String(), w.Currency, w.AmountUSD.StringFixed(2), w.ToAddress,
		))
		keyboardRows = append(keyboardRows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ Approve #%d", w.ID), fmt.Sprintf("approve_withdraw:%d", w.ID)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ Reject #%d", w.ID), fmt.Sprintf("reject_withdraw:%d", w.ID)),
		))
	}

	if len(withdrawals) > withdrawalsPerPage {
		paginationRow := make([]tgbotapi.InlineKeyboardButton, 0)
		if page > 0 {
			paginationRow = append(paginationRow,
				tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", fmt.Sprintf("withdraw_page:%d", page-1)))
		}
		if end < len(withdrawals) {
			paginationRow = append(paginationRow,
				tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("withdraw_page:%d", page+1)))
		}
		if len(paginationRow) > 0 {
			keyboardRows = append(keyboardRows, paginationRow)
		}
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboardRows...)
	if _, err := b.API.Send(msg); err != nil {
		b.logger.Errorf("Failed to send pending page: %v", err)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if !b.isAdmin(callback.From.ID) {
		b.answerCallback(callback.ID, "Not authorized")
		return
	}

	data := callback.Data
	switch {
	case strings.HasPrefix(data, "withdraw_page:"):
		page, err := strconv.Atoi(strings.TrimPrefix(data, "withdraw_page:"))
		if err != nil {
			return
		}
		b.answerCallback(callback.ID, "")
		b.sendPendingPage(ctx, callback.Message.Chat.ID, page)

	case strings.HasPrefix(data, "approve_withdraw:"):
		id, err := strconv.ParseUint(strings.TrimPrefix(data, "approve_withdraw:"), 10, 32)
		if err != nil {
			return
		}
		b.answerCallback(callback.ID, "")
		b.approveWithdrawal(ctx, callback.Message.Chat.ID, uint(id), callback.From)

	case strings.HasPrefix(data, "reject_withdraw:"):
		id, err := strconv.ParseUint(strings.TrimPrefix(data, "reject_withdraw:"), 10, 32)
		if err != nil {
			return
		}
		b.answerCallback(callback.ID, "")
		b.rejectWithdrawal(ctx, callback.Message.Chat.ID, uint(id), callback.From)
	}
}

func (b *Bot) approveWithdrawal(ctx context.Context, chatID int64, id uint, from *tgbotapi.User) {
	approver := strconv.FormatInt(from.ID, 10)

	withdrawal, err := b.withdrawals.Approve(ctx, id, approver)
	switch {
	case errors.Is(err, service.ErrWithdrawalNotFound):
		b.sendMessage(chatID, fmt.Sprintf("❌ Withdrawal #%d not found.", id), nil)
	case errors.Is(err, service.ErrAlreadyProcessed):
		b.sendMessage(chatID, fmt.Sprintf("ℹ️ Withdrawal #%d was already processed (%s).", id, withdrawal.Status), nil)
	case errors.Is(err, service.ErrRequestExpired):
		b.sendMessage(chatID, fmt.Sprintf("⏰ Withdrawal #%d expired before approval.", id), nil)
	case errors.Is(err, service.ErrDuplicateApproval):
		b.sendMessage(chatID, fmt.Sprintf("ℹ️ You already approved withdrawal #%d.", id), nil)
	case errors.Is(err, service.ErrExecutionFailed):
		b.sendMessage(chatID, fmt.Sprintf("❌ Withdrawal #%d approved but the transfer failed; no funds were debited.", id), nil)
	case err != nil:
		b.logger.Errorf("Failed to approve withdrawal #%d: %v", id, err)
		b.sendMessage(chatID, fmt.Sprintf("❌ Internal error approving withdrawal #%d.", id), nil)
	case withdrawal.Status == models.WithdrawalStatusConfirmed:
		b.sendMessage(chatID, fmt.Sprintf("✅ Withdrawal #%d confirmed: `%s`", id, withdrawal.TxSignature), nil)
	default:
		b.sendMessage(chatID, fmt.Sprintf("🖊 Approval recorded for withdrawal #%d; waiting for further signatures.", id), nil)
	}
}

func (b *Bot) rejectWithdrawal(ctx context.Context, chatID int64, id uint, from *tgbotapi.User) {
	approver := strconv.FormatInt(from.ID, 10)

	err := b.withdrawals.Reject(ctx, id, approver, "rejected by admin")
	switch {
	case errors.Is(err, service.ErrWithdrawalNotFound):
		b.sendMessage(chatID, fmt.Sprintf("❌ Withdrawal #%d not found.", id), nil)
	case errors.Is(err, service.ErrAlreadyProcessed):
		b.sendMessage(chatID, fmt.Sprintf("ℹ️ Withdrawal #%d was already processed.", id), nil)
	case err != nil:
		b.logger.Errorf("Failed to reject withdrawal #%d: %v", id, err)
		b.sendMessage(chatID, fmt.Sprintf("❌ Internal error rejecting withdrawal #%d.", id), nil)
	default:
		b.sendMessage(chatID, fmt.Sprintf("🚫 Withdrawal #%d rejected. No funds were debited.", id), nil)
	}
}
