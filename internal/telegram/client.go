// Package telegram delivers rendered alerts via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tradewatch/gapsentry/internal/models"
)

// Client sends alert messages to a fixed chat. One delivery attempt per
// Send; retry policy belongs to the scan scheduler.
type Client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewClient creates a Telegram client for the given bot token and chat.
func NewClient(botToken, chatID string) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &Client{bot: bot, chatID: chatIDInt}, nil
}

// Send delivers one MarkdownV2 message.
func (c *Client) Send(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(c.chatID, message)
	msg.ParseMode = "MarkdownV2"
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// ListenForCommands polls for bot commands in a background goroutine until
// ctx is cancelled. status supplies the /status reply text.
func (c *Client) ListenForCommands(ctx context.Context, status func() string) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, status)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, status func() string) {
	var reply string
	switch msg.Command() {
	case "ping":
		reply = "Pong"
	case "status":
		if status != nil {
			reply = status()
		}
	}
	if reply == "" {
		return
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		log.Warn().Err(err).Str("command", msg.Command()).Msg("failed to reply to bot command")
	}
}

// FormatAlert renders a scored gap candidate into a MarkdownV2 alert.
// Gap size picks the alert tier; hot and mega gaps get a target/stop line.
func FormatAlert(cand models.GapCandidate, bd models.ScoreBreakdown) string {
	gapSize := math.Abs(cand.GapPercent)

	var header string
	switch {
	case gapSize >= 20:
		header = "🚨🚨🚨 *MEGA GAP* 🚨🚨🚨"
	case gapSize >= 10:
		header = "🔥🔥 *HOT GAP* 🔥🔥"
	default:
		header = "📊 *Gap Alert*"
	}

	directionEmoji := "🟢"
	if cand.GapPercent < 0 {
		directionEmoji = "🔴"
	}

	var b strings.Builder
	b.WriteString(header + "\n\n")
	fmt.Fprintf(&b, "%s *$%s* %s\n", directionEmoji, escapeMarkdownV2(cand.Symbol), directionEmoji)
	fmt.Fprintf(&b, "Gap: *%s %s*\n",
		cand.Direction(), escapeMarkdownV2(fmt.Sprintf("%.1f%%", gapSize)))
	fmt.Fprintf(&b, "Price: %s → %s\n",
		escapeMarkdownV2(fmt.Sprintf("$%.2f", cand.PrevClose)),
		escapeMarkdownV2(fmt.Sprintf("$%.2f", cand.Price)))
	fmt.Fprintf(&b, "Volume: %s\n", escapeMarkdownV2(formatVolume(cand.Volume)))
	fmt.Fprintf(&b, "Score: *%s*\n", escapeMarkdownV2(fmt.Sprintf("%.0f/100", bd.Total)))

	if len(bd.Rationale) > 0 {
		b.WriteString("\n")
		for _, line := range bd.Rationale {
			fmt.Fprintf(&b, "• %s\n", escapeMarkdownV2(line))
		}
	}

	if gapSize >= 10 && cand.GapPercent > 0 {
		b.WriteString("\n💡 *Setup:* Gap & Go\n")
		fmt.Fprintf(&b, "🎯 Target: %s\n",
			escapeMarkdownV2(fmt.Sprintf("$%.2f (+5%%)", cand.Price*1.05)))
		fmt.Fprintf(&b, "🛑 Stop: %s\n",
			escapeMarkdownV2(fmt.Sprintf("$%.2f (-3%%)", cand.Price*0.97)))
	}

	fmt.Fprintf(&b, "\n⏰ %s", escapeMarkdownV2(cand.Timestamp.Format("15:04:05 MST")))
	return b.String()
}

func formatVolume(v int64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
