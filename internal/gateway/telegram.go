package gateway

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/rahul/perfwizard/internal/observability"
)

// Telegram rejects messages longer than this.
const telegramMessageLimit = 4096

type TelegramGateway struct {
	Bot          *tgbotapi.BotAPI
	Conversation *Conversation
	Logger       *observability.Logger
}

func NewTelegramGateway(token string, conv *Conversation, logger *observability.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	logger.Z.Info("telegram authorized", zap.String("account", bot.Self.UserName))

	return &TelegramGateway{
		Bot:          bot,
		Conversation: conv,
		Logger:       logger,
	}, nil
}

func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			tg.Stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			tg.Logger.Z.Info("telegram message",
				zap.String("from", sender(update.Message)),
				zap.String("text", update.Message.Text))

			chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
			err := tg.Conversation.Handle(ctx, update.Message.Text, func(text string) error {
				return tg.Send(chatID, text)
			})
			if err != nil {
				tg.Logger.Z.Warn("telegram reply failed", zap.String("chat", chatID), zap.Error(err))
			}
		}
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	for _, part := range Chunk(text, telegramMessageLimit) {
		msg := tgbotapi.NewMessage(id, part)
		if _, err := tg.Bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}

// sender returns the username of the message author. Channel posts carry no author.
func sender(m *tgbotapi.Message) string {
	if m.From == nil {
		return ""
	}
	return m.From.UserName
}
