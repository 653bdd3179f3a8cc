package gateway

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type TelegramGateway struct {
	Bot   *tgbotapi.BotAPI
	Agent Responder
	Log   *zap.Logger
}

func NewTelegramGateway(token string, agent Responder, log *zap.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info("telegram gateway authorized", zap.String("account", bot.Self.UserName))
	return &TelegramGateway{Bot: bot, Agent: agent, Log: log}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for update := range tg.Bot.GetUpdatesChan(u) {
		if update.Message == nil {
			continue
		}

		chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
		tg.Log.Debug("telegram message received",
			zap.String("chat", chatID), zap.String("from", update.Message.From.UserName))

		response, err := tg.Agent.HandleMessage(context.Background(), chatID, "telegram", chatID, update.Message.Text)
		if err != nil {
			tg.Log.Error("turn failed", zap.String("chat", chatID), zap.Error(err))
			response = "I'm having trouble thinking right now..."
		}

		if err := tg.Send(chatID, response); err != nil {
			tg.Log.Error("failed to send reply", zap.String("chat", chatID), zap.Error(err))
		}
	}
	return nil
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "Markdown"
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
