package gateway

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type DiscordGateway struct {
	Session *discordgo.Session
	Agent   Responder
	Log     *zap.Logger

	done chan struct{}
}

func NewDiscordGateway(token string, agent Responder, log *zap.Logger) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	gw := &DiscordGateway{Session: session, Agent: agent, Log: log, done: make(chan struct{})}
	session.AddHandler(gw.onMessage)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	return gw, nil
}

func (d *DiscordGateway) Start() error {
	if err := d.Session.Open(); err != nil {
		return err
	}
	d.Log.Info("discord gateway connected")
	<-d.done
	return nil
}

func (d *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot {
		return
	}

	userID := m.Author.ID
	d.Log.Debug("discord message received",
		zap.String("user", userID), zap.String("channel", m.ChannelID))

	response, err := d.Agent.HandleMessage(context.Background(), userID, "discord", m.ChannelID, m.Content)
	if err != nil {
		d.Log.Error("turn failed", zap.String("user", userID), zap.Error(err))
		response = "I'm having trouble thinking right now..."
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, response); err != nil {
		d.Log.Error("failed to send reply", zap.String("channel", m.ChannelID), zap.Error(err))
	}
}

func (d *DiscordGateway) Send(chatID string, text string) error {
	_, err := d.Session.ChannelMessageSend(chatID, text)
	return err
}

func (d *DiscordGateway) Stop() error {
	close(d.done)
	return d.Session.Close()
}
