package gateway

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/rahul/perfwizard/internal/observability"
)

// Discord rejects messages longer than this.
const discordMessageLimit = 2000

type DiscordGateway struct {
	Session      *discordgo.Session
	Conversation *Conversation
	Logger       *observability.Logger
}

func NewDiscordGateway(token string, conv *Conversation, logger *observability.Logger) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	return &DiscordGateway{Session: s, Conversation: conv, Logger: logger}, nil
}

func (dg *DiscordGateway) Start(ctx context.Context) error {
	dg.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
			return
		}
		if !strings.HasPrefix(m.Content, "/") && m.GuildID != "" && !mentions(m.Message, s) {
			return
		}

		dg.Logger.Z.Info("discord message",
			zap.String("from", m.Author.Username),
			zap.String("text", m.Content))

		go func() {
			err := dg.Conversation.Handle(ctx, stripMention(m.Content, s), func(text string) error {
				return dg.Send(m.ChannelID, text)
			})
			if err != nil {
				dg.Logger.Z.Warn("discord reply failed", zap.String("channel", m.ChannelID), zap.Error(err))
			}
		}()
	})

	if err := dg.Session.Open(); err != nil {
		return err
	}
	<-ctx.Done()
	return dg.Stop()
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	for _, part := range Chunk(text, discordMessageLimit) {
		if _, err := dg.Session.ChannelMessageSend(chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}

// In guild channels the bot only answers commands and messages that mention it.
func mentions(m *discordgo.Message, s *discordgo.Session) bool {
	if s.State == nil || s.State.User == nil {
		return false
	}
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			return true
		}
	}
	return false
}

func stripMention(content string, s *discordgo.Session) string {
	if s.State == nil || s.State.User == nil {
		return content
	}
	id := s.State.User.ID
	content = strings.ReplaceAll(content, "<@"+id+">", "")
	content = strings.ReplaceAll(content, "<@!"+id+">", "")
	return strings.TrimSpace(content)
}
