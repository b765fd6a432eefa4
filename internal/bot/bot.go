package bot

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/sessionbook/internal/booking"
	"github.com/susu3304/sessionbook/internal/commands"
)

type Bot struct {
	session   *discordgo.Session
	sessions  *commands.SessionHandler
	announcer *announcer
}

// New wires the /session command to engine. An empty announceChannelID
// disables event announcements.
func New(token string, engine *booking.Engine, directory booking.Directory, clock booking.Clock, announceChannelID string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session: session,
		sessions: &commands.SessionHandler{
			Engine:    engine,
			Directory: directory,
			Clock:     clock,
		},
	}
	if announceChannelID != "" {
		bot.announcer = newAnnouncer(session, engine, announceChannelID)
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	if err := b.announcer.start(ctx); err != nil {
		b.session.Close()
		return err
	}
	log.Println("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.announcer.stop()
	return b.session.Close()
}
