// Package discord exposes the console bridge as Discord slash commands.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/pnivek/pteroCraft/internal/audit"
)

// interactionTimeout bounds command correlation from a slash command;
// Discord invalidates interaction tokens after 15 minutes, but users
// expect an answer well before that.
const interactionTimeout = 30 * time.Second

// Bot runs the Discord front-end.
type Bot struct {
	session *discordgo.Session
	engine  Engine
	audit   audit.Recorder
	log     *zap.Logger
	guildID string
}

// NewBot constructs the front-end. guildID scopes slash-command
// registration to one guild; empty registers them globally.
func NewBot(token, guildID string, engine Engine, recorder audit.Recorder, log *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		session: session,
		engine:  engine,
		audit:   recorder,
		log:     log.Named("discord"),
		guildID: guildID,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b, nil
}

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "status",
		Description: "Show the console connection status",
	},
	{
		Name:        "log",
		Description: "Show the newest console log lines",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "lines",
				Description: "How many lines (1-10)",
				MinValue:    float64Ptr(1),
				MaxValue:    10,
			},
		},
	},
	{
		Name:        "list",
		Description: "List the players currently online",
	},
	{
		Name:        "whitelist",
		Description: "Manage the server whitelist",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a player to the whitelist",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "player",
						Description: "Player name",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a player from the whitelist",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "player",
						Description: "Player name",
						Required:    true,
					},
				},
			},
		},
	},
}

// Open connects the gateway session and registers the slash commands.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	if _, err := b.session.ApplicationCommandBulkOverwrite(
		b.session.State.User.ID, b.guildID, commands); err != nil {
		b.session.Close()
		return fmt.Errorf("registering slash commands: %w", err)
	}
	return nil
}

// Close disconnects the gateway session.
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("discord session ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	actor := interactionActor(i)
	b.log.Debug("slash command received",
		zap.String("command", data.Name), zap.String("actor", actor))

	switch data.Name {
	case "status":
		b.respond(s, i, b.handleStatus())

	case "log":
		lines := 5
		for _, opt := range data.Options {
			if opt.Name == "lines" {
				lines = int(opt.IntValue())
			}
		}
		b.respond(s, i, b.handleLog(lines))

	case "list":
		b.deferThen(s, i, func(ctx context.Context) reply {
			return b.handleList(ctx, actor)
		})

	case "whitelist":
		if len(data.Options) == 0 {
			b.respond(s, i, reply{Content: "❌ Missing whitelist action.", Ephemeral: true})
			return
		}
		sub := data.Options[0]
		player := ""
		for _, opt := range sub.Options {
			if opt.Name == "player" {
				player = opt.StringValue()
			}
		}
		b.deferThen(s, i, func(ctx context.Context) reply {
			return b.handleWhitelist(ctx, sub.Name, player, actor)
		})
	}
}

// respond sends an immediate interaction response.
func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, r reply) {
	var flags discordgo.MessageFlags
	if r.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: r.Content, Flags: flags},
	})
	if err != nil {
		b.log.Warn("interaction respond failed", zap.Error(err))
	}
}

// deferThen acknowledges the interaction immediately and edits the
// response once fn completes. Console correlation can take several
// seconds, longer than Discord's 3-second initial-response window.
func (b *Bot) deferThen(s *discordgo.Session, i *discordgo.InteractionCreate, fn func(context.Context) reply) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.log.Warn("interaction defer failed", zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
		defer cancel()

		r := fn(ctx)
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: &r.Content,
		}); err != nil {
			b.log.Warn("interaction edit failed", zap.Error(err))
		}
	}()
}

// interactionActor names the invoking user for logs and the audit trail.
func interactionActor(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return "unknown"
}

func float64Ptr(v float64) *float64 { return &v }
