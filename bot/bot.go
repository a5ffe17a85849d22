package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"scribe/session"
	"scribe/socket"
	"scribe/stt"
	"scribe/tenant"
)

type CommandHandler func(*discordgo.MessageCreate, []string) error

// Bot is the Discord side of the transcription service: it joins voice
// channels on command, feeds captured audio through the ingest pipeline,
// and keeps the live transcript embed and the broadcast feed in sync.
type Bot struct {
	mu sync.Mutex

	log         *log.Logger
	discord     *discordgo.Session
	store       tenant.Store
	registry    *session.Registry
	broadcaster *socket.Broadcaster
	transcriber stt.Transcriber

	commands map[string]CommandHandler

	defaultPrefix  string
	renderInterval time.Duration

	calls map[string]*VoiceCall // guildID
}

func New(
	discord *discordgo.Session,
	store tenant.Store,
	registry *session.Registry,
	broadcaster *socket.Broadcaster,
	transcriber stt.Transcriber,
	defaultPrefix string,
	renderInterval time.Duration,
	logger *log.Logger,
) (*Bot, error) {
	bot := &Bot{
		log:            logger,
		discord:        discord,
		store:          store,
		registry:       registry,
		broadcaster:    broadcaster,
		transcriber:    transcriber,
		commands:       make(map[string]CommandHandler),
		defaultPrefix:  defaultPrefix,
		renderInterval: renderInterval,
		calls:          make(map[string]*VoiceCall),
	}

	bot.commands["join"] = bot.handleJoinCommand
	bot.commands["leave"] = bot.handleLeaveCommand
	bot.commands["api"] = bot.handleAPICommand
	bot.commands["prefix"] = bot.handlePrefixCommand

	discord.AddHandler(bot.handleMessageCreate)
	discord.AddHandler(bot.handleVoiceStateUpdate)

	if err := discord.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	bot.log.Info("bot connected")
	return bot, nil
}

func (bot *Bot) Close() error {
	bot.mu.Lock()
	guilds := make([]string, 0, len(bot.calls))
	for guildID := range bot.calls {
		guilds = append(guilds, guildID)
	}
	bot.mu.Unlock()

	for _, guildID := range guilds {
		bot.leaveVoiceCall(guildID)
	}
	return bot.discord.Close()
}

func (bot *Bot) handleMessageCreate(
	s *discordgo.Session,
	m *discordgo.MessageCreate,
) {
	if m.Author.ID == s.State.User.ID || m.GuildID == "" {
		return
	}

	t, err := bot.store.FindOrCreate(
		context.Background(),
		m.GuildID,
		bot.defaultPrefix,
	)
	if err != nil {
		bot.log.Error("failed to load tenant", "guild", m.GuildID, "error", err.Error())
		return
	}

	if !strings.HasPrefix(m.Content, t.Prefix) {
		return
	}

	args := strings.Fields(m.Content[len(t.Prefix):])
	if len(args) == 0 {
		return
	}

	handler, exists := bot.commands[args[0]]
	if !exists {
		return
	}

	if err := handler(m, args[1:]); err != nil {
		bot.log.Error(
			"command execution failed",
			"command", args[0],
			"error", err.Error(),
		)
		bot.sendEmbed(m.ChannelID, "Error", err.Error())
	}
}

// handleVoiceStateUpdate tears the call down when the bot itself is moved
// out of the voice channel by other means than the leave command.
func (bot *Bot) handleVoiceStateUpdate(
	s *discordgo.Session,
	v *discordgo.VoiceStateUpdate,
) {
	if v.UserID != s.State.User.ID || v.ChannelID != "" {
		return
	}

	bot.mu.Lock()
	_, active := bot.calls[v.GuildID]
	bot.mu.Unlock()

	if active {
		bot.log.Info("voice connection dropped", "guild", v.GuildID)
		bot.leaveVoiceCall(v.GuildID)
	}
}

func (bot *Bot) sendEmbed(channelID, title, description string) {
	_, err := bot.discord.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
	})
	if err != nil {
		bot.log.Error("failed to send message", "error", err.Error())
	}
}
