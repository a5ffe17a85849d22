package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"scribe/auth"
)

func (bot *Bot) handleJoinCommand(
	m *discordgo.MessageCreate,
	_ []string,
) error {
	guild, err := bot.discord.State.Guild(m.GuildID)
	if err != nil {
		return fmt.Errorf("failed to get guild state: %w", err)
	}

	var voiceChannelID string
	for _, vs := range guild.VoiceStates {
		if vs.UserID == m.Author.ID {
			voiceChannelID = vs.ChannelID
			break
		}
	}
	if voiceChannelID == "" {
		bot.sendEmbed(m.ChannelID, "Not in a voice channel",
			"Join a voice channel first, then run the command again.")
		return nil
	}

	return bot.joinVoiceCall(m.GuildID, voiceChannelID, m.ChannelID)
}

func (bot *Bot) handleLeaveCommand(
	m *discordgo.MessageCreate,
	_ []string,
) error {
	bot.leaveVoiceCall(m.GuildID)
	return nil
}

func (bot *Bot) handlePrefixCommand(
	m *discordgo.MessageCreate,
	args []string,
) error {
	ctx := context.Background()

	t, err := bot.store.FindOrCreate(ctx, m.GuildID, bot.defaultPrefix)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	if len(args) == 0 {
		bot.sendEmbed(m.ChannelID, "Prefix",
			fmt.Sprintf("Current command prefix: `%s`", t.Prefix))
		return nil
	}

	t.Prefix = args[0]
	if err := bot.store.Save(ctx, t); err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}

	bot.sendEmbed(m.ChannelID, "Prefix updated",
		fmt.Sprintf("Command prefix is now `%s`.", t.Prefix))
	return nil
}

func (bot *Bot) handleAPICommand(
	m *discordgo.MessageCreate,
	args []string,
) error {
	if !bot.isAdmin(m) {
		bot.sendEmbed(m.ChannelID, "Permission denied",
			"The api command requires administrator permission.")
		return nil
	}

	ctx := context.Background()

	t, err := bot.store.FindOrCreate(ctx, m.GuildID, bot.defaultPrefix)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "enable":
		t.APIEnabled = true
		if err := bot.store.Save(ctx, t); err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}
		bot.sendEmbed(m.ChannelID, "API enabled",
			"To start using the API, generate a new key using `api generate`.")

	case "disable":
		t.APIEnabled = false
		t.Keys = []string{}
		if err := bot.store.Save(ctx, t); err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}
		bot.sendEmbed(m.ChannelID, "API disabled and keys wiped",
			"To enable the API again, run `api enable`.")

	case "generate":
		plaintext, hash, err := auth.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		t.Keys = append(t.Keys, hash)
		if err := bot.store.Save(ctx, t); err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}
		// The plaintext appears here once and is never recoverable again.
		bot.sendEmbed(m.ChannelID, "Key generated",
			fmt.Sprintf(
				"Here is your API key: ||%s||\n\nMake sure to save it in a secure place; it cannot be retrieved after it is generated.",
				plaintext,
			))

	case "reset":
		t.Keys = []string{}
		if err := bot.store.Save(ctx, t); err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}
		bot.sendEmbed(m.ChannelID, "Keys wiped",
			"To generate a new key, run `api generate`.")

	default:
		state := "disabled"
		if t.APIEnabled {
			state = "enabled"
		}
		bot.sendEmbed(m.ChannelID, "API information",
			fmt.Sprintf(
				"Current API state: %s\n\nNumber of keys: %d",
				state,
				len(t.Keys),
			))
	}

	return nil
}

func (bot *Bot) isAdmin(m *discordgo.MessageCreate) bool {
	perms, err := bot.discord.State.UserChannelPermissions(
		m.Author.ID,
		m.ChannelID,
	)
	if err != nil {
		bot.log.Error(
			"failed to resolve permissions",
			"userID", m.Author.ID,
			"error", err.Error(),
		)
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}
