package bot

import (
	"github.com/bwmarrin/discordgo"
)

const transcriptTitle = "Live transcript"

// embedSurface renders the transcript as a single embed message in the
// text channel the join command came from.
type embedSurface struct {
	discord   *discordgo.Session
	channelID string
}

func (s *embedSurface) Create(text string) (string, error) {
	msg, err := s.discord.ChannelMessageSendEmbed(
		s.channelID,
		&discordgo.MessageEmbed{Title: transcriptTitle, Description: text},
	)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (s *embedSurface) Edit(handle, text string) error {
	_, err := s.discord.ChannelMessageEditEmbed(
		s.channelID,
		handle,
		&discordgo.MessageEmbed{Title: transcriptTitle, Description: text},
	)
	return err
}

func (s *embedSurface) Delete(handle string) error {
	return s.discord.ChannelMessageDelete(s.channelID, handle)
}
