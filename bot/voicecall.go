package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"scribe/ingest"
	"scribe/render"
	"scribe/session"
)

// VoiceCall is one live voice connection and the machinery attached to it:
// the ingest pipeline, the renderer, and the ssrc-to-participant mapping
// built from speaking updates.
type VoiceCall struct {
	sync.RWMutex
	conn     *discordgo.VoiceConnection
	pipeline *ingest.Pipeline
	renderer *render.Renderer

	guildID   string
	channelID string

	speakers map[uint32]session.Participant // SSRC
}

func (bot *Bot) joinVoiceCall(
	guildID, voiceChannelID, textChannelID string,
) error {
	// A second join for the same tenant replaces the existing call.
	bot.mu.Lock()
	_, active := bot.calls[guildID]
	bot.mu.Unlock()
	if active {
		bot.leaveVoiceCall(guildID)
	}

	botUserID := bot.discord.State.User.ID
	participants, err := bot.voiceChannelMembers(guildID, voiceChannelID)
	if err != nil {
		return err
	}

	var renderer *render.Renderer
	sess, err := bot.registry.Create(guildID, botUserID, participants, func() {
		if renderer != nil {
			renderer.Destroy()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	pipeline := ingest.NewPipeline(sess, bot.transcriber, bot.log)
	renderer = render.NewRenderer(
		sess,
		&embedSurface{discord: bot.discord, channelID: textChannelID},
		bot.renderInterval,
		bot.log,
	)
	renderer.Initiate()

	broadcaster := bot.broadcaster
	sess.SetOnChange(func() {
		renderer.Refresh()
		broadcaster.Emit(context.Background(), sess)
	})

	vc, err := bot.discord.ChannelVoiceJoin(guildID, voiceChannelID, true, false)
	if err != nil {
		bot.registry.Remove(guildID)
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	call := &VoiceCall{
		conn:      vc,
		pipeline:  pipeline,
		renderer:  renderer,
		guildID:   guildID,
		channelID: voiceChannelID,
		speakers:  make(map[uint32]session.Participant),
	}

	bot.mu.Lock()
	bot.calls[guildID] = call
	bot.mu.Unlock()

	vc.AddHandler(func(_ *discordgo.VoiceConnection, v *discordgo.VoiceSpeakingUpdate) {
		bot.handleSpeakingUpdate(call, v)
	})
	go bot.receiveAudioPackets(call)

	bot.log.Info("joined", "guild", guildID, "channel", voiceChannelID)
	return nil
}

func (bot *Bot) leaveVoiceCall(guildID string) {
	bot.mu.Lock()
	call, ok := bot.calls[guildID]
	if !ok {
		bot.mu.Unlock()
		return
	}
	delete(bot.calls, guildID)
	bot.mu.Unlock()

	if err := call.conn.Disconnect(); err != nil {
		bot.log.Warn("failed to disconnect voice", "guild", guildID, "error", err.Error())
	}

	// Drain in-flight capture before the session is torn down; the registry
	// deletes the render surface and detaches the subscriber.
	call.pipeline.Close()
	bot.registry.Remove(guildID)

	bot.log.Info("left", "guild", guildID)
}

func (bot *Bot) handleSpeakingUpdate(
	call *VoiceCall,
	v *discordgo.VoiceSpeakingUpdate,
) {
	if v.UserID == bot.discord.State.User.ID {
		return
	}

	participant := session.Participant{
		ID:  v.UserID,
		Tag: bot.participantTag(v.UserID),
	}

	call.Lock()
	call.speakers[uint32(v.SSRC)] = participant
	call.Unlock()

	if v.Speaking {
		call.pipeline.BeginSpan(participant)
	} else {
		call.pipeline.EndSpan(participant)
	}
}

func (bot *Bot) receiveAudioPackets(call *VoiceCall) {
	for packet := range call.conn.OpusRecv {
		call.RLock()
		participant, known := call.speakers[packet.SSRC]
		call.RUnlock()

		if !known {
			continue
		}

		call.pipeline.PushAudio(participant.ID, ingest.Packet{
			Sequence:  packet.Sequence,
			Timestamp: packet.Timestamp,
			SSRC:      packet.SSRC,
			Opus:      packet.Opus,
		})
	}
}

func (bot *Bot) voiceChannelMembers(
	guildID, channelID string,
) ([]session.Participant, error) {
	guild, err := bot.discord.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild state: %w", err)
	}

	var participants []session.Participant
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		participants = append(participants, session.Participant{
			ID:  vs.UserID,
			Tag: bot.participantTag(vs.UserID),
		})
	}
	return participants, nil
}

func (bot *Bot) participantTag(userID string) string {
	user, err := bot.discord.User(userID)
	if err != nil {
		bot.log.Error("failed to get user", "userID", userID, "error", err.Error())
		return "Unknown User"
	}
	return user.Username
}
