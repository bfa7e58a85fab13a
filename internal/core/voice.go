package core

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrNotInVoice means the user has no voice state in the guild.
var ErrNotInVoice = errors.New("core: user is not in a voice channel")

// FindUserVoiceChannel returns the voice channel userID currently
// occupies in the guild.
func FindUserVoiceChannel(s *discordgo.Session, guildID, userID string) (string, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
		if err != nil {
			return "", err
		}
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", ErrNotInVoice
}

// VoiceChannelHumans lists the non-bot members currently in the voice
// channel.
func VoiceChannelHumans(s *discordgo.Session, guildID, channelID string) ([]string, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
		if err != nil {
			return nil, err
		}
	}

	var humans []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		member, err := s.State.Member(guildID, vs.UserID)
		if err != nil {
			member, err = s.GuildMember(guildID, vs.UserID)
			if err != nil {
				continue
			}
		}
		if member.User != nil && member.User.Bot {
			continue
		}
		humans = append(humans, vs.UserID)
	}
	return humans, nil
}
