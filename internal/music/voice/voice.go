// Package voice is the discordgo-backed voice transport: joining
// channels and playing cached audio files over an opus stream.
package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"vckeeper/internal/music/session"
)

// Conn wraps an established voice connection.
type Conn struct {
	vc *discordgo.VoiceConnection
}

func (c *Conn) Ready() bool {
	if c.vc == nil {
		return false
	}
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.Ready
}

func (c *Conn) Disconnect() error {
	return c.vc.Disconnect()
}

// Connector joins voice channels through the gateway session. Implements
// session.Connector; ChannelVoiceJoin blocks until the transport is
// ready.
type Connector struct {
	dg *discordgo.Session
}

func NewConnector(dg *discordgo.Session) *Connector {
	return &Connector{dg: dg}
}

func (c *Connector) Join(guildID, channelID string) (session.Connection, error) {
	vc, err := c.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("voice: join %s/%s: %w", guildID, channelID, err)
	}
	return &Conn{vc: vc}, nil
}
