package discord

// DisconnectVoice removes the member from voice without kicking them
// from the guild. Implements votekick.Moderator.
func (b *Bot) DisconnectVoice(guildID, userID string) error {
	return b.dg.GuildMemberMove(guildID, userID, nil)
}

// Kick removes the member from the guild entirely.
func (b *Bot) Kick(guildID, userID, reason string) error {
	return b.dg.GuildMemberDeleteWithReason(guildID, userID, reason)
}
