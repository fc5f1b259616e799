// Package discord implements [voiceplatform.Platform] on top of a Discord
// voice channel via bwmarrin/discordgo. It demuxes incoming Opus packets by
// SSRC, decodes them to 48 kHz stereo PCM, and pushes them into a
// [voiceplatform.Sink] — adapting the teacher's "deliver AudioFrame on a
// channel" model to this module's stateless IngestStereo48 push call.
//
// It also implements [displayname.Directory], resolving a Discord user ID
// to the guild member's display name.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphoxa/internal/displayname"
	"github.com/MrWong99/glyphoxa/pkg/voiceplatform"
)

// Compile-time interface assertions.
var _ voiceplatform.Platform = (*Platform)(nil)
var _ displayname.Directory = (*Platform)(nil)

// Platform implements [voiceplatform.Platform] using a discordgo voice
// connection. It requires an active *discordgo.Session (owned by the bot
// layer) and a guild ID.
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
	guildID string
}

// New creates a new Discord Platform for the given session and guild.
func New(session *discordgo.Session, guildID string) *Platform {
	return &Platform{session: session, guildID: guildID}
}

// Connect joins the voice channel identified by channelID and begins
// pushing decoded audio to sink. Chat messages are not forwarded: this
// adapter never calls sink.LogText.
func (p *Platform) Connect(ctx context.Context, channelID string, sink voiceplatform.Sink) (voiceplatform.Connection, error) {
	vc, err := p.session.ChannelVoiceJoin(p.guildID, channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	conn, err := newConnection(ctx, vc, p.session, p.guildID, sink)
	if err != nil {
		_ = vc.Disconnect()
		return nil, fmt.Errorf("discord: create connection: %w", err)
	}

	vc.AddHandler(func(_ *discordgo.VoiceConnection, vsu *discordgo.VoiceSpeakingUpdate) {
		conn.BindSSRC(uint32(vsu.SSRC), vsu.UserID)
	})

	return conn, nil
}

// Lookup implements [displayname.Directory] by resolving userID (an opaque
// Discord user snowflake) to the guild member's display name: the guild
// nickname if set, otherwise the account username.
func (p *Platform) Lookup(_ context.Context, guildID, userID string) (string, error) {
	member, err := p.session.GuildMember(guildID, userID)
	if err != nil {
		return "", fmt.Errorf("discord: lookup guild member %s/%s: %w", guildID, userID, err)
	}
	if member.Nick != "" {
		return member.Nick, nil
	}
	if member.User != nil {
		return member.User.Username, nil
	}
	return "", fmt.Errorf("discord: member %s has no username", userID)
}
