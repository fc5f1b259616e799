package discord

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphoxa/pkg/voiceplatform"
	voicertp "github.com/MrWong99/glyphoxa/pkg/voiceplatform/rtp"
)

// Compile-time interface assertion.
var _ voiceplatform.Connection = (*Connection)(nil)

// Connection wraps a discordgo.VoiceConnection and pushes decoded,
// downmix-ready stereo PCM into a [voiceplatform.Sink]. It demuxes incoming
// Opus packets by SSRC, decoding each participant's stream with its own
// decoder to preserve Opus's cross-frame state.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string
	sink    voiceplatform.Sink

	ssrcUserMu sync.RWMutex
	ssrcUser   map[uint32]string // SSRC -> Discord user ID, once bound from a VoiceSpeakingUpdate via BindSSRC

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func()
	disconnectVC  func() error
}

func newConnection(ctx context.Context, vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string, sink voiceplatform.Sink) (*Connection, error) {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		sink:         sink,
		ssrcUser:     make(map[uint32]string),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	c.removeHandler = session.AddHandler(c.handleVoiceStateUpdate)

	go c.recvLoop(ctx)

	return c, nil
}

// Disconnect tears down the voice connection and stops the receive loop.
// Safe to call more than once.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.removeHandler != nil {
			c.removeHandler()
		}
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// recvLoop reads Opus packets from the Discord voice connection, demuxes
// them by SSRC, decodes Opus to 48 kHz stereo PCM, and pushes the result
// into the sink via IngestStereo48.
func (c *Connection) recvLoop(ctx context.Context) {
	decoders := make(map[uint32]*opusDecoder)
	seqTracker := voicertp.NewSequenceTracker()

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}

			hdr := voicertp.Header(pkt.Sequence, pkt.Timestamp, pkt.SSRC)
			if gap := seqTracker.Observe(hdr); gap > 0 {
				slog.Warn("discord: rtp sequence gap", "ssrc", hdr.SSRC, "lost_packets", gap)
			}

			dec, exists := decoders[pkt.SSRC]
			if !exists {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: failed to create opus decoder", "ssrc", pkt.SSRC, "error", err)
					continue
				}
				decoders[pkt.SSRC] = dec
			}

			stereo48, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
				continue
			}

			participantID := c.participantID(pkt.SSRC)
			if err := c.sink.IngestStereo48(ctx, participantID, stereo48); err != nil {
				slog.Warn("discord: ingest error", "participant_id", participantID, "error", err)
			}
		}
	}
}

// participantID resolves an SSRC to the Discord user ID it belongs to, if
// known yet, otherwise falls back to the SSRC itself so that ingestion
// never blocks on identity resolution.
func (c *Connection) participantID(ssrc uint32) string {
	c.ssrcUserMu.RLock()
	defer c.ssrcUserMu.RUnlock()
	if id, ok := c.ssrcUser[ssrc]; ok {
		return id
	}
	return strconv.FormatUint(uint64(ssrc), 10)
}

// handleVoiceStateUpdate logs participant join/leave for this channel.
// SSRC->user ID mapping is not derivable from VoiceStateUpdate: Discord
// only reveals that association via the voice-gateway Speaking event,
// which the VoiceSpeakingUpdate handler registered by Platform.Connect
// forwards to BindSSRC.
func (c *Connection) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.GuildID != c.guildID {
		return
	}
	channelID := c.vc.ChannelID
	left := vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == channelID && vsu.ChannelID != channelID
	joined := vsu.ChannelID == channelID && (vsu.BeforeUpdate == nil || vsu.BeforeUpdate.ChannelID != channelID)
	switch {
	case left:
		slog.Info("discord: participant left", "user_id", vsu.UserID)
	case joined:
		slog.Info("discord: participant joined", "user_id", vsu.UserID)
	}
}

// BindSSRC records the SSRC -> user ID mapping learned from a voice
// speaking update. Platform.Connect calls this from a VoiceSpeakingUpdate
// handler it registers on the voice connection, since discordgo does not
// route that event through Connection directly.
func (c *Connection) BindSSRC(ssrc uint32, userID string) {
	c.ssrcUserMu.Lock()
	defer c.ssrcUserMu.Unlock()
	c.ssrcUser[ssrc] = userID
}
