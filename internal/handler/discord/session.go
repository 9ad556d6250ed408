package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/guildview/panel-service/config"
)

// NewSession builds the upstream gateway session. An empty token yields a
// nil session: the panel then runs headless, serving whatever the mirror
// and archive already hold.
func NewSession(cfg *config.Config, logger *slog.Logger) (*discordgo.Session, error) {
	if cfg.Discord.Token == "" {
		return nil, nil
	}

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("create gateway session: %w", err)
	}

	// The panel mirrors everything it is shown, so it asks for everything.
	dg.Identify.Intents = discordgo.IntentsAll

	// [FEED_ORDER]
	// SyncEvents makes discordgo run handlers sequentially on the reader
	// goroutine: every mirror apply lands before the next payload is
	// translated, so before-values read back from the mirror stay exact.
	dg.SyncEvents = true

	// State tracking stays enabled. discordgo's own state is what fills
	// BeforeUpdate on channel and member update payloads.

	return dg, nil
}
