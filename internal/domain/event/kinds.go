package event

// Panel frame kinds. The wire protocol carries these verbatim in the
// envelope "type" field, so renaming one is a breaking change for clients.
const (
	// ------------------- SYSTEM (SESSION CONTROL) --------------
	KindReady          = "READY"
	KindClosed         = "CLOSED"
	KindError          = "ERROR"
	KindSubscribeAck   = "SUBSCRIBE_ACK"
	KindUnsubscribeAck = "UNSUBSCRIBE_ACK"
	KindPong           = "PONG"

	// ------------------- GUILD --------------------------------
	KindGuildCreate     = "GUILD_CREATE"
	KindGuildDelete     = "GUILD_DELETE"
	KindGuildUpdate     = "GUILD_UPDATE"
	KindGuildUpdateName = "GUILD_UPDATE_NAME"

	// ------------------- CHANNEL ------------------------------
	KindChannelCreate       = "CHANNEL_CREATE"
	KindChannelDelete       = "CHANNEL_DELETE"
	KindChannelUpdate       = "CHANNEL_UPDATE"
	KindChannelUpdateName   = "CHANNEL_UPDATE_NAME"
	KindChannelUpdateTopic  = "CHANNEL_UPDATE_TOPIC"
	KindChannelUpdateParent = "CHANNEL_UPDATE_PARENT"

	// ------------------- MESSAGE ------------------------------
	KindMessageCreate  = "MESSAGE_CREATE"
	KindMessageUpdate  = "MESSAGE_UPDATE"
	KindMessageDelete  = "MESSAGE_DELETE"
	KindReactionAdd    = "REACTION_ADD"
	KindReactionRemove = "REACTION_REMOVE"

	// ------------------- MEMBER -------------------------------
	KindMemberAdd        = "MEMBER_ADD"
	KindMemberRemove     = "MEMBER_REMOVE"
	KindMemberUpdate     = "MEMBER_UPDATE"
	KindMemberUpdateNick = "MEMBER_UPDATE_NICK"
	KindPresenceUpdate   = "PRESENCE_UPDATE"

	// ------------------- OPS ----------------------------------
	KindAnnounce = "ANNOUNCE"
)
