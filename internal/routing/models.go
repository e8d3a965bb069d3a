package routing

// OperationType identifies a category of WhatsApp operation for routing.
type OperationType string

// Message operations.
const (
	OpSendMessage   OperationType = "send_message"
	OpSendFile      OperationType = "send_file"
	OpSendAudio     OperationType = "send_audio"
	OpMarkAsRead    OperationType = "mark_as_read"
	OpDownloadMedia OperationType = "download_media"
)

// History sync operations.
const (
	OpSyncFullHistory OperationType = "sync_full_history"
	OpSyncChatHistory OperationType = "sync_chat_history"
)

// Community operations.
const (
	OpListCommunities     OperationType = "list_communities"
	OpGetCommunityGroups  OperationType = "get_community_groups"
	OpMarkCommunityAsRead OperationType = "mark_community_as_read"
)

// Contact and chat operations.
const (
	OpSearchContacts OperationType = "search_contacts"
	OpListContacts   OperationType = "list_contacts"
	OpListChats      OperationType = "list_chats"
	OpGetChat        OperationType = "get_chat"
	OpListMessages   OperationType = "list_messages"
)

// Strategy selects which backend handles an operation.
type Strategy string

const (
	// StrategyPrimaryOnly uses the current primary backend only.
	StrategyPrimaryOnly Strategy = "primary_only"
	// StrategyPreferGo prefers the go bridge, falling back to baileys.
	StrategyPreferGo Strategy = "prefer_go"
	// StrategyPreferBaileys prefers the baileys bridge, falling back to go.
	StrategyPreferBaileys Strategy = "prefer_baileys"
	// StrategyRoundRobin alternates between available backends.
	StrategyRoundRobin Strategy = "round_robin"
	// StrategyFastest uses the backend with the lowest probe time.
	StrategyFastest Strategy = "fastest"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPrimaryOnly, StrategyPreferGo, StrategyPreferBaileys,
		StrategyRoundRobin, StrategyFastest:
		return true
	}
	return false
}

// DefaultStrategies returns the per-operation strategy table. The go
// bridge is the stable default; only full history sync prefers baileys,
// which is the only backend with syncFullHistory support.
func DefaultStrategies() map[OperationType]Strategy {
	return map[OperationType]Strategy{
		OpSendMessage:   StrategyPreferGo,
		OpSendFile:      StrategyPreferGo,
		OpSendAudio:     StrategyPreferGo,
		OpMarkAsRead:    StrategyPreferGo,
		OpDownloadMedia: StrategyPreferGo,

		OpSyncFullHistory: StrategyPreferBaileys,
		OpSyncChatHistory: StrategyPreferGo,

		OpListCommunities:     StrategyPreferGo,
		OpGetCommunityGroups:  StrategyPreferGo,
		OpMarkCommunityAsRead: StrategyPreferGo,

		OpSearchContacts: StrategyPreferGo,
		OpListContacts:   StrategyPreferGo,
		OpListChats:      StrategyPreferGo,
		OpGetChat:        StrategyPreferGo,
		OpListMessages:   StrategyPreferGo,
	}
}
