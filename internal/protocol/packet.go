package protocol

// PacketType tags every message on the wire.
type PacketType string

// Client -> server packets.
const (
	PacketAuthorize    PacketType = "authorize"
	PacketCreateTable  PacketType = "create_table"
	PacketJoinTable    PacketType = "join_table"
	PacketLeaveTable   PacketType = "leave_table"
	PacketStartGame    PacketType = "start_game"
	PacketAddBot       PacketType = "add_bot"
	PacketRemoveBot    PacketType = "remove_bot"
	PacketSaveTable    PacketType = "save_table"
	PacketRestoreTable PacketType = "restore_table"
	PacketListSaves    PacketType = "list_saves"
	PacketDeleteSave   PacketType = "delete_save"
	PacketListTables   PacketType = "list_tables"
	PacketGameAction   PacketType = "game_action"
	PacketChat         PacketType = "chat"
	PacketLogout       PacketType = "logout"
	PacketPing         PacketType = "ping"
)

// Server -> client packets.
const (
	PacketAuthorized PacketType = "authorize_success"
	PacketDisconnect PacketType = "disconnect"
	PacketMotd       PacketType = "motd"
	PacketGameList   PacketType = "game_list"
	PacketTableList  PacketType = "table_list"
	PacketSaveList   PacketType = "save_list"
	PacketTableEvent PacketType = "table_event"
	PacketGameEvent  PacketType = "game_event"
	PacketError      PacketType = "error"
	PacketPong       PacketType = "pong"
)

// Table lifecycle event keys carried in PacketTableEvent. Each resolves to a
// localized template on the client side.
const (
	EventTableCreated  = "table-created"
	EventTableJoined   = "table-joined"
	EventTableLeft     = "table-left"
	EventNewHost       = "new-host"
	EventGameStarting  = "game-starting"
	EventTableSaved    = "table-saved"
	EventTableRestored = "table-restored"
	EventTableRejoined = "table-rejoined"
	EventTableClosed   = "table-closed"
	EventPlayerTurn    = "player-turn"
	EventBotAdded      = "bot-added"
	EventBotRemoved    = "bot-removed"
	EventGameFinished  = "game-finished"
)

// GameInfo describes one registered game type in the post-login list.
type GameInfo struct {
	Type       string `json:"type"`
	NameKey    string `json:"nameKey"`
	Category   string `json:"category"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// TableInfo is a registry listing entry for the table browser.
type TableInfo struct {
	ID       string `json:"id"`
	GameType string `json:"gameType"`
	Host     string `json:"host"`
	Players  int    `json:"players"`
	MaxSeats int    `json:"maxSeats"`
	State    string `json:"state"`
}

// SaveInfo is a saved-table listing entry.
type SaveInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	GameType string `json:"gameType"`
	SavedAt  string `json:"savedAt"`
}

// Motd carries a server message shown after login.
type Motd struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Dismissable bool   `json:"dismissable"`
}

// Packet is the wire envelope. A single struct with omitempty fields keeps
// encode/dispatch uniform across all packet types.
type Packet struct {
	Type PacketType `json:"type"`

	// Authorization.
	Version        *Version `json:"version,omitempty"`
	Username       string   `json:"username,omitempty"`
	Password       string   `json:"password,omitempty"`
	Token          string   `json:"token,omitempty"`
	Locale         string   `json:"locale,omitempty"`
	DismissedMotds []string `json:"dismissedMotds,omitempty"`

	// Disconnect choreography.
	Reason      string `json:"reason,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	MinVersion  string `json:"minVersion,omitempty"`

	// Graceful errors and localized events.
	Code   ErrorCode         `json:"code,omitempty"`
	Key    string            `json:"key,omitempty"`
	Params map[string]string `json:"params,omitempty"`
	Text   string            `json:"text,omitempty"`

	// Table operations.
	GameType    string         `json:"gameType,omitempty"`
	TableID     string         `json:"tableId,omitempty"`
	SaveID      string         `json:"saveId,omitempty"`
	Options     map[string]int `json:"options,omitempty"`
	AsSpectator bool           `json:"asSpectator,omitempty"`

	// Bot management.
	BotName string `json:"botName,omitempty"`

	// Game actions: opaque (key, parameters) pairs.
	Action       string            `json:"action,omitempty"`
	ActionParams map[string]string `json:"actionParams,omitempty"`

	// Listings and collaborator payloads.
	Games  []GameInfo  `json:"games,omitempty"`
	Tables []TableInfo `json:"tables,omitempty"`
	Saves  []SaveInfo  `json:"saves,omitempty"`
	Motd   *Motd       `json:"motd,omitempty"`

	// Chat.
	Convo   string `json:"convo,omitempty"`
	Sender  string `json:"sender,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorPacket wraps a graceful Error for the requester.
func ErrorPacket(err *Error) Packet {
	return Packet{Type: PacketError, Code: err.Code, Key: err.Key, Params: err.Params}
}
