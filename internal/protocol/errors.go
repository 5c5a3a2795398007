package protocol

import "fmt"

// ErrorCode identifies a protocol-graceful rejection. These are always
// reported to the specific requester, never logged as faults, and never
// terminate a connection or a table.
type ErrorCode string

const (
	CodeVersionRejected     ErrorCode = "version_rejected"
	CodeCredentialsRejected ErrorCode = "credentials_rejected"
	CodeTableNotFound       ErrorCode = "table_not_found"
	CodeTableFull           ErrorCode = "table_full"
	CodeTableNotJoinable    ErrorCode = "table_not_joinable"
	CodeNotHost             ErrorCode = "not_host"
	CodeNotEnoughPlayers    ErrorCode = "not_enough_players"
	CodeNotYourTurn         ErrorCode = "not_your_turn"
	CodeMissingPlayers      ErrorCode = "missing_players"
	CodeUnknownGameType     ErrorCode = "unknown_game_type"
	CodeInvalidOption       ErrorCode = "invalid_option"
	CodeInvalidAction       ErrorCode = "invalid_action"
	CodeAlreadySeated       ErrorCode = "already_seated"
	CodeSaveNotFound        ErrorCode = "save_not_found"
)

// Error is a graceful, expected rejection. Key and Params feed the external
// localization collaborator; the core never interprets them.
type Error struct {
	Code   ErrorCode
	Key    string
	Params map[string]string
}

func (e *Error) Error() string {
	if len(e.Params) == 0 {
		return fmt.Sprintf("%s (%s)", e.Code, e.Key)
	}
	return fmt.Sprintf("%s (%s) %v", e.Code, e.Key, e.Params)
}

// E builds a graceful Error. Params are given as alternating key/value
// strings.
func E(code ErrorCode, key string, kv ...string) *Error {
	e := &Error{Code: code, Key: key}
	if len(kv) > 0 {
		e.Params = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Params[kv[i]] = kv[i+1]
		}
	}
	return e
}
