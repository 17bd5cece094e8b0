// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the session feed.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError    = 3000 // Client connected with an unsupported subprotocol.
	InvalidSessionIDError  = 3003 // Target session specified in the WS URL does not exist.
	SessionFinishedClosure = 3004 // The session finished; no further events follow.
)
