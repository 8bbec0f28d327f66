package panel

// Frame is the JSON envelope exchanged on the panel's console WebSocket.
// Every message in both directions is {"event": ..., "args": [...]}.
type Frame struct {
	Event string   `json:"event"`
	Args  []string `json:"args,omitempty"`
}

// Event names the panel sends or accepts on the console socket.
const (
	// Outbound.
	EventAuth        = "auth"
	EventSendCommand = "send command"

	// Inbound.
	EventAuthSuccess   = "auth success"
	EventConsoleOutput = "console output"
	EventStatus        = "status"
	EventTokenExpiring = "token expiring"
	EventTokenExpired  = "token expired"
)

// AuthFrame builds the one-shot credential frame.
func AuthFrame(token string) Frame {
	return Frame{Event: EventAuth, Args: []string{token}}
}

// CommandFrame builds a console command frame.
func CommandFrame(command string) Frame {
	return Frame{Event: EventSendCommand, Args: []string{command}}
}

// Arg returns the first argument of the frame, or "" when absent.
func (f Frame) Arg() string {
	if len(f.Args) == 0 {
		return ""
	}
	return f.Args[0]
}
