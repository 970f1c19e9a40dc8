package inspector

import "fmt"

// Direction identifies which way a chunk travelled through the relay.
type Direction uint8

const (
	// ClientToServer is traffic read from the accepted client and written to the target.
	ClientToServer Direction = iota
	// ServerToClient is traffic read from the target and written back to the client.
	ServerToClient
)

var directions = [...]Direction{ClientToServer, ServerToClient}

func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client→server"
	case ServerToClient:
		return "server→client"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Arrow is the compact tag used in per-chunk log lines.
func (d Direction) Arrow() string {
	switch d {
	case ClientToServer:
		return "C→S"
	case ServerToClient:
		return "S→C"
	default:
		return "???"
	}
}

// metricLabel is the value used for the "direction" metric label.
func (d Direction) metricLabel() string {
	switch d {
	case ClientToServer:
		return "client_to_server"
	case ServerToClient:
		return "server_to_client"
	default:
		return "unknown"
	}
}
