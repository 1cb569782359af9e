package ipc

import (
	"net"
	"sync"
)

type Command struct {
	ID      int      `json:"id"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

type Response struct {
	ID     int         `json:"id"`
	Error  string      `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// ReplayProgressUpdate is pushed to every connected client while the
// server walks historical blocks.
type ReplayProgressUpdate struct {
	Type         string `json:"type"` // always "replay_progress"
	FromBlock    uint64 `json:"fromBlock"`
	CurrentBlock uint64 `json:"currentBlock"`
	LatestBlock  uint64 `json:"latestBlock"`
	Opens        int    `json:"opens"`
	Transfers    int    `json:"transfers"`
}

type Server struct {
	listener    net.Listener
	commands    chan Command
	mutex       sync.Mutex
	connections map[int]net.Conn // Maps command ID to the client connection
	subscribers map[net.Conn]bool
}

type Client struct {
	conn net.Conn
}
