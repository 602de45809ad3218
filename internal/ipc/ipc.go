// Package ipc exposes a small unix-socket control surface for a running
// daemon: stop the pipeline or ask for queue depths.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

const SocketPath = "/tmp/voicechat.sock"

// ControlMessage is one JSON command from the control client.
type ControlMessage struct {
	Cmd string `json:"cmd"`
}

// ControlReply is the daemon's JSON response.
type ControlReply struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Handler processes one command and returns the reply.
type Handler func(ControlMessage) ControlReply

// StartServer listens on the control socket and dispatches commands to
// handler. Returns a cleanup func that closes the listener and removes
// the socket file.
func StartServer(handler Handler) (func(), error) {
	os.Remove(SocketPath)

	ln, err := net.Listen("unix", SocketPath)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", SocketPath, err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleConn(conn, handler)
		}
	}()

	cleanup := func() {
		ln.Close()
		os.Remove(SocketPath)
	}
	return cleanup, nil
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	reply := handler(msg)
	_ = json.NewEncoder(conn).Encode(reply)
}

// SendCommand sends one command to a running daemon and returns its reply.
func SendCommand(cmd string) (ControlReply, error) {
	conn, err := net.Dial("unix", SocketPath)
	if err != nil {
		return ControlReply{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return ControlReply{}, err
	}
	var reply ControlReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return ControlReply{}, err
	}
	return reply, nil
}
