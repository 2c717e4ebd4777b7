package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lethe/charon/internal/server"
)

// lobby is a minimal consumer of the batched event stream: it names guests,
// announces arrivals and departures, and relays chat lines. It stands in for
// the game world and runs entirely inside the tick handler, so none of its
// state needs locking.
type lobby struct {
	srv *server.Server
	log zerolog.Logger

	nextGuest int
	names     map[server.ConnID]string
}

func newLobby(srv *server.Server, log zerolog.Logger) *lobby {
	return &lobby{
		srv:   srv,
		log:   log,
		names: make(map[server.ConnID]string),
	}
}

func (l *lobby) tick(batch server.Batch) {
	for _, id := range batch.Joined {
		l.nextGuest++
		name := fmt.Sprintf("guest%d", l.nextGuest)
		l.names[id] = name
		l.log.Info().Uint32("conn", uint32(id)).Str("name", name).Msg("joined")
		l.srv.Send(id, "Welcome, "+name+".")
		l.srv.Broadcast(name+" has joined.", id)
	}
	for _, id := range batch.Left {
		name, ok := l.names[id]
		if !ok {
			continue
		}
		delete(l.names, id)
		l.log.Info().Uint32("conn", uint32(id)).Str("name", name).Msg("left")
		l.srv.Broadcast(name+" has left.", 0)
	}
	for _, m := range batch.Messages {
		l.handleLine(m)
	}
}

func (l *lobby) handleLine(m server.Message) {
	name, ok := l.names[m.ID]
	if !ok {
		// Lines typed before the handshake finished are dropped.
		return
	}
	line := strings.TrimRight(m.Line, "\r\n")
	switch line {
	case "":
	case "/hide":
		l.srv.Hide(m.ID)
	case "/show":
		l.srv.Unhide(m.ID)
	case "/who":
		others := make([]string, 0, len(l.names))
		for _, n := range l.names {
			others = append(others, n)
		}
		l.srv.Send(m.ID, strings.Join(others, ", "))
	default:
		l.srv.Broadcast(name+": "+line, m.ID)
	}
}
