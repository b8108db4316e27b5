/*
Copyright © 2025 the galvoscan authors.
This file is part of galvoscan.

galvoscan is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

galvoscan is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with galvoscan.  If not, see <http://www.gnu.org/licenses/>.
*/

package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/galvoscan/sim"
)

const writeWait = 10 * time.Second

// updateMessage reports one accumulator write.
type updateMessage struct {
	Type  string  `json:"type"`
	IX    int     `json:"ix"`
	IY    int     `json:"iy"`
	Value float64 `json:"value"`
	Seq   int     `json:"seq"`
	Jump  bool    `json:"jump"`
}

// doneMessage is sent when a simulated scan ends.
type doneMessage struct {
	Type    string `json:"type"`
	Written int    `json:"written"`
	Total   int    `json:"total"`
	Error   string `json:"error,omitempty"`
}

// stateMessage is sent to each new subscriber.
type stateMessage struct {
	Type    string `json:"type"`
	Size    int    `json:"size"`
	Filled  int    `json:"filled"`
	Running bool   `json:"running"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans simulation updates out to websocket subscribers. It
// implements sim.Observer.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	log         logrus.FieldLogger
}

// NewHub returns an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		log:         log,
	}
}

// Subscribe registers conn and sends it msg before any broadcast.
func (h *Hub) Subscribe(conn *websocket.Conn, msg interface{}) (*subscriber, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	sub := &subscriber{conn: conn}
	// Hold the subscriber lock so no broadcast can overtake msg.
	sub.mu.Lock()
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = sub.conn.WriteMessage(websocket.TextMessage, data)
	sub.mu.Unlock()
	if err != nil {
		h.Unsubscribe(sub)
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes sub and closes its connection.
func (h *Hub) Unsubscribe(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	delete(h.subscribers, sub)
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) broadcast(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal message")
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			h.log.WithError(err).Warn("dropping websocket subscriber")
			h.Unsubscribe(sub)
		}
	}
}

// Observe broadcasts u to all subscribers.
func (h *Hub) Observe(u sim.Update) {
	h.broadcast(updateMessage{
		Type:  "update",
		IX:    u.Point.IX,
		IY:    u.Point.IY,
		Value: u.Value,
		Seq:   u.Seq,
		Jump:  u.Jump,
	})
}

// Done waits for run r to finish and broadcasts its outcome.
func (h *Hub) Done(r *sim.Run) {
	err := r.Wait()
	msg := doneMessage{Type: "done", Written: r.Written(), Total: r.Total()}
	if err != nil {
		msg.Error = err.Error()
	}
	h.broadcast(msg)
}
