package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamEvents upgrades to a websocket and forwards every AccountEvent on
// its own subscription, one JSON frame per event, until the connection
// closes — at which point it unsubscribes so the exchange stops fanning
// events into a channel nobody reads.
func (s *Server) streamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("api: ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.client.Subscribe()
	defer unsubscribe()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("api: marshal event: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
