package eventbus

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// ServeWS upgrades an HTTP request to a WebSocket connection and streams
// JobEvents for the given job id ("" for every job) until the client
// disconnects or the subscriber is dropped for being too slow.
func (b *Bus) ServeWS(w http.ResponseWriter, r *http.Request, jobID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("eventbus: websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := b.Subscribe(jobID)
	defer sub.Close()

	// Drain (and discard) client reads so ping/pong and close frames
	// are processed; SignalPress's event stream is server->client only.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for evt := range sub.Events() {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}
}
