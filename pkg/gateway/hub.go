package gateway

import (
	"sync"
	"time"

	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	maxClients   = 100
	writeTimeout = 5 * time.Second
)

// hub relays broker events to connected websocket clients. A single relay
// goroutine reads the event subscription and fans out, so slow clients never
// block the broker.
type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	broker  *events.Broker
	logger  zerolog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func newHub(broker *events.Broker) *hub {
	return &hub{
		clients: make(map[*websocket.Conn]struct{}),
		broker:  broker,
		logger:  log.WithComponent("gateway"),
		stopCh:  make(chan struct{}),
	}
}

func (h *hub) run() {
	sub := h.broker.Subscribe()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.broker.Unsubscribe(sub)
		for {
			select {
			case <-h.stopCh:
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				h.fanOut(ev)
			}
		}
	}()
}

func (h *hub) fanOut(ev *events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug().Err(err).Msg("websocket write failed")
			go h.remove(conn)
		}
	}
}

// add registers a client. Returns false when the connection cap is reached.
func (h *hub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= maxClients {
		return false
	}
	h.clients[conn] = struct{}{}
	metrics.GatewayClients.Set(float64(len(h.clients)))
	return true
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		metrics.GatewayClients.Set(float64(len(h.clients)))
	}
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) shutdown() {
	close(h.stopCh)
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	metrics.GatewayClients.Set(0)
}
