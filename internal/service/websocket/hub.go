package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/logger"
	"sentinel/internal/model"
	"sentinel/internal/telemetry"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// ErrHubStopped is returned when broadcasting after Stop.
var ErrHubStopped = errors.New("push hub stopped")

// HubService fans push messages out to every connected dashboard client.
type HubService struct {
	clients     map[*websocket.Conn]bool
	broadcast   chan outbound
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *logger.Logger
	instruments *telemetry.Instruments
}

type outbound struct {
	msgType string
	payload []byte
}

// NewHubService creates a hub. instruments may be nil.
func NewHubService(logger *logger.Logger, instruments *telemetry.Instruments) *HubService {
	h := &HubService{
		clients:     make(map[*websocket.Conn]bool),
		broadcast:   make(chan outbound, 64),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		logger:      logger,
		instruments: instruments,
	}
	if instruments != nil {
		instruments.RegisterClientGauge(h.GetClientCount)
	}
	return h
}

// Run processes registrations and broadcasts until Stop is called.
func (h *HubService) Run() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.send(websocket.TextMessage, msg.payload)
			if h.instruments != nil {
				h.instruments.MessageBroadcast(msg.msgType)
			}

		case <-ticker.C:
			h.send(websocket.PingMessage, nil)

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// send writes to every client, dropping the ones that fail.
func (h *HubService) send(messageType int, payload []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(messageType, payload); err != nil {
			h.logger.Error("Error sending message: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

// Stop closes all client connections and ends Run.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast wraps data in a {type, data} envelope and queues it for every client.
func (h *HubService) Broadcast(msgType string, data any) error {
	msg, err := model.NewPushMessage(msgType, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	select {
	case h.broadcast <- outbound{msgType: msgType, payload: payload}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
