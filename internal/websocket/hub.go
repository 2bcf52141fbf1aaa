package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-consult-copilot/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "consultation_events"

// Message is what subscribers of a patient receive.
type Message struct {
	Type      string      `json:"type"`
	PatientID string      `json:"patient_id"`
	Data      interface{} `json:"data"`
}

type clusterEnvelope struct {
	Origin    string          `json:"origin"`
	PatientID string          `json:"patient_id"`
	Message   json.RawMessage `json:"message"`
}

// Hub fans consultation updates out to the operator screens watching a
// patient. With Redis configured, updates also reach screens connected to
// other instances.
type Hub struct {
	// Subscribed clients: PatientID -> clients (multi-screen)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb      *redis.Client
	instance string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client, 64),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instance:   uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.PatientID] = append(h.clients[client.PatientID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"patient_id": client.PatientID, "operator_id": client.OperatorID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.PatientID]
	for i, c := range clients {
		if c == client {
			h.clients[client.PatientID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.PatientID]) == 0 {
		delete(h.clients, client.PatientID)
		h.logger.Info("Hub", "No more clients for patient", map[string]interface{}{"patient_id": client.PatientID})
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, id)
	}
}

// Publish pushes an update to every screen watching the patient.
func (h *Hub) Publish(patientID, msgType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: msgType, PatientID: patientID, Data: data})
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal message", map[string]interface{}{"type": msgType, "error": err.Error()})
		return
	}

	h.deliver(patientID, payload)

	if h.rdb != nil {
		env, _ := json.Marshal(clusterEnvelope{Origin: h.instance, PatientID: patientID, Message: payload})
		if err := h.rdb.Publish(context.Background(), clusterChannel, env).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliver(patientID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[patientID] {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("Hub", "Client send buffer full, disconnecting", map[string]interface{}{"patient_id": patientID})
			h.unregisterAsync(client)
		}
	}
}

// unregisterAsync never blocks the caller, which may hold the read lock.
func (h *Hub) unregisterAsync(client *Client) {
	select {
	case h.unregister <- client:
	default:
		go func() { h.unregister <- client }()
	}
}

// Subscribers returns how many local screens watch the patient.
func (h *Hub) Subscribers(patientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[patientID])
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var env clusterEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if env.Origin == h.instance {
				continue
			}
			h.deliver(env.PatientID, env.Message)
		}
	}
}
