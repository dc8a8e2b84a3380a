package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType defines the SSE event name.
type EventType string

const (
	EventJobCreated   EventType = "export_job.created"
	EventJobStarted   EventType = "export_job.started"
	EventJobCompleted EventType = "export_job.completed"
	EventJobFailed    EventType = "export_job.failed"
)

// JobEvent is the payload broadcast to admin SSE clients.
type JobEvent struct {
	Event        EventType `json:"event"`
	JobID        string    `json:"jobId"`
	DataType     string    `json:"dataType"`
	Format       string    `json:"format"`
	Status       string    `json:"status"`
	RecordCount  int       `json:"recordCount"`
	FileName     *string   `json:"fileName,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Filter narrows the events a client receives. Zero fields match anything.
type Filter struct {
	JobID    string
	DataType string
	// FinalOnly skips created and started events.
	FinalOnly bool
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(event *JobEvent) bool {
	if f.JobID != "" && f.JobID != event.JobID {
		return false
	}
	if f.DataType != "" && f.DataType != event.DataType {
		return false
	}
	if f.FinalOnly && event.Event != EventJobCompleted && event.Event != EventJobFailed {
		return false
	}
	return true
}

// Client is one connected dashboard stream.
type Client struct {
	ID     string
	Events chan []byte
	filter Filter
	// dropped counts events lost to a full buffer.
	dropped int
}

// Hub fans job events out to SSE clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	bufSize int
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		bufSize: 64,
	}
}

// Register adds a client that receives the events matching filter.
// Re-registering an ID replaces the previous stream.
func (h *Hub) Register(clientID string, filter Filter) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[clientID]; ok {
		close(old.Events)
	}
	c := &Client{
		ID:     clientID,
		Events: make(chan []byte, h.bufSize),
		filter: filter,
	}
	h.clients[clientID] = c
	log.Info().
		Str("client_id", clientID).
		Str("job_id", filter.JobID).
		Str("data_type", filter.DataType).
		Int("total_clients", len(h.clients)).
		Msg("SSE client connected")
	return c
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	close(c.Events)
	delete(h.clients, clientID)
	log.Info().
		Str("client_id", clientID).
		Int("dropped_events", c.dropped).
		Int("total_clients", len(h.clients)).
		Msg("SSE client disconnected")
}

// Broadcast delivers the event to every client whose filter matches and
// returns how many received it. Slow clients lose the event instead of
// blocking the job pipeline.
func (h *Hub) Broadcast(event *JobEvent) int {
	var data []byte

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, c := range h.clients {
		if !c.filter.Matches(event) {
			continue
		}
		if data == nil {
			var err error
			if data, err = json.Marshal(event); err != nil {
				log.Error().Err(err).Str("job_id", event.JobID).Msg("Failed to marshal SSE event")
				return 0
			}
		}
		select {
		case c.Events <- data:
			delivered++
		default:
			c.dropped++
			log.Warn().Str("client_id", c.ID).Str("job_id", event.JobID).Msg("SSE client buffer full, dropping event")
		}
	}
	return delivered
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
