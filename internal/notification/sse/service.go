// Package sse provides Server-Sent Events support for real-time notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"engagement_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventConfirmationChanged EventType = "appointment_confirmation_changed"
	EventReminderSent        EventType = "reminder_sent"
	EventAlertCreated        EventType = "alert_created"
	EventLeadScoreUpdated    EventType = "lead_score_updated"
)

const (
	clientBuffer      = 32
	heartbeatInterval = 25 * time.Second
)

// Event represents an SSE event payload
type Event struct {
	Type   EventType  `json:"type"`
	LeadID *uuid.UUID `json:"leadId,omitempty"`
	Data   any        `json:"data,omitempty"`
}

// Publisher delivers an event to every stream a user has open.
type Publisher interface {
	Publish(userID uuid.UUID, event Event)
}

type client struct {
	userID uuid.UUID
	events chan Event
}

// Service manages SSE connections of this process and fans events out to them.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	closed  bool
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log.WithComponent("sse"),
	}
}

func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c.userID] = append(s.clients[c.userID], c)
	return true
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
}

// Publish sends an event to a specific user. Slow clients drop events rather
// than block the publisher.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := s.clients[userID]
	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("event buffer full", "userId", userID, "type", event.Type)
		}
	}
	if len(clients) > 0 {
		s.log.Debug("event published", "userId", userID, "type", event.Type, "clients", len(clients))
	}
}

// ClientCount returns how many streams the user has open.
func (s *Service) ClientCount(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		cl := &client{userID: userID, events: make(chan Event, clientBuffer)}
		if !s.addClient(cl) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
			return
		}
		defer s.removeClient(cl)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()
		s.log.Debug("client connected", "userId", userID)

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("client disconnected", "userId", userID)
				return
			case <-heartbeat.C:
				c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
				c.Writer.Flush()
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					s.log.Error("marshal event", "type", event.Type, "error", err)
					continue
				}
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client and refuses new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
	s.closed = true
}
