package SSE

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const clientBuffer = 8

// SSEBroadcaster tracks open event streams per user.
type SSEBroadcaster struct {
	clients map[chan string]uint
	mu      sync.Mutex
}

func NewSSEBroadcaster() *SSEBroadcaster {
	return &SSEBroadcaster{
		clients: make(map[chan string]uint),
	}
}

// Register opens a stream for the user.
func (b *SSEBroadcaster) Register(userID uint) chan string {
	client := make(chan string, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = userID
	return client
}

// Unregister removes a client from the broadcaster.
func (b *SSEBroadcaster) Unregister(client chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(client)
}

func (b *SSEBroadcaster) remove(client chan string) {
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
	}
}

// Publish sends a message to every stream of one user and returns how many received it.
func (b *SSEBroadcaster) Publish(userID uint, message string) int {
	return b.send(message, func(id uint) bool { return id == userID })
}

// Broadcast sends a message to all registered clients.
func (b *SSEBroadcaster) Broadcast(message string) int {
	return b.send(message, func(uint) bool { return true })
}

func (b *SSEBroadcaster) send(message string, match func(uint) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for client, userID := range b.clients {
		if !match(userID) {
			continue
		}
		select {
		case client <- message:
			delivered++
		case <-time.After(1 * time.Second):
			// If the client is not responding, unregister them.
			b.remove(client)
		}
	}
	return delivered
}

func (b *SSEBroadcaster) Count(userID uint) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, id := range b.clients {
		if id == userID {
			n++
		}
	}
	return n
}

var Broadcaster = NewSSEBroadcaster()

// RequestSSE streams the authenticated user's notifications.
func RequestSSE(c *gin.Context) {
	userID := c.GetUint("userID")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan := Broadcaster.Register(userID)
	defer Broadcaster.Unregister(clientChan)
	Logging.Logger.Debug("SSE client connected", zap.Uint("user_id", userID))

	fmt.Fprintf(c.Writer, "data: %s\n\n", "connected")
	c.Writer.Flush()
	for {
		select {
		case message, ok := <-clientChan:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", message)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
