package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/messaging"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// Hub рассылает принятые события подключенным tail клиентам.
// Реализует port.EventEmitter; медленные клиенты отключаются, ingestion не ждет.
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для broadcast сообщений
	broadcast chan Message

	// Каналы регистрации и удаления клиентов
	register   chan *Client
	unregister chan *Client

	// Закрывается при остановке hub
	done      chan struct{}
	closeOnce sync.Once

	// Mutex для защиты clients map
	mu sync.RWMutex

	logger *logger.Logger
}

// NewHub создает новый hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает hub до отмены ctx или Close (запускается в отдельной goroutine)
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Tail hub started")
	defer func() {
		_ = h.Close()
		h.disconnectAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Tail client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Tail client unregistered", "total_clients", total)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Канал клиента заполнен, закрываем соединение
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Tail client too slow, disconnected")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Emit ставит событие в очередь рассылки. При переполнении событие отбрасывается.
func (h *Hub) Emit(_ context.Context, tag string, at time.Time, record port.EmitRecord) error {
	if h.ClientCount() == 0 {
		return nil
	}

	msg := Message{Type: "event", Data: messaging.NewEnvelope(tag, at, record)}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Tail broadcast channel full, dropping event", "tag", tag)
	}
	return nil
}

// Close останавливает hub
func (h *Hub) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
