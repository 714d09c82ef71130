package ws

import "sync"

// AllGames is the topic that receives every broadcast.
const AllGames = "*"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans out run announcements to subscribers keyed by game ID.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	count     chan countRequest
	done      chan struct{}
	stopOnce  sync.Once
}

type message struct {
	topic   string
	payload []byte
}

type subscription struct {
	topic  string
	client Subscriber
}

type countRequest struct {
	topic string
	reply chan int
}

// NewHub creates a Hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		count:     make(chan countRequest),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.topic]; !ok {
				h.clients[sub.topic] = make(map[Subscriber]struct{})
			}
			h.clients[sub.topic][sub.client] = struct{}{}
		case sub := <-h.unreg:
			h.remove(sub.topic, sub.client)
		case msg := <-h.broadcast:
			h.deliver(msg.topic, msg.payload)
			if msg.topic != AllGames {
				h.deliver(AllGames, msg.payload)
			}
		case req := <-h.count:
			req.reply <- len(h.clients[req.topic])
		case <-h.done:
			for _, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
			}
			h.clients = nil
			return
		}
	}
}

func (h *Hub) deliver(topic string, payload []byte) {
	for c := range h.clients[topic] {
		if err := c.Send(payload); err != nil {
			c.Close()
			h.remove(topic, c)
		}
	}
}

func (h *Hub) remove(topic string, client Subscriber) {
	clients, ok := h.clients[topic]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, topic)
	}
}

// Register subscribes client to a game. An empty gameID subscribes to all games.
func (h *Hub) Register(gameID string, client Subscriber) {
	select {
	case h.register <- subscription{topic: topicFor(gameID), client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(gameID string, client Subscriber) {
	select {
	case h.unreg <- subscription{topic: topicFor(gameID), client: client}:
	case <-h.done:
	}
}

// Broadcast sends payload to the subscribers of gameID and of all games.
func (h *Hub) Broadcast(gameID string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topicFor(gameID), payload: payload}:
	case <-h.done:
	}
}

// Subscribers reports how many clients follow gameID.
func (h *Hub) Subscribers(gameID string) int {
	select {
	case <-h.done:
		return 0
	default:
	}
	req := countRequest{topic: topicFor(gameID), reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// Close stops the dispatch loop and closes every subscriber.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.done) })
}

func topicFor(gameID string) string {
	if gameID == "" {
		return AllGames
	}
	return gameID
}
