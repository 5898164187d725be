package stream

import (
	"context"
	"strings"
	"sync"

	"github.com/bytrustu/sns/internal/logging"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	channelPrefix  = "feed:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub fans topic messages out to websocket clients. With redis configured every
// message goes through the feed:<topic>:events channel so all instances see it.
type Hub struct {
	redis   *redis.Client
	log     *logrus.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	ready  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

type Client struct {
	Topic string
	Send  chan []byte
}

func NewHub(redisClient *redis.Client, logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		redis:   redisClient,
		log:     logger,
		clients: map[string]map[*Client]struct{}{},
		ready:   make(chan struct{}),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	if redisClient != nil {
		go h.subscribeRedis(ctx)
	} else {
		close(h.ready)
		close(h.done)
	}
	return h
}

// Ready is closed once the hub receives messages for every topic.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Close stops the redis subscription.
func (h *Hub) Close() {
	h.cancel()
	<-h.done
}

func (h *Hub) Register(topic string) *Client {
	client := &Client{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[*Client]struct{}{}
	}
	h.clients[topic][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if topicClients, ok := h.clients[client.Topic]; ok {
		if _, ok := topicClients[client]; !ok {
			return
		}
		delete(topicClients, client)
		if len(topicClients) == 0 {
			delete(h.clients, client.Topic)
		}
		close(client.Send)
	}
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (h *Hub) Broadcast(topic string, payload []byte) {
	if h.redis == nil {
		h.deliver(topic, payload)
		return
	}
	if err := h.redis.Publish(context.Background(), redisChannel(topic), payload).Err(); err != nil {
		h.log.WithError(err).WithField("topic", topic).Warn("redis publish failed, delivering locally")
		h.deliver(topic, payload)
	}
}

// deliver drops the message for clients whose buffer is full.
func (h *Hub) deliver(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[topic] {
		select {
		case client.Send <- payload:
		default:
			h.log.WithField("topic", topic).Debug("dropping message for slow client")
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	defer close(h.done)

	pubsub := h.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.WithError(err).Error("redis subscribe failed")
		return
	}
	close(h.ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			topic := topicFromChannel(msg.Channel)
			if topic == "" {
				continue
			}
			h.deliver(topic, []byte(msg.Payload))
		}
	}
}

func redisChannel(topic string) string {
	return channelPrefix + topic + channelSuffix
}

func topicFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
