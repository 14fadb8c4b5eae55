package eventbus

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectRegulatoryUpdates is published by the external scraping layer
// whenever a regulatory source changes
const SubjectRegulatoryUpdates = "regulatory.updates"

// RegulatoryUpdateEvent is one revised content unit from the scraping layer
type RegulatoryUpdateEvent struct {
	UnitID    string `json:"unit_id"`
	Framework string `json:"framework"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Subscriber buffers regulatory updates until the next monitoring cycle
// drains them. Updates arriving mid-cycle wait for the following cycle.
type Subscriber struct {
	conn         *nats.Conn
	subscription *nats.Subscription

	mu      sync.Mutex
	pending []*RegulatoryUpdateEvent
}

// NewSubscriber connects to NATS for regulatory update intake.
func NewSubscriber(natsURL string) (*Subscriber, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Engine (Sub) connected to NATS at %s", natsURL)

	return &Subscriber{
		conn: conn,
	}, nil
}

// Start begins listening for regulatory updates
func (s *Subscriber) Start() error {
	var err error

	log.Printf("Subscribing to '%s' for regulatory content updates...", SubjectRegulatoryUpdates)

	s.subscription, err = s.conn.Subscribe(SubjectRegulatoryUpdates, func(msg *nats.Msg) {
		s.handleUpdate(msg)
	})
	if err != nil {
		return err
	}

	log.Printf("Subscribed to '%s'", SubjectRegulatoryUpdates)

	return nil
}

func (s *Subscriber) handleUpdate(msg *nats.Msg) {
	var event RegulatoryUpdateEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("Failed to unmarshal regulatory update: %v", err)
		return
	}

	if event.UnitID == "" {
		log.Printf("Regulatory update without unit_id, skipping")
		return
	}

	s.mu.Lock()
	s.pending = append(s.pending, &event)
	s.mu.Unlock()

	log.Printf("Buffered regulatory update for unit %s (%s)", event.UnitID, event.Framework)
}

// Drain returns and clears the buffered updates. Called by the
// orchestrator at the start of the change detection stage.
func (s *Subscriber) Drain() []*RegulatoryUpdateEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := s.pending
	s.pending = nil
	return updates
}

// Close unsubscribes and disconnects.
func (s *Subscriber) Close() {
	if s.subscription != nil {
		s.subscription.Unsubscribe()
	}

	if s.conn != nil {
		s.conn.Close()
		log.Printf("Engine disconnected from NATS")
	}
}

// IsConnected returns true if connected to NATS
func (s *Subscriber) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}
