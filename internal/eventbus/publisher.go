package eventbus

import (
	"encoding/json"
	"log"
	"time"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/nats-io/nats.go"
)

// Subjects published by the engine
const (
	SubjectNotifications = "compliance.notifications"
	SubjectChanges       = "compliance.changes"
	SubjectCycles        = "compliance.cycles"
)

// Publisher publishes engine events to NATS
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher creates a new event bus publisher
func NewPublisher(natsURL string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Engine (Pub) connected to NATS at %s", natsURL)

	return &Publisher{
		conn: conn,
	}, nil
}

// PublishNotification publishes a routed notification to the
// "compliance.notifications" topic
func (p *Publisher) PublishNotification(n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(SubjectNotifications, data); err != nil {
		return err
	}

	log.Printf("Published notification to event bus: [%s] %s", n.Priority, n.NotificationID)

	return nil
}

// PublishChange publishes a detected regulatory change to the
// "compliance.changes" topic
func (p *Publisher) PublishChange(change *models.RegulatoryChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(SubjectChanges, data); err != nil {
		return err
	}

	log.Printf("Published change to event bus: [%s] %s", change.Severity, change.ChangeID)

	return nil
}

// PublishCycleReport publishes a completed cycle report to the
// "compliance.cycles" topic so dashboards can watch completion without
// polling
func (p *Publisher) PublishCycleReport(report *models.MonitoringCycleReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(SubjectCycles, data); err != nil {
		return err
	}

	log.Printf("Published cycle report to event bus: %s", report.CycleID)

	return nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		log.Println("Engine (Pub) disconnected from NATS")
	}
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
