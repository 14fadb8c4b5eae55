package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/redis/go-redis/v9"
)

// Client is a redis-backed evidence store and idempotency registry.
//
// Key layout:
//
//	evidence:<id>           - evidence item JSON
//	evidence:req:<req_id>   - set of evidence IDs for a requirement
//	evidence:requirements   - set of requirement IDs with evidence
//	change:<change_id>      - registered regulatory change JSON
//	gap:<gap_id>            - registered gap ID marker
//
// Evidence keys are never deleted or overwritten - the trail is append-only.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to redis and verifies the connection.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Connected to Redis: %s", addr)

	return &Client{rdb: rdb}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Append stores an evidence item and indexes it under its requirement.
func (c *Client) Append(ctx context.Context, ev *models.Evidence) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	item := *ev
	if item.ID == "" {
		seq, err := c.rdb.Incr(ctx, "evidence:seq").Result()
		if err != nil {
			return &models.TransientError{Op: "evidence sequence", Err: err}
		}
		item.ID = generateEvidenceID(item.RequirementID, int(seq))
	}

	data, err := json.Marshal(&item)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	evidenceKey := fmt.Sprintf("evidence:%s", item.ID)
	if err := c.rdb.SetNX(ctx, evidenceKey, data, 0).Err(); err != nil {
		return &models.TransientError{Op: "evidence store", Err: err}
	}

	reqSetKey := fmt.Sprintf("evidence:req:%s", item.RequirementID)
	if err := c.rdb.SAdd(ctx, reqSetKey, item.ID).Err(); err != nil {
		return &models.TransientError{Op: "evidence index", Err: err}
	}

	if err := c.rdb.SAdd(ctx, "evidence:requirements", item.RequirementID).Err(); err != nil {
		return &models.TransientError{Op: "evidence requirement index", Err: err}
	}

	return nil
}

// Evidence returns all evidence for one requirement.
func (c *Client) Evidence(ctx context.Context, requirementID string) ([]*models.Evidence, error) {
	reqSetKey := fmt.Sprintf("evidence:req:%s", requirementID)

	ids, err := c.rdb.SMembers(ctx, reqSetKey).Result()
	if err != nil {
		return nil, &models.TransientError{Op: "evidence lookup", Err: err}
	}

	items := make([]*models.Evidence, 0, len(ids))
	for _, id := range ids {
		data, err := c.rdb.Get(ctx, fmt.Sprintf("evidence:%s", id)).Result()
		if err != nil {
			continue // Skip errors
		}

		var ev models.Evidence
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		items = append(items, &ev)
	}

	return copyEvidence(items), nil
}

// Snapshot reads every requirement's evidence in one pass.
func (c *Client) Snapshot(ctx context.Context) (map[string][]*models.Evidence, error) {
	reqIDs, err := c.rdb.SMembers(ctx, "evidence:requirements").Result()
	if err != nil {
		return nil, &models.TransientError{Op: "evidence snapshot", Err: err}
	}

	snapshot := make(map[string][]*models.Evidence, len(reqIDs))
	for _, reqID := range reqIDs {
		items, err := c.Evidence(ctx, reqID)
		if err != nil {
			return nil, err
		}
		snapshot[reqID] = items
	}

	return snapshot, nil
}

// GetChange looks up a registered regulatory change.
func (c *Client) GetChange(ctx context.Context, changeID string) (*models.RegulatoryChange, bool, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("change:%s", changeID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var change models.RegulatoryChange
	if err := json.Unmarshal([]byte(data), &change); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal change: %w", err)
	}
	return &change, true, nil
}

// PutChange registers a change. Registration never overwrites - the first
// write for a change ID wins.
func (c *Client) PutChange(ctx context.Context, change *models.RegulatoryChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	return c.rdb.SetNX(ctx, fmt.Sprintf("change:%s", change.ChangeID), data, 0).Err()
}
