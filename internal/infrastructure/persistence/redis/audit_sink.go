package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// AuditSink implements audit.Sink on Redis. Ids are fixed-width, so the
// lexicographic order of the index is chronological.
type AuditSink struct {
	client *Client
}

// NewAuditSink creates a new AuditSink.
func NewAuditSink(client *Client) *AuditSink {
	return &AuditSink{client: client}
}

var _ audit.Sink = (*AuditSink)(nil)

// Append stores one entry.
func (s *AuditSink) Append(ctx context.Context, e audit.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return shared.WrapError("audit", "Append", shared.ErrInvalidInput, "cannot encode entry", err)
	}

	_, err = s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.client.AuditEntriesKey(), e.ID, data)
		pipe.ZAdd(ctx, s.client.AuditIndexKey(), redis.Z{Score: 0, Member: e.ID})
		return nil
	})
	return translate("AuditAppend", err)
}

// ScanReverse returns up to limit entries in descending id order.
func (s *AuditSink) ScanReverse(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids, err := s.client.rdb.ZRevRange(ctx, s.client.AuditIndexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, translate("AuditScan", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := s.client.rdb.HMGet(ctx, s.client.AuditEntriesKey(), ids...).Result()
	if err != nil {
		return nil, translate("AuditScan", err)
	}

	out := make([]audit.Entry, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e audit.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Recreate drops every audit key.
func (s *AuditSink) Recreate(ctx context.Context) error {
	err := s.client.rdb.Del(ctx, s.client.AuditIndexKey(), s.client.AuditEntriesKey()).Err()
	return translate("AuditRecreate", err)
}
