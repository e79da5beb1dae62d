package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// fieldVersion holds the row version inside the record hash.
const fieldVersion = "_version"

// deleteAttempts bounds DeleteRow retries after a concurrent write.
const deleteAttempts = 3

// storedVersion is the JSON element of a versions list.
type storedVersion struct {
	Value     string `json:"value"`
	WrittenAt int64  `json:"writtenAt"`
}

// RecordStore implements academic.RecordStore on Redis.
type RecordStore struct {
	client    *Client
	retention int
	now       func() time.Time
}

// RecordStoreOption configures a RecordStore.
type RecordStoreOption func(*RecordStore)

// WithRetention sets how many history versions are kept per record.
func WithRetention(n int) RecordStoreOption {
	return func(s *RecordStore) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithClock sets the clock used to timestamp history versions.
func WithClock(now func() time.Time) RecordStoreOption {
	return func(s *RecordStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(client *Client, opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{
		client:    client,
		retention: academic.SnapshotRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ academic.RecordStore = (*RecordStore)(nil)

// EnsureSchema is a connectivity check; Redis needs no provisioning.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	return translate("EnsureSchema", s.client.Ping(ctx))
}

// Ping checks connectivity.
func (s *RecordStore) Ping(ctx context.Context) error {
	return translate("Ping", s.client.Ping(ctx))
}

// GetRow returns the row stored under key.
func (s *RecordStore) GetRow(ctx context.Context, key string) (academic.Row, error) {
	fields, err := s.client.rdb.HGetAll(ctx, s.client.RecordKey(key)).Result()
	if err != nil {
		return academic.Row{}, translate("GetRow", err)
	}
	if len(fields) == 0 {
		return academic.Row{}, shared.ErrRecordNotFound
	}
	return rowFromHash(fields)
}

// PutRow writes the row under WATCH so a concurrent writer aborts the
// transaction and the caller sees a conflict.
func (s *RecordStore) PutRow(ctx context.Context, key string, cols academic.Columns, expected int64) (int64, error) {
	recordKey := s.client.RecordKey(key)
	versionsKey := s.client.VersionsKey(key)
	tombstoneKey := s.client.TombstoneKey(key)

	var blob []byte
	if history, ok := cols[academic.ColHistory]; ok {
		var err error
		blob, err = json.Marshal(storedVersion{Value: history, WrittenAt: s.now().UTC().UnixMilli()})
		if err != nil {
			return 0, shared.WrapError("store", "PutRow", shared.ErrInvalidInput, "cannot encode history version", err)
		}
	}

	var newVersion int64
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, recordKey, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != expected {
			return shared.ErrRecordConflict
		}
		base := current
		if current == 0 {
			base, err = tx.Get(ctx, tombstoneKey).Int64()
			if errors.Is(err, redis.Nil) {
				base = 0
			} else if err != nil {
				return err
			}
		}
		newVersion = base + 1

		fields := make(map[string]interface{}, len(cols)+1)
		for col, v := range cols {
			fields[col] = v
		}
		fields[fieldVersion] = newVersion

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, recordKey, fields)
			if current == 0 {
				pipe.Del(ctx, tombstoneKey)
			}
			pipe.ZAdd(ctx, s.client.RecordIndexKey(), redis.Z{Score: 0, Member: key})
			if blob != nil {
				pipe.LPush(ctx, versionsKey, blob)
				pipe.LTrim(ctx, versionsKey, 0, int64(s.retention-1))
			}
			return nil
		})
		return err
	}

	err := s.client.rdb.Watch(ctx, txf, recordKey, tombstoneKey)
	switch {
	case err == nil:
		return newVersion, nil
	case shared.IsConflict(err), errors.Is(err, redis.TxFailedErr):
		return 0, shared.ErrRecordConflict
	default:
		return 0, translate("PutRow", err)
	}
}

// Scan returns up to limit rows ordered by matric. The history column is
// not loaded.
func (s *RecordStore) Scan(ctx context.Context, limit int) ([]academic.KeyedRow, error) {
	if limit <= 0 {
		return nil, nil
	}

	keys, err := s.client.rdb.ZRange(ctx, s.client.RecordIndexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, translate("Scan", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.SliceCmd, len(keys))
	_, err = s.client.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HMGet(ctx, s.client.RecordKey(k),
				academic.ColName, academic.ColDept, academic.ColGPA, academic.ColCGPA, fieldVersion)
		}
		return nil
	})
	if err != nil {
		return nil, translate("Scan", err)
	}

	out := make([]academic.KeyedRow, 0, len(keys))
	for i, k := range keys {
		vals := cmds[i].Val()
		if len(vals) != 5 || vals[4] == nil {
			// Deleted between the index read and the fetch.
			continue
		}
		version, _ := strconv.ParseInt(asString(vals[4]), 10, 64)
		out = append(out, academic.KeyedRow{
			Key: k,
			Row: academic.Row{
				Columns: academic.Columns{
					academic.ColName: asString(vals[0]),
					academic.ColDept: asString(vals[1]),
					academic.ColGPA:  asString(vals[2]),
					academic.ColCGPA: asString(vals[3]),
				},
				Version: version,
			},
		})
	}
	return out, nil
}

// DeleteRow removes the row, its versions and its index entry. The row's
// last version is kept under the tombstone key so a re-created row continues
// numbering after it.
func (s *RecordStore) DeleteRow(ctx context.Context, key string) error {
	recordKey := s.client.RecordKey(key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, recordKey, fieldVersion).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if current > 0 {
				pipe.Set(ctx, s.client.TombstoneKey(key), current, 0)
			}
			pipe.Del(ctx, recordKey, s.client.VersionsKey(key))
			pipe.ZRem(ctx, s.client.RecordIndexKey(), key)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		// A write racing the delete aborts the transaction; the next pass
		// sees it and tombstones the newer version.
		if err = s.client.rdb.Watch(ctx, txf, recordKey); !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	return translate("DeleteRow", err)
}

// GetVersions returns retained history values, newest first.
func (s *RecordStore) GetVersions(ctx context.Context, key, column string, max int) ([]academic.Version, error) {
	if column != academic.ColHistory {
		return nil, shared.NewDomainError("store", "GetVersions", shared.ErrInvalidInput, "column "+column+" is not versioned")
	}
	if max <= 0 {
		return nil, nil
	}

	raw, err := s.client.rdb.LRange(ctx, s.client.VersionsKey(key), 0, int64(max-1)).Result()
	if err != nil {
		return nil, translate("GetVersions", err)
	}

	out := make([]academic.Version, 0, len(raw))
	for _, item := range raw {
		var sv storedVersion
		if err := json.Unmarshal([]byte(item), &sv); err != nil {
			// An undecodable element is surfaced as a value that fails history
			// decoding, so snapshot listing skips it.
			out = append(out, academic.Version{Value: item})
			continue
		}
		out = append(out, academic.Version{Value: sv.Value, WrittenAt: time.UnixMilli(sv.WrittenAt).UTC()})
	}
	return out, nil
}

func rowFromHash(fields map[string]string) (academic.Row, error) {
	row := academic.Row{Columns: make(academic.Columns, len(fields))}
	for k, v := range fields {
		if k == fieldVersion {
			version, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return academic.Row{}, shared.WrapError("store", "GetRow", shared.ErrCorruptData, "bad row version", err)
			}
			row.Version = version
			continue
		}
		row.Columns[k] = v
	}
	return row, nil
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
