package scanfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rollcall/internal/attendance"
)

// Field names of a scan record hash.
const (
	fieldTag        = "tag"
	fieldDeviceID   = "device_id"
	fieldReceivedAt = "received_at"
	fieldStatus     = "status"
	fieldResponse   = "response"
)

// RedisFeed stores each scan as a hash <prefix>:<id>, queues new ids on the
// list <prefix>:pending (LPUSH/BRPOP) and keeps the newest id in <prefix>:latest.
type RedisFeed struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisFeed builds a feed under the given key prefix.
func NewRedisFeed(client *redis.Client, prefix string, logger *slog.Logger) *RedisFeed {
	if prefix == "" {
		prefix = "rfid_scans"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{client: client, prefix: prefix, logger: logger}
}

func (f *RedisFeed) recordKey(id string) string { return f.prefix + ":" + id }
func (f *RedisFeed) pendingKey() string         { return f.prefix + ":pending" }
func (f *RedisFeed) latestKey() string          { return f.prefix + ":latest" }

// Append writes the record, queues its id and marks it latest in one MULTI.
func (f *RedisFeed) Append(ctx context.Context, evt attendance.ScanEvent) (string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	_, err := f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, f.recordKey(evt.ID),
			fieldTag, evt.Tag,
			fieldDeviceID, evt.DeviceID,
			fieldReceivedAt, evt.ReceivedAt.Format(time.RFC3339Nano),
		)
		pipe.LPush(ctx, f.pendingKey(), evt.ID)
		pipe.Set(ctx, f.latestKey(), evt.ID, 0)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("append scan: %w", err)
	}
	return evt.ID, nil
}

// Subscribe streams scans using BRPOP on the pending list. An id popped
// after ctx is canceled is either delivered or pushed back onto the list.
func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan attendance.ScanEvent, error) {
	if err := f.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	out := make(chan attendance.ScanEvent)
	go func() {
		defer close(out)
		for {
			res, err := f.client.BRPop(ctx, 5*time.Second, f.pendingKey()).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				f.logger.WarnContext(ctx, "brpop failed", slog.Any("error", err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) != 2 {
				continue
			}
			if !f.handOff(ctx, out, res[1]) {
				return
			}
		}
	}()
	return out, nil
}

// handOff delivers a popped scan. It reports false once ctx is done, after
// returning an undelivered id to the pending list.
func (f *RedisFeed) handOff(ctx context.Context, out chan<- attendance.ScanEvent, id string) bool {
	rec, err := f.get(context.WithoutCancel(ctx), id)
	if err != nil {
		f.logger.ErrorContext(ctx, "read scan record failed",
			slog.String("scan_id", id), slog.Any("error", err))
		f.requeue(ctx, id)
		if ctx.Err() != nil {
			return false
		}
		time.Sleep(time.Second)
		return true
	}
	select {
	case out <- rec.Event():
		return true
	case <-ctx.Done():
		f.requeue(ctx, id)
		return false
	}
}

// requeue puts id back at the BRPOP end of the pending list.
func (f *RedisFeed) requeue(ctx context.Context, id string) {
	if err := f.client.RPush(context.WithoutCancel(ctx), f.pendingKey(), id).Err(); err != nil {
		f.logger.ErrorContext(ctx, "requeue scan failed",
			slog.String("scan_id", id), slog.Any("error", err))
	}
}

// writeOutcome sets status and response only on an existing scan hash.
var writeOutcome = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], ARGV[3], ARGV[4])
return 1
`)

// WriteOutcome updates status and response on the scan hash. It returns
// ErrUnknownScan when the hash does not exist.
func (f *RedisFeed) WriteOutcome(ctx context.Context, id string, out attendance.Outcome) error {
	n, err := writeOutcome.Run(ctx, f.client, []string{f.recordKey(id)},
		fieldStatus, string(out.Status),
		fieldResponse, out.Reason,
	).Int()
	if err != nil {
		return fmt.Errorf("write outcome %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("write outcome %s: %w", id, ErrUnknownScan)
	}
	return nil
}

// Latest reads the scan whose id is stored under <prefix>:latest.
func (f *RedisFeed) Latest(ctx context.Context) (Record, error) {
	id, err := f.client.Get(ctx, f.latestKey()).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNoScans
	}
	if err != nil {
		return Record{}, err
	}
	return f.get(ctx, id)
}

func (f *RedisFeed) get(ctx context.Context, id string) (Record, error) {
	fields, err := f.client.HGetAll(ctx, f.recordKey(id)).Result()
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(id, fields), nil
}

// decodeRecord maps hash fields onto a Record. Missing fields stay empty so
// the pipeline can reject incomplete scans itself.
func decodeRecord(id string, fields map[string]string) Record {
	rec := Record{
		ID:       id,
		Tag:      fields[fieldTag],
		DeviceID: fields[fieldDeviceID],
		Status:   fields[fieldStatus],
		Response: fields[fieldResponse],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldReceivedAt]); err == nil {
		rec.ReceivedAt = ts
	}
	return rec
}
