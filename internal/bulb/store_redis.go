package bulb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries when a watched key
// changes underneath us.
const maxTxRetries = 16

// RedisKeys names the keys used by RedisStore.
type RedisKeys struct {
	// Hash maps bulb id to record body.
	Hash string
	// Counter is the INCR counter for ids.
	Counter string
	// Channels maps channel to owning bulb id.
	Channels string
}

// DefaultRedisKeys matches the layout of existing deployments.
var DefaultRedisKeys = RedisKeys{
	Hash:     "bulbs",
	Counter:  "bulb_id",
	Channels: "bulb_channels",
}

// RedisStore implements Store on a Redis hash plus an INCR counter.
//
// Channel reservation uses WATCH/MULTI over the record hash and a
// channel-owner hash, so two gateways sharing one Redis cannot create
// bulbs on the same channel.
type RedisStore struct {
	client redis.UniversalClient
	keys   RedisKeys
}

// NewRedisStore creates a store using client and keys.
func NewRedisStore(client redis.UniversalClient, keys RedisKeys) *RedisStore {
	return &RedisStore{client: client, keys: keys}
}

// GetAll returns every record ordered by id. Hash fields that are not
// numeric ids are skipped.
func (s *RedisStore) GetAll(ctx context.Context) ([]Record, error) {
	all, err := s.client.HGetAll(ctx, s.keys.Hash).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.keys.Hash, err)
	}

	records := make([]Record, 0, len(all))
	for field, body := range all {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		records = append(records, Record{ID: id, Data: []byte(body)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Get returns the record body for id.
func (s *RedisStore) Get(ctx context.Context, id uint64) ([]byte, error) {
	body, err := s.client.HGet(ctx, s.keys.Hash, idField(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading bulb %d: %w", id, err)
	}
	return body, nil
}

// putScript replaces a hash field only when it already exists. It runs
// atomically on the server, so updates to different bulbs never contend.
var putScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Put replaces the record body for an existing id.
func (s *RedisStore) Put(ctx context.Context, id uint64, data []byte) error {
	updated, err := putScript.Run(ctx, s.client, []string{s.keys.Hash}, idField(id), data).Int()
	if err != nil {
		return fmt.Errorf("writing bulb %d: %w", id, err)
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// Create stores a record and claims channel for it.
//
// A channel entry whose owner no longer has a record (left behind by an
// older deployment that did not maintain the channel hash) is reclaimed.
func (s *RedisStore) Create(ctx context.Context, id uint64, channel int, data []byte) error {
	field := idField(id)
	chField := strconv.Itoa(channel)

	return s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, s.keys.Hash, field).Result()
		if err != nil {
			return fmt.Errorf("checking bulb %d: %w", id, err)
		}
		if exists {
			return fmt.Errorf("bulb %d: %w", id, ErrExists)
		}

		owner, err := tx.HGet(ctx, s.keys.Channels, chField).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("reading owner of channel %d: %w", channel, err)
		default:
			live, err := tx.HExists(ctx, s.keys.Hash, owner).Result()
			if err != nil {
				return fmt.Errorf("checking bulb %s: %w", owner, err)
			}
			if live {
				return fmt.Errorf("channel %d: %w", channel, ErrChannelTaken)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.keys.Hash, field, data)
			pipe.HSet(ctx, s.keys.Channels, chField, field)
			return nil
		})
		return err
	}, s.keys.Hash, s.keys.Channels)
}

// Delete removes the record for id and any channel entries it owns.
func (s *RedisStore) Delete(ctx context.Context, id uint64) (bool, error) {
	field := idField(id)
	var removed bool

	err := s.watch(ctx, func(tx *redis.Tx) error {
		owners, err := tx.HGetAll(ctx, s.keys.Channels).Result()
		if err != nil {
			return fmt.Errorf("reading channel owners: %w", err)
		}
		var channels []string
		for ch, owner := range owners {
			if owner == field {
				channels = append(channels, ch)
			}
		}

		var hdel *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			hdel = pipe.HDel(ctx, s.keys.Hash, field)
			if len(channels) > 0 {
				pipe.HDel(ctx, s.keys.Channels, channels...)
			}
			return nil
		})
		if err != nil {
			return err
		}
		removed = hdel.Val() > 0
		return nil
	}, s.keys.Hash, s.keys.Channels)
	if err != nil {
		return false, fmt.Errorf("deleting bulb %d: %w", id, err)
	}
	return removed, nil
}

// DeleteAll removes the record hash, the channel hash and the id counter.
func (s *RedisStore) DeleteAll(ctx context.Context) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.keys.Hash)
		pipe.Del(ctx, s.keys.Channels, s.keys.Counter)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting all bulbs: %w", err)
	}
	return del.Val() > 0, nil
}

// NextID increments the id counter.
func (s *RedisStore) NextID(ctx context.Context) (uint64, error) {
	id, err := s.client.Incr(ctx, s.keys.Counter).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing %s: %w", s.keys.Counter, err)
	}
	return uint64(id), nil
}

// HealthCheck pings the server.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// watch runs fn in an optimistic transaction over keys, retrying when a
// watched key changes before EXEC.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction on %v: %w", keys, redis.TxFailedErr)
}

func idField(id uint64) string {
	return strconv.FormatUint(id, 10)
}
