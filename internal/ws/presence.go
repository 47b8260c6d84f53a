package ws

import (
	"context"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"codeblocks/internal/app"
)

// Presence mirrors live room occupancy into redis so the lobby and operations
// can see it without reaching into the process. Writes are best-effort: a
// redis failure is logged and never affects room state.
type Presence struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewPresence connects to redis and verifies connectivity
func NewPresence(ctx context.Context, cfg app.Config, log *slog.Logger) (*Presence, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
		// Presence is best-effort: fail fast instead of retrying, and let
		// the per-call context deadline cover dials too.
		MaxRetries:            -1,
		DialTimeout:           2 * time.Second,
		ReadTimeout:           time.Second,
		WriteTimeout:          time.Second,
		ContextTimeoutEnabled: true,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Presence{rdb: rdb, log: log}, nil
}

// Update records the student count for a room. Safe on a nil receiver.
func (p *Presence) Update(roomID string, students int) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := p.rdb.HSet(ctx, presenceKey(roomID),
		"students", students,
		"updated", time.Now().Unix(),
	).Err()
	if err != nil {
		p.log.Warn("presence.update", "room", roomID, "err", err)
	}
}

// Clear drops the occupancy record when a room is destroyed. Safe on a nil
// receiver.
func (p *Presence) Clear(roomID string) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.rdb.Del(ctx, presenceKey(roomID)).Err(); err != nil {
		p.log.Warn("presence.clear", "room", roomID, "err", err)
	}
}

// Students reads the mirrored count back, -1 if the room has no record
func (p *Presence) Students(ctx context.Context, roomID string) (int, error) {
	n, err := p.rdb.HGet(ctx, presenceKey(roomID), "students").Int()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close shuts down the redis connection
func (p *Presence) Close() {
	if p != nil {
		_ = p.rdb.Close()
	}
}

// key namespacing for room occupancy
func presenceKey(roomID string) string { return "room:" + roomID }
