package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RenderQueue is the list map render jobs are pushed to.
const RenderQueue = "render:queue"

// TimerPrefix and TimerSuffix frame the game id in timer keys.
const (
	TimerPrefix = "game:"
	TimerSuffix = ":timer"
)

func stateKey(gameID string) string { return "game:" + gameID + ":state" }
func doneKey(gameID string) string  { return "game:" + gameID + ":done" }
func timerKey(gameID string) string { return TimerPrefix + gameID + TimerSuffix }
func lockKey(gameID string) string  { return "game:" + gameID + ":lock" }

// GameIDFromTimerKey extracts the game id from an expired timer key.
func GameIDFromTimerKey(key string) (string, bool) {
	if !strings.HasPrefix(key, TimerPrefix) || !strings.HasSuffix(key, TimerSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, TimerPrefix), TimerSuffix)
	return id, id != ""
}

// SetGameState stores the live game state JSON.
func (c *Client) SetGameState(ctx context.Context, gameID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(gameID), []byte(state), 0).Err()
}

// GetGameState retrieves the live game state JSON, or nil when the game has
// none cached.
func (c *Client) GetGameState(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	return json.RawMessage(data), nil
}

// MarkDone adds a country to the done set of the current phase.
func (c *Client) MarkDone(ctx context.Context, gameID, country string) error {
	return c.rdb.SAdd(ctx, doneKey(gameID), country).Err()
}

// UnmarkDone removes a country from the done set.
func (c *Client) UnmarkDone(ctx context.Context, gameID, country string) error {
	return c.rdb.SRem(ctx, doneKey(gameID), country).Err()
}

// DoneCountries returns the countries done with the current phase.
func (c *Client) DoneCountries(ctx context.Context, gameID string) ([]string, error) {
	return c.rdb.SMembers(ctx, doneKey(gameID)).Result()
}

// phaseGracePeriod is the extra time after the displayed deadline before
// phase resolution triggers, giving players a few seconds of leeway.
const phaseGracePeriod = 5 * time.Second

// SetTimer creates a timer key with a TTL. When the key expires,
// Redis keyspace notifications trigger the phase check.
// The TTL includes a grace period so the key expires slightly after the displayed deadline.
func (c *Client) SetTimer(ctx context.Context, gameID string, deadline time.Time) error {
	ttl := time.Until(deadline) + phaseGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(gameID), deadline.Unix(), ttl).Err()
}

// ClearTimer removes the timer for a game.
func (c *Client) ClearTimer(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, timerKey(gameID)).Err()
}

// releaseLock deletes the lock only while it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock takes the processing lock of a game. It reports false when
// another holder has it.
func (c *Client) AcquireLock(ctx context.Context, gameID, token string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey(gameID), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock frees the processing lock if token still holds it.
func (c *Client) ReleaseLock(ctx context.Context, gameID, token string) error {
	if err := releaseLock.Run(ctx, c.rdb, []string{lockKey(gameID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// ClearPhaseData removes the done set and timer for a game.
// Called after a phase is resolved to prepare for the next one.
func (c *Client) ClearPhaseData(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, doneKey(gameID), timerKey(gameID)).Err()
}

// DeleteGameData removes all Redis data for a game (on game end).
func (c *Client) DeleteGameData(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, stateKey(gameID), doneKey(gameID), timerKey(gameID)).Err()
}

// EnqueueRender pushes a map render job for the renderer workers.
func (c *Client) EnqueueRender(ctx context.Context, job json.RawMessage) error {
	return c.rdb.LPush(ctx, RenderQueue, []byte(job)).Err()
}
