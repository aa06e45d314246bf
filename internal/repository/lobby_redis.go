package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftline/matchmaker/internal/matchmaking"
	"github.com/driftline/matchmaker/internal/model"
)

// lobbySweepLua is prepended to every lobby script. Registry entries live in
// a sorted set scored by last-seen milliseconds; the waiting slot is a hash
// with fields id and since.
const lobbySweepLua = `
local presence = KEYS[1]
local waiting = KEYS[2]
local now = tonumber(ARGV[1])
local presenceTimeout = tonumber(ARGV[2])
local waitingTimeout = tonumber(ARGV[3])
local id = ARGV[4]

local expired = redis.call('ZREMRANGEBYSCORE', presence, '-inf', '(' .. (now - presenceTimeout))

local holder = redis.call('HGET', waiting, 'id')
local expiredWaiter = ''
if holder then
    local since = tonumber(redis.call('HGET', waiting, 'since'))
    if since == nil or now - since > waitingTimeout or not redis.call('ZSCORE', presence, holder) then
        redis.call('DEL', waiting)
        expiredWaiter = holder
        holder = false
    end
end

local function touch()
    redis.call('ZADD', presence, now, id)
    redis.call('PEXPIRE', presence, presenceTimeout * 2)
end
`

var lobbyStatsScript = redis.NewScript(lobbySweepLua + `
return {redis.call('ZCARD', presence), expired, expiredWaiter}
`)

var lobbyHeartbeatScript = redis.NewScript(lobbySweepLua + `
touch()
if holder == id then
    redis.call('HSET', waiting, 'since', now)
    redis.call('PEXPIRE', waiting, waitingTimeout * 2)
end
return {redis.call('ZCARD', presence), expired, expiredWaiter}
`)

var lobbyJoinScript = redis.NewScript(lobbySweepLua + `
touch()
if holder and holder ~= id then
    redis.call('DEL', waiting)
    return {'matched', holder, expired, expiredWaiter}
end
redis.call('HSET', waiting, 'id', id, 'since', now)
redis.call('PEXPIRE', waiting, waitingTimeout * 2)
return {'waiting', '', expired, expiredWaiter}
`)

var lobbyLeaveScript = redis.NewScript(lobbySweepLua + `
redis.call('ZREM', presence, id)
if holder == id then
    redis.call('DEL', waiting)
end
return {1, expired, expiredWaiter}
`)

// redisLobby shares one registry and one slot between every process pointed
// at the same Redis and key prefix. Each action is a single script, so Redis
// serializes the whole read-check-write.
type redisLobby struct {
	client   *redis.Client
	keys     []string
	timeouts matchmaking.Timeouts
	opts     lobbyOptions
}

func NewRedisLobbyRepository(client *redis.Client, keyPrefix string, timeouts matchmaking.Timeouts, opts ...LobbyOption) LobbyRepository {
	return &redisLobby{
		client: client,
		// hash tag keeps both keys in one cluster slot
		keys: []string{
			fmt.Sprintf("{%slobby}:presence", keyPrefix),
			fmt.Sprintf("{%slobby}:waiting", keyPrefix),
		},
		timeouts: timeouts,
		opts:     newLobbyOptions(opts),
	}
}

// run executes script and checks the reply length. Every script ends its
// reply with the sweep's expired count and expired waiter.
func (l *redisLobby) run(ctx context.Context, script *redis.Script, id string, now time.Time, want int) ([]interface{}, model.SweepResult, error) {
	result, err := script.Run(ctx, l.client, l.keys,
		now.UnixMilli(),
		l.timeouts.Presence.Milliseconds(),
		l.timeouts.Waiting.Milliseconds(),
		id,
	).Slice()
	if err != nil {
		return nil, model.SweepResult{}, err
	}
	if len(result) != want {
		return nil, model.SweepResult{}, fmt.Errorf("unexpected lobby script result length %d", len(result))
	}

	expired, _ := result[want-2].(int64)
	waiter, _ := result[want-1].(string)
	swept := model.SweepResult{ExpiredParticipants: expired, ExpiredWaiter: waiter}
	l.opts.report(swept)
	return result, swept, nil
}

func (l *redisLobby) count(ctx context.Context, script *redis.Script, id string, now time.Time) (int, error) {
	result, _, err := l.run(ctx, script, id, now, 3)
	if err != nil {
		return 0, err
	}
	n, ok := result[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected lobby count type %T", result[0])
	}
	return int(n), nil
}

func (l *redisLobby) Stats(ctx context.Context, now time.Time) (int, error) {
	return l.count(ctx, lobbyStatsScript, "", now)
}

func (l *redisLobby) Heartbeat(ctx context.Context, id string, now time.Time) (int, error) {
	return l.count(ctx, lobbyHeartbeatScript, id, now)
}

func (l *redisLobby) Join(ctx context.Context, id string, now time.Time) (model.MatchOutcome, error) {
	result, _, err := l.run(ctx, lobbyJoinScript, id, now, 4)
	if err != nil {
		return model.MatchOutcome{}, err
	}

	status, _ := result[0].(string)
	partner, _ := result[1].(string)

	switch model.MatchStatus(status) {
	case model.MatchStatusMatched:
		return model.MatchOutcome{
			Status:    model.MatchStatusMatched,
			PartnerID: partner,
			Role:      model.RoleInitiator,
		}, nil
	case model.MatchStatusWaiting:
		return model.MatchOutcome{
			Status: model.MatchStatusWaiting,
			Role:   model.RoleReceiver,
		}, nil
	default:
		return model.MatchOutcome{}, fmt.Errorf("unexpected join status %q", status)
	}
}

func (l *redisLobby) Leave(ctx context.Context, id string, now time.Time) error {
	_, _, err := l.run(ctx, lobbyLeaveScript, id, now, 3)
	return err
}

func (l *redisLobby) Sweep(ctx context.Context, now time.Time) (model.SweepResult, error) {
	_, swept, err := l.run(ctx, lobbyStatsScript, "", now, 3)
	return swept, err
}

func (l *redisLobby) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *redisLobby) Backend() string {
	return "redis"
}
