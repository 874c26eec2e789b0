// Package queue 按会话保存已受理未提交的投票（先进先出）
//
// 每个会话对应一个 Redis 列表 vote_queue:<sessionId>，集合 vote_queues
// 记录列表非空的会话，worker 无需扫描键空间即可发现它们。两者都由 Lua 脚本原子维护。
package queue

import (
	"encoding/json"

	"livepoll/internal/logger"
	"livepoll/internal/models"
	"livepoll/internal/rdb"

	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
)

// KEYS[1] 列表, KEYS[2] 索引集合, ARGV[1] 会话 ID, ARGV[2..] 条目
var enqueueScript = radix.NewEvalScript(2, `
redis.call('RPUSH', KEYS[1], unpack(ARGV, 2))
redis.call('SADD', KEYS[2], ARGV[1])
return redis.call('LLEN', KEYS[1])
`)

// KEYS[1] 列表, KEYS[2] 索引集合, ARGV[1] 会话 ID, ARGV[2] 最大条数
var dequeueScript = radix.NewEvalScript(2, `
local n = tonumber(ARGV[2])
local items = redis.call('LRANGE', KEYS[1], 0, n - 1)
if #items > 0 then
	redis.call('LTRIM', KEYS[1], #items, -1)
end
if redis.call('LLEN', KEYS[1]) == 0 then
	redis.call('SREM', KEYS[2], ARGV[1])
end
return items
`)

// KEYS[1] 列表, KEYS[2] 索引集合, ARGV[1] 会话 ID
var clearScript = radix.NewEvalScript(2, `
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return 0
`)

type Queue struct {
	client radix.Client
}

func New(client radix.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue 一次往返把条目追加到会话队列尾部
func (q *Queue) Enqueue(sessionID string, entries ...models.PendingVote) error {
	if len(entries) == 0 {
		return nil
	}

	args := make([]string, 0, len(entries)+3)
	args = append(args, rdb.QueueKey(sessionID), rdb.QueueIndexKey, sessionID)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return errors.WrapIf(err, "failed to encode pending vote")
		}
		args = append(args, string(data))
	}

	if err := q.client.Do(enqueueScript.Cmd(nil, args...)); err != nil {
		return errors.WrapIff(err, "failed to enqueue votes for session %s", sessionID)
	}
	return nil
}

// DequeueBatch 从队首原子地取出最多 max 条，无法解析的条目记录日志后丢弃
func (q *Queue) DequeueBatch(sessionID string, max int) ([]models.PendingVote, error) {
	if max <= 0 {
		return nil, nil
	}

	var raw []string
	cmd := dequeueScript.FlatCmd(&raw, []string{rdb.QueueKey(sessionID), rdb.QueueIndexKey}, sessionID, max)
	if err := q.client.Do(cmd); err != nil {
		return nil, errors.WrapIff(err, "failed to dequeue votes for session %s", sessionID)
	}

	out := make([]models.PendingVote, 0, len(raw))
	for _, item := range raw {
		var pv models.PendingVote
		if err := json.Unmarshal([]byte(item), &pv); err != nil {
			logger.For("queue").WithError(err).WithField("session", sessionID).Error("Dropping malformed queue entry")
			continue
		}
		out = append(out, pv)
	}
	return out, nil
}

// Sessions 列出当前有待处理条目的会话
func (q *Queue) Sessions() ([]string, error) {
	var ids []string
	if err := q.client.Do(radix.Cmd(&ids, "SMEMBERS", rdb.QueueIndexKey)); err != nil {
		return nil, errors.WrapIf(err, "failed to list queued sessions")
	}
	return ids, nil
}

func (q *Queue) Length(sessionID string) (int, error) {
	var n int
	if err := q.client.Do(radix.Cmd(&n, "LLEN", rdb.QueueKey(sessionID))); err != nil {
		return 0, errors.WrapIff(err, "failed to read queue length for session %s", sessionID)
	}
	return n, nil
}

// Clear 清空会话的待处理条目，并原子地移出索引
func (q *Queue) Clear(sessionID string) error {
	cmd := clearScript.Cmd(nil, rdb.QueueKey(sessionID), rdb.QueueIndexKey, sessionID)
	if err := q.client.Do(cmd); err != nil {
		return errors.WrapIff(err, "failed to clear queue for session %s", sessionID)
	}
	return nil
}
