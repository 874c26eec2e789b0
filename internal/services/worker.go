package services

import (
	"context"
	"sync"
	"time"

	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/models"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize       = 10
	DefaultProcessInterval = time.Second
)

// BatchResult 一批队列条目的处理结果
type BatchResult struct {
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

func (r *BatchResult) add(o BatchResult) {
	r.Processed += o.Processed
	r.Duplicates += o.Duplicates
	r.Errors += o.Errors
}

type WorkerOptions struct {
	Interval  time.Duration
	BatchSize int
	// Invalidator 非空时，批次提交投票后删除该会话的结果缓存
	Invalidator CacheInvalidator
}

// VoteWorker 定时清空待处理队列并逐条提交，是投票和计票唯一的写入方
type VoteWorker struct {
	queue     PendingQueue
	votes     VoteCommitter
	publisher ChangePublisher
	opts      WorkerOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewVoteWorker(queue PendingQueue, votes VoteCommitter, publisher ChangePublisher, opts WorkerOptions) *VoteWorker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultProcessInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &VoteWorker{queue: queue, votes: votes, publisher: publisher, opts: opts}
}

// Start 启动后台 worker，重复调用无效
func (w *VoteWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)

	logger.For("worker").WithFields(log.Fields{
		"interval":  w.opts.Interval,
		"batchSize": w.opts.BatchSize,
	}).Info("Vote worker started")
}

// Stop 停止定时器并等待当前批次完成
func (w *VoteWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
	logger.For("worker").Info("Vote worker stopped")
}

func (w *VoteWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 不继承 ctx：Stop 之后当前批次仍需完整提交
			w.Tick(context.Background())
		}
	}
}

// Tick 对每个有待处理条目的会话处理一批
func (w *VoteWorker) Tick(ctx context.Context) BatchResult {
	var total BatchResult

	sessions, err := w.queue.Sessions()
	if err != nil {
		logger.For("worker").WithError(err).Error("Failed to list queued sessions")
		return total
	}

	for _, sessionID := range sessions {
		entries, err := w.queue.DequeueBatch(sessionID, w.opts.BatchSize)
		if err != nil {
			logger.For("worker").WithError(err).WithField("session", sessionID).Error("Failed to dequeue votes")
			continue
		}
		if len(entries) == 0 {
			continue
		}
		total.add(w.ProcessBatch(ctx, sessionID, entries))
	}
	return total
}

// ProcessBatch 按顺序提交条目，唯一约束冲突记为重复，其他错误记录日志后继续
func (w *VoteWorker) ProcessBatch(ctx context.Context, sessionID string, entries []models.PendingVote) BatchResult {
	start := time.Now()
	var result BatchResult

	for _, entry := range entries {
		commit, err := w.votes.CommitVote(ctx, entry)
		if err != nil {
			result.Errors++
			metrics.WorkerVotes.WithLabelValues(metrics.OutcomeError).Inc()
			logger.For("worker").WithError(err).WithFields(log.Fields{
				"session":     entry.SessionID,
				"question":    entry.QuestionID,
				"participant": logger.ShortFingerprint(entry.ParticipantFingerprint),
			}).Error("Failed to commit vote")
			continue
		}
		if commit.Duplicate {
			result.Duplicates++
			metrics.WorkerVotes.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			continue
		}

		result.Processed++
		metrics.WorkerVotes.WithLabelValues(metrics.OutcomeProcessed).Inc()
		w.publish(entry, commit.Votes)
	}

	if result.Processed > 0 && w.opts.Invalidator != nil {
		w.opts.Invalidator.Invalidate(sessionID)
	}

	metrics.WorkerBatchSeconds.Observe(time.Since(start).Seconds())
	logger.For("worker").WithFields(log.Fields{
		"session":    sessionID,
		"processed":  result.Processed,
		"duplicates": result.Duplicates,
		"errors":     result.Errors,
	}).Info("Processed vote batch")

	return result
}

// publish 通知所有订阅者计数已变化，失败不影响已提交的投票
func (w *VoteWorker) publish(entry models.PendingVote, votes int64) {
	evt := models.ChangeEvent{
		Type:       models.EventVoteUpdate,
		SessionID:  entry.SessionID,
		QuestionID: entry.QuestionID,
		Data: models.OptionDelta{
			QuestionID: entry.QuestionID,
			OptionID:   entry.OptionID,
			Votes:      votes,
		},
	}
	if err := w.publisher.Publish(evt); err != nil {
		logger.For("worker").WithError(err).WithField("session", entry.SessionID).Warn("Failed to publish vote update")
	}
}
