package services

import (
	"context"
	"time"

	"livepoll/internal/models"
	"livepoll/internal/store"
)

// SessionReader 查询会话及其题目结构
type SessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindByJoinCode(ctx context.Context, joinCode string) (*models.Session, error)
	ListQuestions(ctx context.Context, sessionID string) ([]models.Question, error)
	FindQuestion(ctx context.Context, id string) (*models.Question, error)
}

// SessionWriter 会话管理使用的写接口
type SessionWriter interface {
	SessionReader
	JoinCodeExists(ctx context.Context, joinCode string) (bool, error)
	Create(ctx context.Context, session *models.Session) error
	UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus) error
	Delete(ctx context.Context, id string) error
}

type VoteChecker interface {
	VotedQuestions(ctx context.Context, sessionID, fingerprint string) ([]string, error)
}

type VoteCommitter interface {
	CommitVote(ctx context.Context, pending models.PendingVote) (store.CommitResult, error)
}

type CountResetter interface {
	ResetCounts(ctx context.Context, sessionID string) error
}

type ResultReader interface {
	SessionCounts(ctx context.Context, sessionID string) ([]models.CountRow, error)
	QuestionCounts(ctx context.Context, questionID string) ([]models.CountRow, error)
	Participation(ctx context.Context, sessionID string) (models.ParticipationSummary, error)
}

type Enqueuer interface {
	Enqueue(sessionID string, entries ...models.PendingVote) error
}

// PendingQueue worker 使用的待处理队列接口
type PendingQueue interface {
	Sessions() ([]string, error)
	DequeueBatch(sessionID string, max int) ([]models.PendingVote, error)
}

type QueueAdmin interface {
	Length(sessionID string) (int, error)
	Clear(sessionID string) error
}

type ChangePublisher interface {
	Publish(evt models.ChangeEvent) error
}

// ChangeSubscriber 按会话 ID 投递原始变更事件
type ChangeSubscriber interface {
	Subscribe(handler func(sessionID string, payload []byte)) error
}

// ResultsCache 短期缓存计算好的结果，后端出错时实现方按未命中处理
type ResultsCache interface {
	Get(sessionID string) (*models.SessionResults, bool)
	Set(sessionID string, results *models.SessionResults, ttl time.Duration)
	Delete(sessionID string)
}

type CacheInvalidator interface {
	Invalidate(sessionID string)
}
