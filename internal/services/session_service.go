package services

import (
	"context"
	"slices"
	"strings"

	"livepoll/internal/logger"
	"livepoll/internal/models"
	"livepoll/internal/store"
	"livepoll/internal/utils"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultJoinCodeLength = 8
	joinCodeAttempts      = 10
)

var transitions = map[models.SessionStatus][]models.SessionStatus{
	models.SessionDraft:   {models.SessionActive},
	models.SessionActive:  {models.SessionStopped, models.SessionClosed},
	models.SessionStopped: {models.SessionActive, models.SessionClosed},
	models.SessionClosed:  {},
}

// CanTransition 判断会话能否从 from 状态切换到 to 状态
func CanTransition(from, to models.SessionStatus) bool {
	return slices.Contains(transitions[from], to)
}

// SessionService 组织者侧的会话管理：创建、状态流转和运维操作
type SessionService struct {
	sessions       SessionWriter
	votes          CountResetter
	queue          QueueAdmin
	results        CacheInvalidator
	publisher      ChangePublisher
	joinCodeLength int
}

func NewSessionService(sessions SessionWriter, votes CountResetter, queue QueueAdmin, results CacheInvalidator, publisher ChangePublisher, joinCodeLength int) *SessionService {
	if joinCodeLength <= 0 {
		joinCodeLength = DefaultJoinCodeLength
	}
	return &SessionService{
		sessions:       sessions,
		votes:          votes,
		queue:          queue,
		results:        results,
		publisher:      publisher,
		joinCodeLength: joinCodeLength,
	}
}

func (s *SessionService) Create(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error) {
	title := utils.PlainText(req.Title)
	if title == "" {
		return nil, Validationf("title is required")
	}

	session := &models.Session{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      models.SessionDraft,
		Questions:   make([]models.Question, 0, len(req.Questions)),
	}
	for i, q := range req.Questions {
		text := utils.PlainText(q.Text)
		if text == "" {
			return nil, Validationf("question %d has no text", i+1)
		}
		if len(q.Options) < 2 {
			return nil, Validationf("question %d needs at least two options", i+1)
		}
		question := models.Question{Text: text, Order: i + 1}
		for j, o := range q.Options {
			optText := utils.PlainText(o.Text)
			if optText == "" {
				return nil, Validationf("question %d option %d has no text", i+1, j+1)
			}
			question.Options = append(question.Options, models.Option{Text: optText, Order: j + 1})
		}
		session.Questions = append(session.Questions, question)
	}

	code, err := s.newJoinCode(ctx)
	if err != nil {
		return nil, err
	}
	session.JoinCode = code

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	logger.For("sessions").WithFields(log.Fields{
		"session":  session.ID,
		"joinCode": session.JoinCode,
	}).Info("Session created")
	return session, nil
}

func (s *SessionService) newJoinCode(ctx context.Context) (string, error) {
	for i := 0; i < joinCodeAttempts; i++ {
		code, err := utils.GenerateJoinCode(s.joinCodeLength)
		if err != nil {
			return "", errors.WrapIf(err, "failed to generate join code")
		}
		exists, err := s.sessions.JoinCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique join code")
}

func (s *SessionService) find(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("session not found")
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SetStatus 按生命周期规则切换会话状态
func (s *SessionService) SetStatus(ctx context.Context, id string, status models.SessionStatus) (*models.Session, error) {
	if !status.Valid() {
		return nil, Validationf("unknown status: %s", status)
	}
	session, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == status {
		return session, nil
	}
	if !CanTransition(session.Status, status) {
		return nil, Validationf("cannot change status from %s to %s", session.Status, status)
	}

	if err := s.sessions.UpdateStatus(ctx, id, session.Status, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundf("session not found")
		}
		if errors.Is(err, store.ErrStatusChanged) {
			return nil, Conflictf("session status changed concurrently, reload and retry")
		}
		return nil, err
	}
	session.Status = status
	s.results.Invalidate(id)

	logger.For("sessions").WithFields(log.Fields{
		"session": id,
		"status":  status,
	}).Info("Session status changed")
	return session, nil
}

// ResetCounts 计票清零，投票记录保留，已投过的参与者仍不能再投
func (s *SessionService) ResetCounts(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.votes.ResetCounts(ctx, id); err != nil {
		return err
	}
	s.results.Invalidate(id)

	if err := s.publisher.Publish(models.ChangeEvent{Type: models.EventCountsReset, SessionID: id}); err != nil {
		logger.For("sessions").WithError(err).WithField("session", id).Warn("Failed to publish counts reset")
	}
	logger.For("sessions").WithField("session", id).Info("Vote counts reset")
	return nil
}

// Delete 删除会话及其问题、投票和队列中未处理的条目
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.queue.Clear(id); err != nil {
		logger.For("sessions").WithError(err).WithField("session", id).Warn("Failed to clear queue of deleted session")
	}
	s.results.Invalidate(id)
	logger.For("sessions").WithField("session", id).Info("Session deleted")
	return nil
}

// PublicSession 按加入码返回参与者看到的会话
func (s *SessionService) PublicSession(ctx context.Context, joinCode string) (*models.PublicSession, error) {
	session, err := s.sessions.FindByJoinCode(ctx, strings.ToUpper(joinCode))
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("session not found")
	}
	if err != nil {
		return nil, err
	}
	questions, err := s.sessions.ListQuestions(ctx, session.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load questions")
	}

	return &models.PublicSession{
		ID:              session.ID,
		Title:           session.Title,
		Description:     session.Description,
		DescriptionHTML: utils.RenderMarkdown(session.Description),
		JoinCode:        session.JoinCode,
		Status:          session.Status,
		Questions:       questions,
	}, nil
}

func (s *SessionService) QueueStatus(ctx context.Context, id string) (*models.QueueStatus, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	n, err := s.queue.Length(id)
	if err != nil {
		return nil, err
	}
	return &models.QueueStatus{SessionID: id, Pending: n}, nil
}

// ClearQueue 丢弃已受理但尚未提交的投票
func (s *SessionService) ClearQueue(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.queue.Clear(id); err != nil {
		return err
	}
	logger.For("sessions").WithField("session", id).Warn("Pending votes discarded")
	return nil
}
