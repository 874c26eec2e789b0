package services

import (
	"context"
	"slices"
	"strings"

	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/models"
	"livepoll/internal/store"
	"livepoll/internal/utils"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

// Participant 网关掌握的请求方信息
type Participant struct {
	IP        string
	UserAgent string
}

// VoteService 投票入口：校验提交内容，丢弃已记录的投票，其余入队
type VoteService struct {
	sessions SessionReader
	votes    VoteChecker
	queue    Enqueuer
}

func NewVoteService(sessions SessionReader, votes VoteChecker, queue Enqueuer) *VoteService {
	return &VoteService{sessions: sessions, votes: votes, queue: queue}
}

func (s *VoteService) sessionByJoinCode(ctx context.Context, joinCode string) (*models.Session, error) {
	session, err := s.sessions.FindByJoinCode(ctx, strings.ToUpper(joinCode))
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("session not found")
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SubmitVotes 投票入队后立即返回，由 worker 稍后提交，届时仍可能判为重复而丢弃
func (s *VoteService) SubmitVotes(ctx context.Context, joinCode string, inputs []models.VoteInput, p Participant) (*models.SubmitVotesResponse, error) {
	session, err := s.sessionByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}
	if !session.Status.AcceptsVotes() {
		return nil, Conflictf("session not accepting votes")
	}
	if len(inputs) == 0 {
		return nil, Validationf("at least one vote is required")
	}
	if len(inputs) > models.MaxVotesPerRequest {
		return nil, Validationf("at most %d votes per request", models.MaxVotesPerRequest)
	}

	fingerprint := utils.Fingerprint(p.IP, p.UserAgent, session.ID)

	questions, err := s.sessions.ListQuestions(ctx, session.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load questions")
	}
	optionsByQuestion := make(map[string]map[string]bool, len(questions))
	for _, q := range questions {
		opts := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			opts[o.ID] = true
		}
		optionsByQuestion[q.ID] = opts
	}

	for _, in := range inputs {
		opts, ok := optionsByQuestion[in.QuestionID]
		if !ok {
			return nil, Validationf("invalid question ID: %s", in.QuestionID)
		}
		if !opts[in.OptionID] {
			return nil, Validationf("invalid option ID: %s", in.OptionID)
		}
	}

	voted, err := s.votes.VotedQuestions(ctx, session.ID, fingerprint)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to check existing votes")
	}
	seen := make(map[string]bool, len(voted)+len(inputs))
	for _, qid := range voted {
		seen[qid] = true
	}

	entries := make([]models.PendingVote, 0, len(inputs))
	for _, in := range inputs {
		if seen[in.QuestionID] {
			reason := metrics.ReasonDuplicate
			if slices.Contains(voted, in.QuestionID) {
				reason = metrics.ReasonAlreadyVoted
			}
			metrics.VotesRejected.WithLabelValues(reason).Inc()
			continue
		}
		seen[in.QuestionID] = true
		entries = append(entries, models.PendingVote{
			SessionID:              session.ID,
			QuestionID:             in.QuestionID,
			OptionID:               in.OptionID,
			ParticipantFingerprint: fingerprint,
		})
	}

	if len(entries) == 0 {
		return nil, Conflictf("all votes already submitted or invalid")
	}

	if err := s.queue.Enqueue(session.ID, entries...); err != nil {
		return nil, errors.WrapIf(err, "failed to queue votes")
	}
	metrics.VotesQueued.Add(float64(len(entries)))

	logger.For("gateway").WithFields(log.Fields{
		"session":     session.ID,
		"participant": logger.ShortFingerprint(fingerprint),
		"queued":      len(entries),
	}).Debug("Votes queued")

	return &models.SubmitVotesResponse{Queued: len(entries), SessionID: session.ID}, nil
}

// VotingStatus 逐题返回调用方是否已有提交成功的投票
func (s *VoteService) VotingStatus(ctx context.Context, joinCode string, p Participant) (*models.VotingStatus, error) {
	session, err := s.sessionByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}

	questions, err := s.sessions.ListQuestions(ctx, session.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load questions")
	}

	fingerprint := utils.Fingerprint(p.IP, p.UserAgent, session.ID)
	voted, err := s.votes.VotedQuestions(ctx, session.ID, fingerprint)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to check existing votes")
	}

	status := &models.VotingStatus{
		SessionID: session.ID,
		Questions: make([]models.QuestionVotingStatus, 0, len(questions)),
	}
	for _, q := range questions {
		status.Questions = append(status.Questions, models.QuestionVotingStatus{
			QuestionID: q.ID,
			HasVoted:   slices.Contains(voted, q.ID),
		})
	}
	return status, nil
}
