package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/models"
	"livepoll/internal/store"

	"emperror.dev/errors"
)

const DefaultResultsTTL = 5 * time.Second

// ResultService 把计票汇总成可展示的结果，并按会话短暂缓存
type ResultService struct {
	sessions SessionReader
	results  ResultReader
	cache    ResultsCache
	ttl      time.Duration
	now      func() time.Time
}

func NewResultService(sessions SessionReader, results ResultReader, cache ResultsCache, ttl time.Duration) *ResultService {
	if ttl <= 0 {
		ttl = DefaultResultsTTL
	}
	return &ResultService{
		sessions: sessions,
		results:  results,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SessionResults 缓存未过期时直接返回，否则重新计算
// 调用方不得修改返回值
func (s *ResultService) SessionResults(ctx context.Context, sessionID string) (*models.SessionResults, error) {
	if cached, ok := s.cache.Get(sessionID); ok {
		metrics.ResultsCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.ResultsCache.WithLabelValues("miss").Inc()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("session not found")
	}
	if err != nil {
		return nil, err
	}
	return s.compute(ctx, session)
}

func (s *ResultService) ResultsByJoinCode(ctx context.Context, joinCode string) (*models.SessionResults, error) {
	session, err := s.sessions.FindByJoinCode(ctx, strings.ToUpper(joinCode))
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("session not found")
	}
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(session.ID); ok {
		metrics.ResultsCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.ResultsCache.WithLabelValues("miss").Inc()
	return s.compute(ctx, session)
}

func (s *ResultService) compute(ctx context.Context, session *models.Session) (*models.SessionResults, error) {
	questions, err := s.sessions.ListQuestions(ctx, session.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load questions")
	}
	counts, err := s.results.SessionCounts(ctx, session.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load vote counts")
	}
	summary, err := s.results.Participation(ctx, session.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load participation")
	}

	results := BuildSessionResults(session, questions, counts, summary, s.now())
	s.cache.Set(session.ID, results, s.ttl)
	logger.For("results").WithField("session", session.ID).Debug("Results recomputed")
	return results, nil
}

// QuestionResults 计算单道题的结果，不走缓存
func (s *ResultService) QuestionResults(ctx context.Context, questionID string) (*models.QuestionResult, error) {
	question, err := s.sessions.FindQuestion(ctx, questionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("question not found")
	}
	if err != nil {
		return nil, err
	}

	counts, err := s.results.QuestionCounts(ctx, questionID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load vote counts")
	}
	result := buildQuestionResult(*question, indexCounts(counts))
	return &result, nil
}

// Analytics 计算每道题的参与率和最受欢迎的选项
func (s *ResultService) Analytics(ctx context.Context, joinCode string) (*models.SessionAnalytics, error) {
	results, err := s.ResultsByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}
	return BuildAnalytics(results), nil
}

func (s *ResultService) Invalidate(sessionID string) {
	s.cache.Delete(sessionID)
	logger.For("results").WithField("session", sessionID).Debug("Results cache invalidated")
}

// BuildSessionResults 把题目结构与计票行合并，没有计票行的选项记 0 票
func BuildSessionResults(session *models.Session, questions []models.Question, counts []models.CountRow, summary models.ParticipationSummary, now time.Time) *models.SessionResults {
	byOption := indexCounts(counts)

	ordered := make([]models.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	results := &models.SessionResults{
		SessionID:          session.ID,
		Title:              session.Title,
		Status:             session.Status,
		TotalVotes:         summary.TotalVotes,
		UniqueParticipants: summary.UniqueParticipants,
		Questions:          make([]models.QuestionResult, 0, len(ordered)),
		LastUpdated:        now.UTC(),
	}
	for _, q := range ordered {
		results.Questions = append(results.Questions, buildQuestionResult(q, byOption))
	}
	return results
}

func indexCounts(counts []models.CountRow) map[string]int64 {
	byOption := make(map[string]int64, len(counts))
	for _, c := range counts {
		byOption[c.QuestionID+"/"+c.OptionID] += c.Count
	}
	return byOption
}

func buildQuestionResult(q models.Question, byOption map[string]int64) models.QuestionResult {
	options := make([]models.Option, len(q.Options))
	copy(options, q.Options)
	sort.SliceStable(options, func(i, j int) bool { return options[i].Order < options[j].Order })

	qr := models.QuestionResult{
		QuestionID: q.ID,
		Text:       q.Text,
		Order:      q.Order,
		Options:    make([]models.OptionResult, 0, len(options)),
	}
	for _, o := range options {
		votes := byOption[q.ID+"/"+o.ID]
		qr.TotalVotes += votes
		qr.Options = append(qr.Options, models.OptionResult{
			OptionID: o.ID,
			Text:     o.Text,
			Order:    o.Order,
			Votes:    votes,
		})
	}
	for i := range qr.Options {
		qr.Options[i].Percentage = percentage(qr.Options[i].Votes, qr.TotalVotes)
	}
	return qr
}

// percentage part/total 保留两位小数，total 为 0 时返回 0
func percentage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func BuildAnalytics(results *models.SessionResults) *models.SessionAnalytics {
	analytics := &models.SessionAnalytics{
		SessionID: results.SessionID,
		Title:     results.Title,
		Status:    results.Status,
		Summary: models.AnalyticsSummary{
			TotalVotes:         results.TotalVotes,
			UniqueParticipants: results.UniqueParticipants,
			TotalQuestions:     len(results.Questions),
		},
		Questions: make([]models.QuestionAnalytics, 0, len(results.Questions)),
	}

	var rateSum float64
	for _, q := range results.Questions {
		qa := models.QuestionAnalytics{
			QuestionID: q.QuestionID,
			Text:       q.Text,
			TotalVotes: q.TotalVotes,
		}
		if results.UniqueParticipants > 0 {
			qa.ResponseRate = round2(float64(q.TotalVotes) / float64(results.UniqueParticipants) * 100)
		}
		// 票数相同时取展示顺序靠前的
		for i, o := range q.Options {
			if i == 0 || o.Votes > qa.MostPopularVotes {
				qa.MostPopularOption = o.Text
				qa.MostPopularVotes = o.Votes
				qa.MostPopularPercentage = o.Percentage
			}
		}
		rateSum += qa.ResponseRate
		analytics.Questions = append(analytics.Questions, qa)
	}
	if len(analytics.Questions) > 0 {
		analytics.Summary.AverageResponseRate = round2(rateSum / float64(len(analytics.Questions)))
	}
	return analytics
}
