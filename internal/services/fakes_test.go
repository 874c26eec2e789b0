package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"livepoll/internal/models"
	"livepoll/internal/store"

	"emperror.dev/errors"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	// beforeUpdate 在条件更新前执行，模拟并发修改
	beforeUpdate func(s *models.Session)
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*models.Session{}}
}

func (f *fakeSessions) add(s *models.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakeSessions) FindByID(_ context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) FindByJoinCode(_ context.Context, code string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.JoinCode == code {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeSessions) ListQuestions(_ context.Context, sessionID string) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return s.Questions, nil
}

func (f *fakeSessions) FindQuestion(_ context.Context, id string) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		for _, q := range s.Questions {
			if q.ID == id {
				cp := q
				return &cp, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeSessions) JoinCodeExists(_ context.Context, code string) (bool, error) {
	_, err := f.FindByJoinCode(context.Background(), code)
	return err == nil, nil
}

func (f *fakeSessions) Create(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = "session-" + s.JoinCode
	}
	for i := range s.Questions {
		q := &s.Questions[i]
		q.SessionID = s.ID
		if q.ID == "" {
			q.ID = s.ID + "-q" + string(rune('0'+q.Order))
		}
		for j := range q.Options {
			o := &q.Options[j]
			o.QuestionID = q.ID
			if o.ID == "" {
				o.ID = q.ID + "-o" + string(rune('0'+o.Order))
			}
		}
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessions) UpdateStatus(_ context.Context, id string, from, to models.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if f.beforeUpdate != nil {
		f.beforeUpdate(s)
	}
	if s.Status != from {
		return store.ErrStatusChanged
	}
	s.Status = to
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

type voteKey struct{ session, question, fingerprint string }

// fakeVotes 模拟投票表的唯一索引和计票 upsert
type fakeVotes struct {
	mu      sync.Mutex
	votes   map[voteKey]string
	counts  map[string]int64
	failFor string
}

func newFakeVotes() *fakeVotes {
	return &fakeVotes{votes: map[voteKey]string{}, counts: map[string]int64{}}
}

func countKey(session, question, option string) string {
	return session + "|" + question + "|" + option
}

func (f *fakeVotes) CommitVote(_ context.Context, p models.PendingVote) (store.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && p.ParticipantFingerprint == f.failFor {
		return store.CommitResult{}, errors.New("database unavailable")
	}
	k := voteKey{p.SessionID, p.QuestionID, p.ParticipantFingerprint}
	if _, ok := f.votes[k]; ok {
		return store.CommitResult{Duplicate: true}, nil
	}
	f.votes[k] = p.OptionID
	ck := countKey(p.SessionID, p.QuestionID, p.OptionID)
	f.counts[ck]++
	return store.CommitResult{Votes: f.counts[ck]}, nil
}

func (f *fakeVotes) VotedQuestions(_ context.Context, sessionID, fingerprint string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.votes {
		if k.session == sessionID && k.fingerprint == fingerprint {
			out = append(out, k.question)
		}
	}
	return out, nil
}

func (f *fakeVotes) ResetCounts(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.counts {
		if strings.HasPrefix(k, sessionID+"|") {
			f.counts[k] = 0
		}
	}
	return nil
}

func (f *fakeVotes) count(session, question, option string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[countKey(session, question, option)]
}

func (f *fakeVotes) rows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.votes)
}

// fakeResults 从 fakeVotes 读取汇总
type fakeResults struct {
	votes *fakeVotes
	calls int
}

func (f *fakeResults) SessionCounts(_ context.Context, sessionID string) ([]models.CountRow, error) {
	f.calls++
	f.votes.mu.Lock()
	defer f.votes.mu.Unlock()
	var rows []models.CountRow
	for k, n := range f.votes.counts {
		parts := strings.SplitN(k, "|", 3)
		if parts[0] == sessionID {
			rows = append(rows, models.CountRow{QuestionID: parts[1], OptionID: parts[2], Count: n})
		}
	}
	return rows, nil
}

func (f *fakeResults) QuestionCounts(_ context.Context, questionID string) ([]models.CountRow, error) {
	f.votes.mu.Lock()
	defer f.votes.mu.Unlock()
	var rows []models.CountRow
	for k, n := range f.votes.counts {
		parts := strings.SplitN(k, "|", 3)
		if parts[1] == questionID {
			rows = append(rows, models.CountRow{QuestionID: parts[1], OptionID: parts[2], Count: n})
		}
	}
	return rows, nil
}

func (f *fakeResults) Participation(_ context.Context, sessionID string) (models.ParticipationSummary, error) {
	f.votes.mu.Lock()
	defer f.votes.mu.Unlock()
	var summary models.ParticipationSummary
	seen := map[string]bool{}
	for k := range f.votes.votes {
		if k.session != sessionID {
			continue
		}
		summary.TotalVotes++
		if !seen[k.fingerprint] {
			seen[k.fingerprint] = true
			summary.UniqueParticipants++
		}
	}
	return summary, nil
}

type fakeQueue struct {
	mu      sync.Mutex
	entries map[string][]models.PendingVote
	failing bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{entries: map[string][]models.PendingVote{}}
}

func (f *fakeQueue) Enqueue(sessionID string, entries ...models.PendingVote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("redis down")
	}
	f.entries[sessionID] = append(f.entries[sessionID], entries...)
	return nil
}

func (f *fakeQueue) Sessions() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, e := range f.entries {
		if len(e) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeQueue) DequeueBatch(sessionID string, max int) ([]models.PendingVote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[sessionID]
	if len(e) > max {
		out := append([]models.PendingVote(nil), e[:max]...)
		f.entries[sessionID] = e[max:]
		return out, nil
	}
	delete(f.entries, sessionID)
	return e, nil
}

func (f *fakeQueue) Length(sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries[sessionID]), nil
}

func (f *fakeQueue) Clear(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, sessionID)
	return nil
}

func (f *fakeQueue) pending(sessionID string) []models.PendingVote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PendingVote(nil), f.entries[sessionID]...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (f *fakePublisher) Publish(evt models.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

func (f *fakePublisher) published() []models.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ChangeEvent(nil), f.events...)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*models.SessionResults
	ttls    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*models.SessionResults{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(sessionID string) (*models.SessionResults, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.entries[sessionID]
	return r, ok
}

func (f *fakeCache) Set(sessionID string, r *models.SessionResults, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[sessionID] = r
	f.ttls[sessionID] = ttl
}

func (f *fakeCache) Delete(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, sessionID)
}

type fakeInvalidator struct {
	mu       sync.Mutex
	sessions []string
}

func (f *fakeInvalidator) Invalidate(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionID)
}

type fakeSubscriber struct {
	mu      sync.Mutex
	fail    error
	calls   int
	handler func(string, []byte)
}

func (f *fakeSubscriber) Subscribe(h func(sessionID string, payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.handler = h
	return nil
}

// recordingConn 记录收到的帧，fail 为 true 时 Send 一律失败
type recordingConn struct {
	mu     sync.Mutex
	frames []string
	fail   bool
	closed bool
}

func (c *recordingConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return ErrSlowConsumer
	}
	c.frames = append(c.frames, string(frame))
	return nil
}

func (c *recordingConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// pollSession 构造一个两道题、每题两个选项的会话
func pollSession(status models.SessionStatus) *models.Session {
	return &models.Session{
		ID:       "s1",
		Title:    "Team lunch",
		JoinCode: "ABCD2345",
		Status:   status,
		Questions: []models.Question{
			{ID: "q1", SessionID: "s1", Text: "Where?", Order: 1, Options: []models.Option{
				{ID: "q1-a", QuestionID: "q1", Text: "Pizza", Order: 1},
				{ID: "q1-b", QuestionID: "q1", Text: "Sushi", Order: 2},
			}},
			{ID: "q2", SessionID: "s1", Text: "When?", Order: 2, Options: []models.Option{
				{ID: "q2-a", QuestionID: "q2", Text: "Noon", Order: 1},
				{ID: "q2-b", QuestionID: "q2", Text: "One", Order: 2},
			}},
		},
	}
}
