package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"livepoll/internal/models"
	"livepoll/internal/services"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVotes struct {
	gotInputs []models.VoteInput
	gotP      services.Participant
	err       error
}

func (s *stubVotes) SubmitVotes(_ context.Context, joinCode string, inputs []models.VoteInput, p services.Participant) (*models.SubmitVotesResponse, error) {
	s.gotInputs, s.gotP = inputs, p
	if s.err != nil {
		return nil, s.err
	}
	return &models.SubmitVotesResponse{Queued: len(inputs), SessionID: "s1"}, nil
}

func (s *stubVotes) VotingStatus(_ context.Context, joinCode string, p services.Participant) (*models.VotingStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.VotingStatus{SessionID: "s1", Questions: []models.QuestionVotingStatus{{QuestionID: "q1", HasVoted: true}}}, nil
}

type stubResults struct {
	results *models.SessionResults
	err     error
}

func (s *stubResults) ResultsByJoinCode(_ context.Context, joinCode string) (*models.SessionResults, error) {
	return s.results, s.err
}

func (s *stubResults) QuestionResults(_ context.Context, questionID string) (*models.QuestionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.QuestionResult{QuestionID: questionID}, nil
}

func (s *stubResults) Analytics(_ context.Context, joinCode string) (*models.SessionAnalytics, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.SessionAnalytics{SessionID: s.results.SessionID}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

const (
	questionID = "6f1c9a2e-8a57-4c55-9b1f-0d8a5b3c2e11"
	optionID   = "a3d2f1e0-1b2c-4d5e-8f90-123456789abc"
)

func voteRouter(votes VoteSubmitter) *gin.Engine {
	r := gin.New()
	h := NewVoteHandler(votes)
	r.POST("/sessions/:joinCode/votes", h.Submit)
	r.GET("/sessions/:joinCode/voting-status", h.Status)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "192.0.2.7:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitVotesAccepted(t *testing.T) {
	votes := &stubVotes{}
	r := voteRouter(votes)

	w := postJSON(r, "/sessions/ABCD2345/votes", `{"votes":[{"questionId":"`+questionID+`","optionId":"`+optionID+`"}]}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	env := decode(t, w)
	assert.Equal(t, "success", env.Status)
	assert.JSONEq(t, `{"queued":1,"sessionId":"s1"}`, string(env.Data))
	assert.Equal(t, services.Participant{IP: "192.0.2.7", UserAgent: "test-agent"}, votes.gotP)
	assert.Equal(t, optionID, votes.gotInputs[0].OptionID)
}

func TestSubmitVotesBadPayload(t *testing.T) {
	r := voteRouter(&stubVotes{})

	for _, body := range []string{
		`not json`,
		`{"votes":[{"questionId":"","optionId":"` + optionID + `"}]}`,
		`{"votes":[{"questionId":"` + questionID + `"}]}`,
	} {
		w := postJSON(r, "/sessions/ABCD2345/votes", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "error", decode(t, w).Status)
	}
}

func TestSubmitVotesLeavesIDChecksToService(t *testing.T) {
	votes := &stubVotes{err: services.Validationf("invalid question ID: not-a-uuid")}
	r := voteRouter(votes)

	w := postJSON(r, "/sessions/ABCD2345/votes", `{"votes":[{"questionId":"not-a-uuid","optionId":"`+optionID+`"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid question ID: not-a-uuid", decode(t, w).Message)
	require.Len(t, votes.gotInputs, 1)
	assert.Equal(t, "not-a-uuid", votes.gotInputs[0].QuestionID)
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{services.Validationf("invalid option ID: x"), http.StatusBadRequest, "invalid option ID: x"},
		{services.Conflictf("session not accepting votes"), http.StatusConflict, "session not accepting votes"},
		{services.NotFoundf("session not found"), http.StatusNotFound, "session not found"},
		{errors.New("connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		r := voteRouter(&stubVotes{err: tc.err})
		w := postJSON(r, "/sessions/ABCD2345/votes", `{"votes":[]}`)
		assert.Equal(t, tc.code, w.Code)
		assert.Equal(t, tc.msg, decode(t, w).Message)
	}
}

func TestVotingStatusHandler(t *testing.T) {
	r := voteRouter(&stubVotes{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/ABCD2345/voting-status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessionId":"s1","questions":[{"questionId":"q1","hasVoted":true}]}`, string(decode(t, w).Data))
}

func TestResultsHandlers(t *testing.T) {
	live := services.NewBroadcaster(nopSubscriber{}, time.Minute)
	h := NewResultsHandler(&stubResults{results: &models.SessionResults{SessionID: "s1", Title: "Poll"}}, live)
	r := gin.New()
	r.GET("/results/:joinCode", h.Session)
	r.GET("/results/:joinCode/analytics", h.Analytics)
	r.GET("/questions/:questionId", h.Question)
	r.GET("/stats", h.Stats)

	get := func(path string) envelope {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		return decode(t, w)
	}

	var results models.SessionResults
	require.NoError(t, json.Unmarshal(get("/results/ABCD2345").Data, &results))
	assert.Equal(t, "Poll", results.Title)

	assert.Contains(t, string(get("/results/ABCD2345/analytics").Data), `"sessionId":"s1"`)
	assert.Contains(t, string(get("/questions/q9").Data), `"questionId":"q9"`)
	assert.JSONEq(t, `{"totalSessions":0,"totalConnections":0,"sessions":[]}`, string(get("/stats").Data))
}

type nopSubscriber struct{}

func (nopSubscriber) Subscribe(func(string, []byte)) error { return nil }

type captureSubscriber struct {
	handler chan func(string, []byte)
}

func (s captureSubscriber) Subscribe(h func(string, []byte)) error {
	s.handler <- h
	return nil
}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(func(string, []byte)) error { return errors.New("redis down") }

func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			return strings.Join(lines, "")
		}
		lines = append(lines, line)
	}
}

func TestStreamDeliversFrames(t *testing.T) {
	sub := captureSubscriber{handler: make(chan func(string, []byte), 1)}
	live := services.NewBroadcaster(sub, time.Minute)
	h := NewStreamHandler(&stubResults{results: &models.SessionResults{SessionID: "s1"}}, live, 8)

	r := gin.New()
	r.GET("/stream/:joinCode", h.Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stream/ABCD2345")
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	assert.Contains(t, readFrame(t, reader), `"type":"connected"`)
	assert.Contains(t, readFrame(t, reader), `"type":"initial_results"`)

	handler := <-sub.handler
	handler("s2", []byte(`{"type":"vote_update","sessionId":"s2"}`))
	handler("s1", []byte(`{"type":"vote_update","sessionId":"s1"}`))
	assert.Equal(t, "data: {\"type\":\"vote_update\",\"sessionId\":\"s1\"}\n", readFrame(t, reader))

	live.SendKeepAlive()
	assert.Equal(t, ": keep-alive\n", readFrame(t, reader))

	assert.Equal(t, 1, live.Stats().TotalConnections)
	resp.Body.Close()
	assert.Eventually(t, func() bool { return live.Stats().TotalConnections == 0 }, 2*time.Second, 10*time.Millisecond)
}

// deadlineRecorder 记录写超时设置，第 failAfter 次之后返回超时
type deadlineRecorder struct {
	*httptest.ResponseRecorder
	deadlines []time.Time
	failAfter int
}

func (w *deadlineRecorder) SetWriteDeadline(d time.Time) error {
	if d.IsZero() {
		return nil
	}
	w.deadlines = append(w.deadlines, d)
	if len(w.deadlines) > w.failAfter {
		return os.ErrDeadlineExceeded
	}
	return nil
}

func TestStreamWritesUnderDeadline(t *testing.T) {
	live := services.NewBroadcaster(nopSubscriber{}, time.Minute)
	h := NewStreamHandler(&stubResults{results: &models.SessionResults{SessionID: "s1"}}, live, 8)
	h.writeTimeout = 3 * time.Second
	r := gin.New()
	r.GET("/stream/:joinCode", h.Stream)

	w := &deadlineRecorder{ResponseRecorder: httptest.NewRecorder(), failAfter: 1}
	start := time.Now()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream/ABCD2345", nil))

	require.Len(t, w.deadlines, 2)
	assert.WithinDuration(t, start.Add(3*time.Second), w.deadlines[0], time.Second)
	assert.Contains(t, w.Body.String(), `"type":"connected"`)
	assert.NotContains(t, w.Body.String(), `"type":"initial_results"`)
	assert.Zero(t, live.Stats().TotalConnections)
}

func TestStreamUnavailableWithoutSubscription(t *testing.T) {
	live := services.NewBroadcaster(failingSubscriber{}, time.Minute)
	h := NewStreamHandler(&stubResults{results: &models.SessionResults{SessionID: "s1"}}, live, 8)
	r := gin.New()
	r.GET("/stream/:joinCode", h.Stream)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream/ABCD2345", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStreamUnknownSession(t *testing.T) {
	live := services.NewBroadcaster(nopSubscriber{}, time.Minute)
	h := NewStreamHandler(&stubResults{err: services.NotFoundf("session not found")}, live, 8)
	r := gin.New()
	r.GET("/stream/:joinCode", h.Stream)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/healthz", NewHealthHandler(map[string]Check{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	}).Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"db":"ok","redis":"dial tcp: refused"}}`, w.Body.String())
}
