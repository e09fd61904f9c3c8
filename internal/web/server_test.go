package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/quiz"
	"github.com/conorfennell/knolstudy/internal/review"
	"github.com/conorfennell/knolstudy/internal/storage"
	decksync "github.com/conorfennell/knolstudy/internal/sync"
)

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	db  *storage.DB
	srv *Server
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, now: t0}
	srv, err := NewServer(db,
		WithClock(func() time.Time { return env.now }),
		WithSyncOptions(decksync.Options{
			ReposDir: filepath.Join(t.TempDir(), "repos"),
			GitSync: func(ctx context.Context, url, localPath string) error {
				return errors.New("git disabled in tests")
			},
		}),
	)
	if err != nil {
		t.Fatalf("NewServer() returned an unexpected error: %v", err)
	}
	env.srv = srv
	return env
}

// seed creates item "deck" with three due cards and two questions.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	sourceID, err := e.db.InsertSource("/decks", "local")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.db.UpsertItem(domain.Item{ID: "deck", SourceID: sourceID, Title: "Go Basics", Path: "go.md", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	for i, topic := range []string{"syntax", "", "runtime"} {
		card := domain.NewFlashcard(fmt.Sprintf("c%d", i+1), "deck", fmt.Sprintf("front %d", i+1), fmt.Sprintf("back %d", i+1), topic, t0)
		if err := e.db.InsertFlashcard(card, storage.OriginDeck); err != nil {
			t.Fatal(err)
		}
	}
	questions := []domain.MCQ{
		{ID: "q1", ItemID: "deck", Question: "First?", Options: []string{"yes", "no"}, CorrectIndex: 0, Difficulty: domain.Easy, Tags: []string{"basics"}},
		{ID: "q2", ItemID: "deck", Question: "Second?", Options: []string{"yes", "no"}, CorrectIndex: 1, Difficulty: domain.Hard, Tags: []string{"channels"}},
	}
	for _, q := range questions {
		if err := e.db.InsertMCQ(q, storage.OriginDeck); err != nil {
			t.Fatal(err)
		}
	}
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/", nil)
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, "Go Basics") || !strings.Contains(body, "3 cards due") {
		t.Errorf("index is missing deck details: %s", body)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/static/style.css", nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/nope", nil), http.StatusNotFound)
}

func TestNextReviewUsesCursor(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	testCases := []struct {
		cursor string
		want   string
	}{
		{"0", "front 1"},
		{"1", "front 2"},
		{"4", "front 2"},
		{"-1", "front 3"},
	}
	for _, tc := range testCases {
		t.Run(tc.cursor, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/review/next?item=deck&cursor="+tc.cursor, nil)
			expectStatus(t, rec, http.StatusOK)
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Errorf("cursor %s: expected %q in %s", tc.cursor, tc.want, rec.Body.String())
			}
		})
	}

	expectStatus(t, env.do(t, http.MethodGet, "/review/next?cursor=x", nil), http.StatusBadRequest)
}

func TestNextReviewNothingDue(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.now = t0.Add(-time.Hour)

	rec := env.do(t, http.MethodGet, "/review/next", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Nothing due") {
		t.Errorf("expected the empty state, got %s", rec.Body.String())
	}
}

func TestShowAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/review/answer/c1?item=deck&cursor=0", nil)
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, "back 1") || !strings.Contains(body, "Easy") {
		t.Errorf("answer view is missing the back or ratings: %s", body)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/review/answer/missing", nil), http.StatusNotFound)
}

func TestPostReview(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := env.do(t, http.MethodPost, "/review/c1", url.Values{"rating": {"easy"}, "cursor": {"0"}, "item": {"deck"}})
	expectStatus(t, rec, http.StatusOK)

	card, err := env.db.FindFlashcard("c1")
	if err != nil || card == nil {
		t.Fatalf("FindFlashcard() = %v, %v", card, err)
	}
	if card.Ease != 2.65 {
		t.Errorf("Expected ease 2.65, got %v", card.Ease)
	}
	if want := t0.AddDate(0, 0, 3); !card.NextReviewAt.Equal(want) {
		t.Errorf("Expected next review %v, got %v", want, card.NextReviewAt)
	}

	// c1 left the due set [c2 c3] and the cursor moved to 1.
	if !strings.Contains(rec.Body.String(), "front 3") {
		t.Errorf("expected the next card to be front 3, got %s", rec.Body.String())
	}

	m, ok := env.srv.Tracker().Item("deck")
	if !ok || m.MasteryByTag["syntax"] != 2 {
		t.Errorf("review not recorded in analytics: %+v", m)
	}
	if g := env.srv.Tracker().Global(); g.StreakDays != 1 {
		t.Errorf("Expected a 1 day streak, got %d", g.StreakDays)
	}
}

func TestPostReviewAgainUsesGeneralTopic(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	expectStatus(t, env.do(t, http.MethodPost, "/review/c2", url.Values{"rating": {"1"}}), http.StatusOK)
	m, _ := env.srv.Tracker().Item("deck")
	if v, ok := m.MasteryByTag["general"]; !ok || v != 0 {
		t.Errorf("Expected general mastery 0, got %v (present %v)", v, ok)
	}
	card, _ := env.db.FindFlashcard("c2")
	if want := t0.AddDate(0, 0, 1); !card.NextReviewAt.Equal(want) {
		t.Errorf("Expected next review %v, got %v", want, card.NextReviewAt)
	}
}

func TestPostReviewErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	testCases := []struct {
		name   string
		target string
		form   url.Values
		want   int
	}{
		{"missing rating", "/review/c1", url.Values{}, http.StatusBadRequest},
		{"bad rating", "/review/c1", url.Values{"rating": {"5"}}, http.StatusBadRequest},
		{"bad cursor", "/review/c1", url.Values{"rating": {"good"}, "cursor": {"x"}}, http.StatusBadRequest},
		{"unknown card", "/review/nope", url.Values{"rating": {"good"}}, http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectStatus(t, env.do(t, http.MethodPost, tc.target, tc.form), tc.want)
		})
	}

	card, _ := env.db.FindFlashcard("c1")
	if card.Ease != domain.InitialEase {
		t.Errorf("rejected reviews changed the card: ease %v", card.Ease)
	}
}

var sessionIDPattern = regexp.MustCompile(`/quiz/([0-9a-f-]{36})/complete`)

func startQuiz(t *testing.T, env *testEnv, form url.Values) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/quiz", form)
	expectStatus(t, rec, http.StatusCreated)
	m := sessionIDPattern.FindStringSubmatch(rec.Body.String())
	if m == nil {
		t.Fatalf("no session id in %s", rec.Body.String())
	}
	return m[1]
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	id := startQuiz(t, env, url.Values{"item": {"deck"}})

	rec := env.do(t, http.MethodPost, "/quiz/"+id+"/answer", url.Values{"question": {"q1"}, "selected": {"0"}, "time_spent_ms": {"1500"}})
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Correct.") {
		t.Errorf("expected correct feedback, got %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/quiz/"+id+"/answer", url.Values{"question": {"q2"}, "selected": {"0"}})
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Incorrect. The answer is B.") {
		t.Errorf("expected incorrect feedback, got %s", rec.Body.String())
	}

	env.now = t0.Add(10 * time.Minute)
	rec = env.do(t, http.MethodPost, "/quiz/"+id+"/complete", nil)
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, "50%") || !strings.Contains(body, "channels") {
		t.Errorf("unexpected results: %s", body)
	}

	session, err := env.db.FindQuizSession(id)
	if err != nil || session == nil {
		t.Fatalf("FindQuizSession() = %v, %v", session, err)
	}
	if session.Score == nil || *session.Score != 50 || session.CompletedAt == nil {
		t.Errorf("session not completed in storage: %+v", session)
	}

	m, ok := env.srv.Tracker().Item("deck")
	if !ok || m.QuizzesTaken != 1 || m.AvgScore != 50 || m.TotalStudyMin != 10 {
		t.Errorf("quiz not recorded in analytics: %+v", m)
	}
	if len(m.WeakTags) != 1 || m.WeakTags[0] != "channels" {
		t.Errorf("Expected weak tags [channels], got %v", m.WeakTags)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/quiz/"+id+"/complete", nil), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodPost, "/quiz/"+id+"/answer", url.Values{"question": {"q1"}, "selected": {"0"}}), http.StatusConflict)

	rec = env.do(t, http.MethodGet, "/quiz/"+id, nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Results") {
		t.Errorf("completed quiz should show results, got %s", rec.Body.String())
	}
}

func TestStartQuizFilters(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	id := startQuiz(t, env, url.Values{"item": {"deck"}, "difficulty": {"hard"}})
	session, err := env.db.FindQuizSession(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(session.Questions) != 1 || session.Questions[0].ID != "q2" {
		t.Errorf("Expected only q2, got %+v", session.Questions)
	}

	id = startQuiz(t, env, url.Values{"item": {"deck"}, "count": {"1"}})
	session, _ = env.db.FindQuizSession(id)
	if len(session.Questions) != 1 || session.Questions[0].ID != "q1" {
		t.Errorf("Expected only q1, got %+v", session.Questions)
	}

	id = startQuiz(t, env, url.Values{"item": {"deck"}, "tags": {"basics, channels"}})
	session, _ = env.db.FindQuizSession(id)
	if len(session.Questions) != 2 {
		t.Errorf("Expected both questions, got %+v", session.Questions)
	}
}

func TestQuizErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	id := startQuiz(t, env, url.Values{"item": {"deck"}})

	testCases := []struct {
		name   string
		target string
		form   url.Values
		want   int
	}{
		{"no item", "/quiz", url.Values{}, http.StatusBadRequest},
		{"unknown item", "/quiz", url.Values{"item": {"nope"}}, http.StatusNotFound},
		{"bad difficulty", "/quiz", url.Values{"item": {"deck"}, "difficulty": {"EASY"}}, http.StatusBadRequest},
		{"zero count", "/quiz", url.Values{"item": {"deck"}, "count": {"0"}}, http.StatusBadRequest},
		{"no matching questions", "/quiz", url.Values{"item": {"deck"}, "tags": {"missing"}}, http.StatusUnprocessableEntity},
		{"unknown session", "/quiz/nope/answer", url.Values{"question": {"q1"}, "selected": {"0"}}, http.StatusNotFound},
		{"unknown question", "/quiz/" + id + "/answer", url.Values{"question": {"q9"}, "selected": {"0"}}, http.StatusNotFound},
		{"no question", "/quiz/" + id + "/answer", url.Values{"selected": {"0"}}, http.StatusBadRequest},
		{"bad selection", "/quiz/" + id + "/answer", url.Values{"question": {"q1"}, "selected": {"a"}}, http.StatusBadRequest},
		{"complete unknown", "/quiz/nope/complete", nil, http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectStatus(t, env.do(t, http.MethodPost, tc.target, tc.form), tc.want)
		})
	}
	expectStatus(t, env.do(t, http.MethodGet, "/quiz/nope", nil), http.StatusNotFound)
}

func TestAnswerOutOfRangeIsIncorrect(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	id := startQuiz(t, env, url.Values{"item": {"deck"}})

	rec := env.do(t, http.MethodPost, "/quiz/"+id+"/answer", url.Values{"question": {"q1"}, "selected": {"7"}})
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Incorrect.") {
		t.Errorf("expected incorrect feedback, got %s", rec.Body.String())
	}
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := env.do(t, http.MethodPost, "/items/deck/generate", url.Values{"cards": {"4"}, "questions": {"3"}, "summary": {"true"}})
	expectStatus(t, rec, http.StatusCreated)
	if !strings.Contains(rec.Body.String(), "Added 4 flashcards and 3 questions.") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	cards, _ := env.db.GetFlashcards("deck")
	if len(cards) != 7 {
		t.Errorf("Expected 7 cards, got %d", len(cards))
	}
	questions, _ := env.db.GetMCQs("deck")
	if len(questions) != 5 {
		t.Errorf("Expected 5 questions, got %d", len(questions))
	}
	if sum, err := env.db.FindLatestSummary("deck"); err != nil || sum == nil {
		t.Errorf("summary not stored: %v, %v", sum, err)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/items/deck/generate", url.Values{}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/items/deck/generate", url.Values{"cards": {"500"}}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/items/nope/generate", url.Values{"cards": {"1"}}), http.StatusNotFound)
}

func TestAnalytics(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	expectStatus(t, env.do(t, http.MethodPost, "/review/c1", url.Values{"rating": {"good"}}), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/analytics", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "syntax") {
		t.Errorf("expected the reviewed topic in analytics: %s", rec.Body.String())
	}

	expectStatus(t, env.do(t, http.MethodGet, "/analytics?item=deck", nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/analytics?item=nope", nil), http.StatusNotFound)
}

func TestSources(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	deck := "Q: What is Go?\nA: A language.\n---\n"
	if err := os.WriteFile(filepath.Join(dir, "go.md"), []byte(deck), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodPost, "/sources", url.Values{"path": {dir}})
	expectStatus(t, rec, http.StatusCreated)
	if !strings.Contains(rec.Body.String(), dir) {
		t.Errorf("new source not listed: %s", rec.Body.String())
	}
	expectStatus(t, env.do(t, http.MethodPost, "/sources", url.Values{}), http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, "/sync", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "1 added") {
		t.Errorf("unexpected sync result: %s", rec.Body.String())
	}
	cards, _ := env.db.GetFlashcards("")
	if len(cards) != 1 {
		t.Fatalf("Expected 1 synced card, got %d", len(cards))
	}

	rec = env.do(t, http.MethodGet, "/sources", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "scanned 2024-06-01 10:00") {
		t.Errorf("last scan time not shown: %s", rec.Body.String())
	}

	sources, _ := env.db.GetAllSources()
	expectStatus(t, env.do(t, http.MethodDelete, fmt.Sprintf("/sources/%d", sources[0].ID), nil), http.StatusOK)
	if cards, _ := env.db.GetFlashcards(""); len(cards) != 0 {
		t.Errorf("deleting a source left %d cards behind", len(cards))
	}
	expectStatus(t, env.do(t, http.MethodDelete, fmt.Sprintf("/sources/%d", sources[0].ID), nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodDelete, "/sources/abc", nil), http.StatusBadRequest)
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", review.ErrInvalidRating), http.StatusBadRequest},
		{notFound("card", "x"), http.StatusNotFound},
		{quiz.ErrQuestionNotFound, http.StatusNotFound},
		{quiz.ErrAlreadyCompleted, http.StatusConflict},
		{quiz.ErrEmptySession, http.StatusUnprocessableEntity},
		{review.ErrInvalidCard, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			if got := statusFor(tc.err); got != tc.want {
				t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
