package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardlet/cardlet-backend/internal/grading"
	"github.com/cardlet/cardlet-backend/internal/model"
	"github.com/cardlet/cardlet-backend/internal/response"
)

// ErrNoQuestions is returned when a test is requested on a quiz that has no
// questions.
var ErrNoQuestions = errors.New("quiz has no questions")

// TestStore is the persistence surface the test lifecycle needs. Satisfied
// by repository.TestRepository.
type TestStore interface {
	Create(ctx context.Context, t *model.Test, questionIDs []uuid.UUID) error
	GetByID(ctx context.Context, testID uuid.UUID) (*model.Test, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params model.ListTestsParams) ([]model.Test, int, error)
	Start(ctx context.Context, testID uuid.UUID) (*model.Test, error)
	SaveAnswers(ctx context.Context, testID, questionID uuid.UUID, answers []model.TestAnswer, remainingTime int) (*model.Test, error)
	GetAnswers(ctx context.Context, testID, questionID uuid.UUID) ([]model.TestAnswer, error)
	ListAnsweredQuestions(ctx context.Context, testID uuid.UUID) (map[uuid.UUID]struct{}, error)
	ListResults(ctx context.Context, testID uuid.UUID) ([]model.TestQuestionResult, error)
	GetResult(ctx context.Context, testID, questionID uuid.UUID) (*model.TestQuestionResult, error)
	Submit(ctx context.Context, testID uuid.UUID, grade func(answers map[uuid.UUID][]model.TestAnswer) (map[uuid.UUID]bool, int)) (*model.Test, []model.TestQuestionResult, error)
}

// QuizProvider serves quiz access checks and question snapshots. Satisfied
// by QuizService.
type QuizProvider interface {
	Authorize(ctx context.Context, quizID, userID uuid.UUID) (*model.Quiz, error)
	Snapshot(ctx context.Context, quizID uuid.UUID) (*model.QuizSnapshot, error)
}

// TestService drives the test lifecycle: creation, start, answering,
// submission with grading, and post-submission review. Every operation
// checks that the caller owns the test; a foreign test is ErrAccessDenied
// regardless of its existence being known.
type TestService struct {
	store   TestStore
	quizzes QuizProvider
	log     zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(store TestStore, quizzes QuizProvider, log zerolog.Logger) *TestService {
	return &TestService{
		store:   store,
		quizzes: quizzes,
		log:     log.With().Str("component", "test_service").Logger(),
	}
}

// Create opens a new test attempt on a quiz for the user. The quiz must be
// published and either owned by or shared with the user. The question set is
// frozen here: one grading placeholder per question, in snapshot order.
func (s *TestService) Create(ctx context.Context, userID uuid.UUID, req *model.CreateTestRequest) (*model.Test, error) {
	quiz, err := s.quizzes.Authorize(ctx, req.QuizID, userID)
	if err != nil {
		return nil, err
	}
	if !quiz.Published {
		return nil, model.ErrQuizNotPublished
	}

	snap, err := s.quizzes.Snapshot(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}
	if len(snap.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	questionIDs := make([]uuid.UUID, len(snap.Questions))
	for i := range snap.Questions {
		questionIDs[i] = snap.Questions[i].ID
	}

	t := &model.Test{
		QuizID:   quiz.ID,
		UserID:   userID,
		Duration: quiz.Duration,
	}
	if err := s.store.Create(ctx, t, questionIDs); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.log.Info().
		Str("test_id", t.ID.String()).
		Str("quiz_id", quiz.ID.String()).
		Int("questions", len(questionIDs)).
		Msg("Test created")
	return t, nil
}

// List retrieves the user's own tests with sorting and pagination.
func (s *TestService) List(ctx context.Context, userID uuid.UUID, params model.ListTestsParams) ([]model.Test, *response.Pagination, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PerPage < 1 {
		params.PerPage = 10
	}
	if params.PerPage > 100 {
		params.PerPage = 100
	}

	tests, total, err := s.store.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, nil, err
	}
	if tests == nil {
		tests = []model.Test{}
	}

	totalPages := (total + params.PerPage - 1) / params.PerPage

	pagination := &response.Pagination{
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalItems: total,
		TotalPages: totalPages,
	}
	return tests, pagination, nil
}

// GetByID retrieves one of the user's tests.
func (s *TestService) GetByID(ctx context.Context, userID, testID uuid.UUID) (*model.Test, error) {
	return s.getOwned(ctx, userID, testID)
}

// Start transitions the test to IN_PROGRESS and stamps started_at on the
// first call. Calling it again while in progress returns the test unchanged;
// calling it on an ended test is ErrTestEnded.
func (s *TestService) Start(ctx context.Context, userID, testID uuid.UUID) (*model.Test, error) {
	if _, err := s.getOwned(ctx, userID, testID); err != nil {
		return nil, err
	}
	return s.store.Start(ctx, testID)
}

// GetTestingQuestion retrieves the in-progress view of one question: content
// and options with the answer key stripped, plus any answers the user already
// recorded. Only available while the test has not ended.
func (s *TestService) GetTestingQuestion(ctx context.Context, userID, testID, questionID uuid.UUID) (*model.TestingQuestion, error) {
	t, err := s.getOwned(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, model.ErrTestEnded
	}

	q, err := s.snapshotQuestion(ctx, t.QuizID, questionID)
	if err != nil {
		return nil, err
	}

	answers, err := s.store.GetAnswers(ctx, testID, questionID)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = []model.TestAnswer{}
	}

	options := make([]model.TestingOption, len(q.Options))
	for i, o := range q.Options {
		options[i] = model.TestingOption{ID: o.ID, Content: o.Content}
	}

	return &model.TestingQuestion{
		ID:          q.ID,
		Content:     q.Content,
		Type:        q.Type,
		Points:      q.Points,
		OrderNum:    q.OrderNum,
		Options:     options,
		UserAnswers: answers,
	}, nil
}

// Resolve records the user's answers for one question, replacing whatever
// was stored before, and advances the test's progress fields. The reported
// remaining time may only stay or shrink; an increase is rejected outright.
func (s *TestService) Resolve(ctx context.Context, userID, testID, questionID uuid.UUID, req *model.ResolveTestRequest) (*model.Test, error) {
	t, err := s.getOwned(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, model.ErrTestEnded
	}

	q, err := s.snapshotQuestion(ctx, t.QuizID, questionID)
	if err != nil {
		return nil, err
	}

	answers := make([]model.TestAnswer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = model.TestAnswer{
			TestID:           testID,
			QuizQuestionID:   questionID,
			SelectedOptionID: a.SelectedOptionID,
			TextAnswer:       a.TextAnswer,
			SpentTime:        a.SpentTime,
		}
	}
	if err := grading.ValidateAnswers(q, answers); err != nil {
		return nil, err
	}

	return s.store.SaveAnswers(ctx, testID, questionID, answers, req.RemainingTime)
}

// Submit ends the test and grades every question in a single transaction.
// The first submission wins; any later one, and any submission racing the
// abandonment sweep, observes ErrTestEnded.
func (s *TestService) Submit(ctx context.Context, userID, testID uuid.UUID) (*model.TestResult, error) {
	t, err := s.getOwned(ctx, userID, testID)
	if err != nil {
		return nil, err
	}

	snap, err := s.quizzes.Snapshot(ctx, t.QuizID)
	if err != nil {
		return nil, err
	}

	graded, results, err := s.store.Submit(ctx, testID, func(answers map[uuid.UUID][]model.TestAnswer) (map[uuid.UUID]bool, int) {
		return grading.GradeTest(snap.Questions, answers)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("test_id", testID.String()).
		Int("score", *graded.Score).
		Msg("Test submitted")
	return &model.TestResult{Test: graded, Results: results}, nil
}

// Result retrieves the graded outcome of an ended test. Calling it before
// the test ended is ErrTestNotEnd; the outcome never changes afterwards.
func (s *TestService) Result(ctx context.Context, userID, testID uuid.UUID) (*model.TestResult, error) {
	t, err := s.getOwned(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	if !t.Status.Terminal() {
		return nil, model.ErrTestNotEnd
	}

	results, err := s.store.ListResults(ctx, testID)
	if err != nil {
		return nil, err
	}
	return &model.TestResult{Test: t, Results: results}, nil
}

// ReviewSolution retrieves the post-test review of one question: the
// question with its answer key, the user's answers, the computed correctness
// and the time spent. Only available once the test ended.
func (s *TestService) ReviewSolution(ctx context.Context, userID, testID, questionID uuid.UUID) (*model.SolutionView, error) {
	t, err := s.getOwned(ctx, userID, testID)
	if err != nil {
		return nil, err
	}
	if !t.Status.Terminal() {
		return nil, model.ErrTestNotEnd
	}

	q, err := s.snapshotQuestion(ctx, t.QuizID, questionID)
	if err != nil {
		return nil, err
	}

	result, err := s.store.GetResult(ctx, testID, questionID)
	if err != nil {
		return nil, err
	}

	answers, err := s.store.GetAnswers(ctx, testID, questionID)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = []model.TestAnswer{}
	}

	spent := 0
	for _, a := range answers {
		spent += a.SpentTime
	}

	return &model.SolutionView{
		Question:    *q,
		UserAnswers: answers,
		IsCorrect:   result.IsCorrect,
		SpentTime:   spent,
	}, nil
}

// QuestionStatuses retrieves the navigation overview of a test: one entry
// per question in snapshot order with its answered flag and, once graded,
// its correctness.
func (s *TestService) QuestionStatuses(ctx context.Context, userID, testID uuid.UUID) ([]model.QuestionStatus, error) {
	if _, err := s.getOwned(ctx, userID, testID); err != nil {
		return nil, err
	}

	results, err := s.store.ListResults(ctx, testID)
	if err != nil {
		return nil, err
	}
	answered, err := s.store.ListAnsweredQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}

	statuses := make([]model.QuestionStatus, len(results))
	for i, res := range results {
		_, ok := answered[res.QuizQuestionID]
		statuses[i] = model.QuestionStatus{
			QuizQuestionID: res.QuizQuestionID,
			OrderNum:       res.OrderNum,
			Answered:       ok,
			IsCorrect:      res.IsCorrect,
		}
	}
	return statuses, nil
}

func (s *TestService) getOwned(ctx context.Context, userID, testID uuid.UUID) (*model.Test, error) {
	t, err := s.store.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, model.ErrAccessDenied
	}
	return t, nil
}

func (s *TestService) snapshotQuestion(ctx context.Context, quizID, questionID uuid.UUID) (*model.QuizQuestion, error) {
	snap, err := s.quizzes.Snapshot(ctx, quizID)
	if err != nil {
		return nil, err
	}
	for i := range snap.Questions {
		if snap.Questions[i].ID == questionID {
			return &snap.Questions[i], nil
		}
	}
	return nil, model.ErrRecordNotFound
}
