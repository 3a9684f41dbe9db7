package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardlet/cardlet-backend/internal/model"
)

// fakeTestStore is an in-memory TestStore mirroring the repository's
// transition guards so lifecycle rules can be exercised without a database.
type fakeTestStore struct {
	tests   map[uuid.UUID]*model.Test
	results map[uuid.UUID][]model.TestQuestionResult
	answers map[uuid.UUID]map[uuid.UUID][]model.TestAnswer
}

func newFakeTestStore() *fakeTestStore {
	return &fakeTestStore{
		tests:   make(map[uuid.UUID]*model.Test),
		results: make(map[uuid.UUID][]model.TestQuestionResult),
		answers: make(map[uuid.UUID]map[uuid.UUID][]model.TestAnswer),
	}
}

func (f *fakeTestStore) Create(_ context.Context, t *model.Test, questionIDs []uuid.UUID) error {
	t.ID = uuid.New()
	t.Status = model.TestStatusNotStarted
	t.RemainingTime = t.Duration
	t.TotalQuestions = len(questionIDs)
	t.CurrentQuestionID = questionIDs[0]
	t.CreatedAt = time.Now()

	results := make([]model.TestQuestionResult, len(questionIDs))
	for i, qid := range questionIDs {
		results[i] = model.TestQuestionResult{
			ID:             uuid.New(),
			TestID:         t.ID,
			QuizQuestionID: qid,
			OrderNum:       i,
		}
	}

	cp := *t
	f.tests[t.ID] = &cp
	f.results[t.ID] = results
	f.answers[t.ID] = make(map[uuid.UUID][]model.TestAnswer)
	return nil
}

func (f *fakeTestStore) GetByID(_ context.Context, testID uuid.UUID) (*model.Test, error) {
	t, ok := f.tests[testID]
	if !ok {
		return nil, model.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTestStore) ListByUser(_ context.Context, userID uuid.UUID, _ model.ListTestsParams) ([]model.Test, int, error) {
	var out []model.Test
	for _, t := range f.tests {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, len(out), nil
}

func (f *fakeTestStore) Start(_ context.Context, testID uuid.UUID) (*model.Test, error) {
	t, ok := f.tests[testID]
	if !ok {
		return nil, model.ErrRecordNotFound
	}
	if t.Status.Terminal() {
		return nil, model.ErrTestEnded
	}
	if t.StartedAt == nil {
		now := time.Now()
		t.StartedAt = &now
	}
	t.Status = model.TestStatusInProgress
	cp := *t
	return &cp, nil
}

func (f *fakeTestStore) SaveAnswers(_ context.Context, testID, questionID uuid.UUID, answers []model.TestAnswer, remainingTime int) (*model.Test, error) {
	t, ok := f.tests[testID]
	if !ok {
		return nil, model.ErrRecordNotFound
	}
	if t.Status.Terminal() {
		return nil, model.ErrTestEnded
	}
	if remainingTime > t.RemainingTime {
		return nil, model.ErrRemainingTimeIncreased
	}

	_, had := f.answers[testID][questionID]
	f.answers[testID][questionID] = answers
	if !had {
		t.CompletedQuestions++
	}
	t.CurrentQuestionID = questionID
	t.RemainingTime = remainingTime
	cp := *t
	return &cp, nil
}

func (f *fakeTestStore) GetAnswers(_ context.Context, testID, questionID uuid.UUID) ([]model.TestAnswer, error) {
	return f.answers[testID][questionID], nil
}

func (f *fakeTestStore) ListAnsweredQuestions(_ context.Context, testID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	answered := make(map[uuid.UUID]struct{})
	for qid := range f.answers[testID] {
		answered[qid] = struct{}{}
	}
	return answered, nil
}

func (f *fakeTestStore) ListResults(_ context.Context, testID uuid.UUID) ([]model.TestQuestionResult, error) {
	return f.results[testID], nil
}

func (f *fakeTestStore) GetResult(_ context.Context, testID, questionID uuid.UUID) (*model.TestQuestionResult, error) {
	for i := range f.results[testID] {
		if f.results[testID][i].QuizQuestionID == questionID {
			cp := f.results[testID][i]
			return &cp, nil
		}
	}
	return nil, model.ErrRecordNotFound
}

func (f *fakeTestStore) Submit(_ context.Context, testID uuid.UUID, grade func(map[uuid.UUID][]model.TestAnswer) (map[uuid.UUID]bool, int)) (*model.Test, []model.TestQuestionResult, error) {
	t, ok := f.tests[testID]
	if !ok {
		return nil, nil, model.ErrRecordNotFound
	}
	if t.Status.Terminal() {
		return nil, nil, model.ErrTestEnded
	}

	correct, score := grade(f.answers[testID])
	for i := range f.results[testID] {
		res := &f.results[testID][i]
		if ok, graded := correct[res.QuizQuestionID]; graded {
			v := ok
			res.IsCorrect = &v
		}
	}

	now := time.Now()
	t.Status = model.TestStatusSubmitted
	t.SubmittedAt = &now
	t.Score = &score
	cp := *t
	return &cp, f.results[testID], nil
}

// fakeQuizProvider serves a single fixed quiz snapshot.
type fakeQuizProvider struct {
	quiz      model.Quiz
	questions []model.QuizQuestion
	sharedTo  map[uuid.UUID]struct{}
}

func (f *fakeQuizProvider) Authorize(_ context.Context, quizID, userID uuid.UUID) (*model.Quiz, error) {
	if quizID != f.quiz.ID {
		return nil, model.ErrRecordNotFound
	}
	if userID != f.quiz.CreatorID {
		if _, ok := f.sharedTo[userID]; !ok {
			return nil, model.ErrAccessDenied
		}
	}
	cp := f.quiz
	return &cp, nil
}

func (f *fakeQuizProvider) Snapshot(_ context.Context, quizID uuid.UUID) (*model.QuizSnapshot, error) {
	if quizID != f.quiz.ID {
		return nil, model.ErrRecordNotFound
	}
	return &model.QuizSnapshot{Quiz: f.quiz, Questions: f.questions}, nil
}

// fixture builds a published two-question quiz: a 5-point single-select and
// a 10-point multi-select with two correct options.
type fixture struct {
	svc     *TestService
	store   *fakeTestStore
	owner   uuid.UUID
	quizID  uuid.UUID
	single  model.QuizQuestion
	multi   model.QuizQuestion
	correct []uuid.UUID // correct option ids: single[0], multi[0], multi[1]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	owner := uuid.New()
	quizID := uuid.New()

	single := model.QuizQuestion{
		ID: uuid.New(), QuizID: quizID, Type: model.QuestionTypeSingleSelect,
		Points: 5, OrderNum: 0,
	}
	sOK := uuid.New()
	single.Options = []model.QuizQuestionOption{
		{ID: sOK, QuizQuestionID: single.ID, IsCorrect: true},
		{ID: uuid.New(), QuizQuestionID: single.ID},
	}

	multi := model.QuizQuestion{
		ID: uuid.New(), QuizID: quizID, Type: model.QuestionTypeMultiSelect,
		Points: 10, OrderNum: 1,
	}
	mOK1, mOK2 := uuid.New(), uuid.New()
	multi.Options = []model.QuizQuestionOption{
		{ID: mOK1, QuizQuestionID: multi.ID, IsCorrect: true},
		{ID: mOK2, QuizQuestionID: multi.ID, IsCorrect: true},
		{ID: uuid.New(), QuizQuestionID: multi.ID},
	}

	provider := &fakeQuizProvider{
		quiz: model.Quiz{
			ID: quizID, CreatorID: owner, Duration: 600,
			TotalPoints: 15, Published: true,
		},
		questions: []model.QuizQuestion{single, multi},
		sharedTo:  make(map[uuid.UUID]struct{}),
	}

	store := newFakeTestStore()
	svc := NewTestService(store, provider, zerolog.Nop())

	return &fixture{
		svc: svc, store: store, owner: owner, quizID: quizID,
		single: single, multi: multi,
		correct: []uuid.UUID{sOK, mOK1, mOK2},
	}
}

func (fx *fixture) createTest(t *testing.T) *model.Test {
	t.Helper()
	test, err := fx.svc.Create(context.Background(), fx.owner, &model.CreateTestRequest{QuizID: fx.quizID})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return test
}

func (fx *fixture) resolve(t *testing.T, testID, questionID uuid.UUID, remaining int, optionIDs ...uuid.UUID) *model.Test {
	t.Helper()
	req := &model.ResolveTestRequest{RemainingTime: remaining}
	for i := range optionIDs {
		req.Answers = append(req.Answers, model.SaveTestAnswer{SelectedOptionID: &optionIDs[i]})
	}
	test, err := fx.svc.Resolve(context.Background(), fx.owner, testID, questionID, req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return test
}

func TestCreateTestFreezesQuestionSet(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)

	if test.Status != model.TestStatusNotStarted {
		t.Errorf("status = %s, want NOT_STARTED", test.Status)
	}
	if test.RemainingTime != 600 {
		t.Errorf("remaining_time = %d, want 600", test.RemainingTime)
	}
	if test.TotalQuestions != 2 {
		t.Errorf("total_questions = %d, want 2", test.TotalQuestions)
	}
	if test.CurrentQuestionID != fx.single.ID {
		t.Error("current question should be the first in snapshot order")
	}

	results, _ := fx.store.ListResults(context.Background(), test.ID)
	if len(results) != 2 {
		t.Fatalf("placeholders = %d, want one per question", len(results))
	}
	for i, res := range results {
		if res.OrderNum != i {
			t.Errorf("result %d order_num = %d", i, res.OrderNum)
		}
		if res.IsCorrect != nil {
			t.Error("is_correct should stay null until submission")
		}
	}
}

func TestCreateTestUnpublishedQuiz(t *testing.T) {
	fx := newFixture(t)
	provider := fx.svc.quizzes.(*fakeQuizProvider)
	provider.quiz.Published = false

	_, err := fx.svc.Create(context.Background(), fx.owner, &model.CreateTestRequest{QuizID: fx.quizID})
	if !errors.Is(err, model.ErrQuizNotPublished) {
		t.Errorf("error = %v, want ErrQuizNotPublished", err)
	}
}

func TestCreateTestAccessDenied(t *testing.T) {
	fx := newFixture(t)
	stranger := uuid.New()

	_, err := fx.svc.Create(context.Background(), stranger, &model.CreateTestRequest{QuizID: fx.quizID})
	if !errors.Is(err, model.ErrAccessDenied) {
		t.Errorf("error = %v, want ErrAccessDenied", err)
	}
}

func TestCreateTestSharedQuiz(t *testing.T) {
	fx := newFixture(t)
	friend := uuid.New()
	fx.svc.quizzes.(*fakeQuizProvider).sharedTo[friend] = struct{}{}

	test, err := fx.svc.Create(context.Background(), friend, &model.CreateTestRequest{QuizID: fx.quizID})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if test.UserID != friend {
		t.Error("test should belong to the sharee")
	}
}

func TestStartIsIdempotentWhileInProgress(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()

	first, err := fx.svc.Start(ctx, fx.owner, test.ID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if first.Status != model.TestStatusInProgress || first.StartedAt == nil {
		t.Fatal("start should set IN_PROGRESS and started_at")
	}

	second, err := fx.svc.Start(ctx, fx.owner, test.ID)
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Error("repeated start must not move started_at")
	}
}

func TestStartEndedTest(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()

	fx.svc.Start(ctx, fx.owner, test.ID)
	if _, err := fx.svc.Submit(ctx, fx.owner, test.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if _, err := fx.svc.Start(ctx, fx.owner, test.ID); !errors.Is(err, model.ErrTestEnded) {
		t.Errorf("error = %v, want ErrTestEnded", err)
	}
}

func TestOwnershipEnforcedEverywhere(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	stranger := uuid.New()

	if _, err := fx.svc.GetByID(ctx, stranger, test.ID); !errors.Is(err, model.ErrAccessDenied) {
		t.Errorf("GetByID error = %v, want ErrAccessDenied", err)
	}
	if _, err := fx.svc.Start(ctx, stranger, test.ID); !errors.Is(err, model.ErrAccessDenied) {
		t.Errorf("Start error = %v, want ErrAccessDenied", err)
	}
	if _, err := fx.svc.Submit(ctx, stranger, test.ID); !errors.Is(err, model.ErrAccessDenied) {
		t.Errorf("Submit error = %v, want ErrAccessDenied", err)
	}
	if _, err := fx.svc.Result(ctx, stranger, test.ID); !errors.Is(err, model.ErrAccessDenied) {
		t.Errorf("Result error = %v, want ErrAccessDenied", err)
	}
}

func TestResolveReplacesAnswersOnce(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	updated := fx.resolve(t, test.ID, fx.single.ID, 500, fx.single.Options[1].ID)
	if updated.CompletedQuestions != 1 {
		t.Errorf("completed = %d, want 1", updated.CompletedQuestions)
	}

	// Re-answering the same question replaces, never double counts.
	updated = fx.resolve(t, test.ID, fx.single.ID, 450, fx.correct[0])
	if updated.CompletedQuestions != 1 {
		t.Errorf("completed after re-answer = %d, want 1", updated.CompletedQuestions)
	}

	answers, _ := fx.store.GetAnswers(ctx, test.ID, fx.single.ID)
	if len(answers) != 1 || *answers[0].SelectedOptionID != fx.correct[0] {
		t.Error("latest answers should replace prior ones")
	}
}

func TestResolveRejectsRemainingTimeIncrease(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	fx.resolve(t, test.ID, fx.single.ID, 300, fx.correct[0])

	req := &model.ResolveTestRequest{
		Answers:       []model.SaveTestAnswer{{SelectedOptionID: &fx.correct[0]}},
		RemainingTime: 400,
	}
	_, err := fx.svc.Resolve(ctx, fx.owner, test.ID, fx.single.ID, req)
	if !errors.Is(err, model.ErrRemainingTimeIncreased) {
		t.Errorf("error = %v, want ErrRemainingTimeIncreased", err)
	}

	// The rejected call must not have changed stored state.
	current, _ := fx.svc.GetByID(ctx, fx.owner, test.ID)
	if current.RemainingTime != 300 {
		t.Errorf("remaining_time = %d, want 300", current.RemainingTime)
	}
}

func TestResolveInvalidAnswerShape(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	// Two options on a single-select question.
	req := &model.ResolveTestRequest{
		Answers: []model.SaveTestAnswer{
			{SelectedOptionID: &fx.single.Options[0].ID},
			{SelectedOptionID: &fx.single.Options[1].ID},
		},
		RemainingTime: 500,
	}
	_, err := fx.svc.Resolve(ctx, fx.owner, test.ID, fx.single.ID, req)
	if !errors.Is(err, model.ErrInvalidAnswer) {
		t.Errorf("error = %v, want ErrInvalidAnswer", err)
	}
}

func TestResolveUnknownQuestion(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	req := &model.ResolveTestRequest{
		Answers:       []model.SaveTestAnswer{{SelectedOptionID: &fx.correct[0]}},
		RemainingTime: 500,
	}
	_, err := fx.svc.Resolve(ctx, fx.owner, test.ID, uuid.New(), req)
	if !errors.Is(err, model.ErrRecordNotFound) {
		t.Errorf("error = %v, want ErrRecordNotFound", err)
	}
}

func TestSubmitGradesAndScores(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	fx.resolve(t, test.ID, fx.single.ID, 500, fx.correct[0])
	fx.resolve(t, test.ID, fx.multi.ID, 400, fx.correct[1], fx.correct[2])

	result, err := fx.svc.Submit(ctx, fx.owner, test.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if result.Test.Status != model.TestStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", result.Test.Status)
	}
	if result.Test.SubmittedAt == nil {
		t.Error("submitted_at should be set")
	}
	if result.Test.Score == nil || *result.Test.Score != 15 {
		t.Errorf("score = %v, want 15", result.Test.Score)
	}
	if len(result.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(result.Results))
	}
	for _, res := range result.Results {
		if res.IsCorrect == nil || !*res.IsCorrect {
			t.Errorf("question %s should be graded correct", res.QuizQuestionID)
		}
	}
}

func TestSubmitPartialAnswers(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	// Only the single-select is answered; multi-select gets an incomplete
	// selection worth no credit.
	fx.resolve(t, test.ID, fx.single.ID, 500, fx.correct[0])
	fx.resolve(t, test.ID, fx.multi.ID, 400, fx.correct[1])

	result, err := fx.svc.Submit(ctx, fx.owner, test.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if *result.Test.Score != 5 {
		t.Errorf("score = %d, want 5 (no partial credit)", *result.Test.Score)
	}
}

func TestSubmitIsSingleShot(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	if _, err := fx.svc.Submit(ctx, fx.owner, test.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := fx.svc.Submit(ctx, fx.owner, test.ID); !errors.Is(err, model.ErrTestEnded) {
		t.Errorf("second submit error = %v, want ErrTestEnded", err)
	}
}

func TestResultBeforeAndAfterEnd(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	if _, err := fx.svc.Result(ctx, fx.owner, test.ID); !errors.Is(err, model.ErrTestNotEnd) {
		t.Errorf("pre-end error = %v, want ErrTestNotEnd", err)
	}

	fx.resolve(t, test.ID, fx.single.ID, 500, fx.correct[0])
	submitted, err := fx.svc.Submit(ctx, fx.owner, test.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got, err := fx.svc.Result(ctx, fx.owner, test.ID)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if *got.Test.Score != *submitted.Test.Score {
		t.Error("result must match the submitted outcome")
	}

	// Reading again returns the same outcome.
	again, err := fx.svc.Result(ctx, fx.owner, test.ID)
	if err != nil {
		t.Fatalf("second Result() error = %v", err)
	}
	if *again.Test.Score != *got.Test.Score {
		t.Error("result must be stable across reads")
	}
}

func TestGetTestingQuestionStripsAnswerKey(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	q, err := fx.svc.GetTestingQuestion(ctx, fx.owner, test.ID, fx.multi.ID)
	if err != nil {
		t.Fatalf("GetTestingQuestion() error = %v", err)
	}
	if len(q.Options) != len(fx.multi.Options) {
		t.Errorf("options = %d, want %d", len(q.Options), len(fx.multi.Options))
	}
	if q.Type != model.QuestionTypeMultiSelect || q.Points != 10 {
		t.Error("question metadata should survive the view mapping")
	}
}

func TestGetTestingQuestionAfterEnd(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)
	fx.svc.Submit(ctx, fx.owner, test.ID)

	_, err := fx.svc.GetTestingQuestion(ctx, fx.owner, test.ID, fx.single.ID)
	if !errors.Is(err, model.ErrTestEnded) {
		t.Errorf("error = %v, want ErrTestEnded", err)
	}
}

func TestReviewSolution(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	if _, err := fx.svc.ReviewSolution(ctx, fx.owner, test.ID, fx.single.ID); !errors.Is(err, model.ErrTestNotEnd) {
		t.Errorf("pre-end error = %v, want ErrTestNotEnd", err)
	}

	fx.resolve(t, test.ID, fx.single.ID, 500, fx.correct[0])
	fx.svc.Submit(ctx, fx.owner, test.ID)

	solution, err := fx.svc.ReviewSolution(ctx, fx.owner, test.ID, fx.single.ID)
	if err != nil {
		t.Fatalf("ReviewSolution() error = %v", err)
	}
	if solution.IsCorrect == nil || !*solution.IsCorrect {
		t.Error("solution should show the question graded correct")
	}
	if len(solution.UserAnswers) != 1 {
		t.Errorf("user answers = %d, want 1", len(solution.UserAnswers))
	}
	hasKey := false
	for _, o := range solution.Question.Options {
		if o.IsCorrect {
			hasKey = true
		}
	}
	if !hasKey {
		t.Error("review must include the answer key")
	}
}

func TestQuestionStatuses(t *testing.T) {
	fx := newFixture(t)
	test := fx.createTest(t)
	ctx := context.Background()
	fx.svc.Start(ctx, fx.owner, test.ID)

	fx.resolve(t, test.ID, fx.single.ID, 500, fx.correct[0])

	statuses, err := fx.svc.QuestionStatuses(ctx, fx.owner, test.ID)
	if err != nil {
		t.Fatalf("QuestionStatuses() error = %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d, want 2", len(statuses))
	}
	if !statuses[0].Answered || statuses[1].Answered {
		t.Error("only the first question should show answered")
	}
	if statuses[0].IsCorrect != nil {
		t.Error("correctness must stay hidden before submission")
	}
}
