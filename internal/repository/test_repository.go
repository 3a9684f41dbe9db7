package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardlet/cardlet-backend/internal/model"
)

const testColumns = `id, quiz_id, user_id, status, started_at, submitted_at,
	 duration, remaining_time, total_questions, completed_questions,
	 current_question_id, score, created_at`

// TestRepository handles test attempt data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (*model.Test, error) {
	t := &model.Test{}
	err := row.Scan(
		&t.ID, &t.QuizID, &t.UserID, &t.Status, &t.StartedAt, &t.SubmittedAt,
		&t.Duration, &t.RemainingTime, &t.TotalQuestions, &t.CompletedQuestions,
		&t.CurrentQuestionID, &t.Score, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRecordNotFound
		}
		return nil, err
	}
	return t, nil
}

// Create inserts the test row and its eager per-question grading placeholders
// in one transaction. questionIDs must be in snapshot order; the placeholder
// set is fixed here and never grows or shrinks afterwards.
func (r *TestRepository) Create(ctx context.Context, t *model.Test, questionIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests
		   (quiz_id, user_id, status, duration, remaining_time,
		    total_questions, completed_questions, current_question_id)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		 RETURNING id, created_at`,
		t.QuizID, t.UserID, model.TestStatusNotStarted, t.Duration,
		t.Duration, len(questionIDs), questionIDs[0],
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	t.Status = model.TestStatusNotStarted
	t.RemainingTime = t.Duration
	t.TotalQuestions = len(questionIDs)
	t.CurrentQuestionID = questionIDs[0]

	orderNums := make([]int, len(questionIDs))
	for i := range questionIDs {
		orderNums[i] = i
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO test_question_results (test_id, quiz_question_id, order_num)
		 SELECT $1, u.quiz_question_id, u.order_num
		 FROM UNNEST($2::uuid[], $3::int[]) AS u (quiz_question_id, order_num)`,
		t.ID, questionIDs, orderNums,
	)
	if err != nil {
		return fmt.Errorf("insert question results: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a test by id.
func (r *TestRepository) GetByID(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	return scanTest(r.pool.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = $1`, testID))
}

// ListByUser retrieves a user's tests with sorting and pagination.
func (r *TestRepository) ListByUser(ctx context.Context, userID uuid.UUID, params model.ListTestsParams) ([]model.Test, int, error) {
	column := "created_at"
	switch params.SortBy {
	case "score", "started_at", "submitted_at", "duration", "status":
		column = params.SortBy
	}
	direction := "DESC"
	if params.SortDirection == "asc" {
		direction = "ASC"
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	offset := (page - 1) * perPage

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tests WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests
		 WHERE user_id = $1
		 ORDER BY `+column+` `+direction+`
		 LIMIT $2 OFFSET $3`,
		userID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		tests = append(tests, *t)
	}
	return tests, total, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// applyPatch writes only the fields set on the patch and returns the updated
// row. Runs on whatever querier the caller holds, so it composes into the
// lifecycle transactions.
func applyPatch(ctx context.Context, q querier, testID uuid.UUID, patch *model.TestPatch) (*model.Test, error) {
	if patch.Empty() {
		return scanTest(q.QueryRow(ctx,
			`SELECT `+testColumns+` FROM tests WHERE id = $1`, testID))
	}

	set := ""
	args := []any{testID}
	add := func(col string, v any) {
		args = append(args, v)
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", col, len(args))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.SubmittedAt != nil {
		add("submitted_at", *patch.SubmittedAt)
	}
	if patch.CurrentQuestionID != nil {
		add("current_question_id", *patch.CurrentQuestionID)
	}
	if patch.CompletedQuestions != nil {
		add("completed_questions", *patch.CompletedQuestions)
	}
	if patch.RemainingTime != nil {
		add("remaining_time", *patch.RemainingTime)
	}
	if patch.Score != nil {
		add("score", *patch.Score)
	}

	return scanTest(q.QueryRow(ctx,
		`UPDATE tests SET `+set+` WHERE id = $1 RETURNING `+testColumns, args...))
}

// Start transitions NOT_STARTED → IN_PROGRESS. started_at is set on the
// first call only; repeated calls while IN_PROGRESS are no-ops on it. The
// status guard makes the transition race-safe against a concurrent sweep.
func (r *TestRepository) Start(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	t, err := scanTest(r.pool.QueryRow(ctx,
		`UPDATE tests
		 SET status = $2, started_at = COALESCE(started_at, now())
		 WHERE id = $1 AND status IN ($3, $2)
		 RETURNING `+testColumns,
		testID, model.TestStatusInProgress, model.TestStatusNotStarted,
	))
	if errors.Is(err, model.ErrRecordNotFound) {
		// Either the test does not exist or it is already terminal.
		if _, getErr := r.GetByID(ctx, testID); getErr != nil {
			return nil, getErr
		}
		return nil, model.ErrTestEnded
	}
	return t, err
}

// SaveAnswers replaces the recorded answers for (test, question) and updates
// the test's progress fields, all under a row lock on the test so concurrent
// resolve calls for the same test are serialized. completed_questions is
// incremented only when the question transitions from unanswered to
// answered; remaining_time is rejected if it exceeds the stored value.
func (r *TestRepository) SaveAnswers(
	ctx context.Context,
	testID, questionID uuid.UUID,
	answers []model.TestAnswer,
	remainingTime int,
) (*model.Test, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status model.TestStatus
	var stored, completed int
	err = tx.QueryRow(ctx,
		`SELECT status, remaining_time, completed_questions
		 FROM tests WHERE id = $1 FOR UPDATE`, testID,
	).Scan(&status, &stored, &completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRecordNotFound
		}
		return nil, err
	}

	if status.Terminal() {
		return nil, model.ErrTestEnded
	}
	if remainingTime > stored {
		return nil, model.ErrRemainingTimeIncreased
	}

	var hadAnswer bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM test_answers WHERE test_id = $1 AND quiz_question_id = $2
		 )`, testID, questionID,
	).Scan(&hadAnswer)
	if err != nil {
		return nil, err
	}

	// Latest write replaces prior answers for the question.
	if _, err := tx.Exec(ctx,
		`DELETE FROM test_answers WHERE test_id = $1 AND quiz_question_id = $2`,
		testID, questionID,
	); err != nil {
		return nil, fmt.Errorf("delete prior answers: %w", err)
	}

	for _, a := range answers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO test_answers
			   (test_id, quiz_question_id, selected_option_id, text_answer, spent_time)
			 VALUES ($1, $2, $3, $4, $5)`,
			testID, questionID, a.SelectedOptionID, a.TextAnswer, a.SpentTime,
		); err != nil {
			return nil, fmt.Errorf("insert answer: %w", err)
		}
	}

	if !hadAnswer {
		completed++
	}

	t, err := applyPatch(ctx, tx, testID, &model.TestPatch{
		CompletedQuestions: &completed,
		CurrentQuestionID:  &questionID,
		RemainingTime:      &remainingTime,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// GetAnswers retrieves the recorded answers for one question of a test.
func (r *TestRepository) GetAnswers(ctx context.Context, testID, questionID uuid.UUID) ([]model.TestAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, quiz_question_id, selected_option_id, text_answer, spent_time
		 FROM test_answers
		 WHERE test_id = $1 AND quiz_question_id = $2`,
		testID, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnswers(rows)
}

// ListAnsweredQuestions retrieves the set of question ids that have at least
// one recorded answer for a test.
func (r *TestRepository) ListAnsweredQuestions(ctx context.Context, testID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT quiz_question_id FROM test_answers WHERE test_id = $1`,
		testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answered := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		answered[id] = struct{}{}
	}
	return answered, rows.Err()
}

// ListResults retrieves all per-question grading records for a test in
// snapshot order.
func (r *TestRepository) ListResults(ctx context.Context, testID uuid.UUID) ([]model.TestQuestionResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, quiz_question_id, order_num, is_correct
		 FROM test_question_results
		 WHERE test_id = $1
		 ORDER BY order_num`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.TestQuestionResult
	for rows.Next() {
		var res model.TestQuestionResult
		if err := rows.Scan(&res.ID, &res.TestID, &res.QuizQuestionID, &res.OrderNum, &res.IsCorrect); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// GetResult retrieves the grading record for one question of a test.
func (r *TestRepository) GetResult(ctx context.Context, testID, questionID uuid.UUID) (*model.TestQuestionResult, error) {
	var res model.TestQuestionResult
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, quiz_question_id, order_num, is_correct
		 FROM test_question_results
		 WHERE test_id = $1 AND quiz_question_id = $2`,
		testID, questionID,
	).Scan(&res.ID, &res.TestID, &res.QuizQuestionID, &res.OrderNum, &res.IsCorrect)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRecordNotFound
		}
		return nil, err
	}
	return &res, nil
}

// Submit finalizes a test in a single transaction: a status-guarded
// check-and-set so a concurrent duplicate observes ErrTestEnded instead of
// re-grading, then grading of every eager result row via the supplied pure
// grade function, then the final score. A failure anywhere rolls the whole
// submission back; a test is never left partially graded.
func (r *TestRepository) Submit(
	ctx context.Context,
	testID uuid.UUID,
	grade func(answers map[uuid.UUID][]model.TestAnswer) (correct map[uuid.UUID]bool, score int),
) (*model.Test, []model.TestQuestionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	t, err := scanTest(tx.QueryRow(ctx,
		`UPDATE tests
		 SET status = $2, submitted_at = $3
		 WHERE id = $1 AND status NOT IN ($2, $4)
		 RETURNING `+testColumns,
		testID, model.TestStatusSubmitted, now, model.TestStatusAbandoned,
	))
	if err != nil {
		if !errors.Is(err, model.ErrRecordNotFound) {
			return nil, nil, err
		}
		// Lost the check-and-set or the test does not exist.
		if _, getErr := r.GetByID(ctx, testID); getErr != nil {
			return nil, nil, getErr
		}
		return nil, nil, model.ErrTestEnded
	}

	rows, err := tx.Query(ctx,
		`SELECT id, test_id, quiz_question_id, selected_option_id, text_answer, spent_time
		 FROM test_answers WHERE test_id = $1`, testID,
	)
	if err != nil {
		return nil, nil, err
	}
	answers, err := collectAnswers(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	byQuestion := make(map[uuid.UUID][]model.TestAnswer)
	for _, a := range answers {
		byQuestion[a.QuizQuestionID] = append(byQuestion[a.QuizQuestionID], a)
	}

	correct, score := grade(byQuestion)

	questionIDs := make([]uuid.UUID, 0, len(correct))
	flags := make([]bool, 0, len(correct))
	for qid, ok := range correct {
		questionIDs = append(questionIDs, qid)
		flags = append(flags, ok)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE test_question_results AS r
		 SET is_correct = t.is_correct
		 FROM (
			SELECT u.quiz_question_id, u.is_correct
			FROM UNNEST($2::uuid[], $3::bool[]) AS u (quiz_question_id, is_correct)
		 ) AS t
		 WHERE r.test_id = $1 AND r.quiz_question_id = t.quiz_question_id`,
		testID, questionIDs, flags,
	); err != nil {
		return nil, nil, fmt.Errorf("write results: %w", err)
	}

	t, err = applyPatch(ctx, tx, testID, &model.TestPatch{Score: &score})
	if err != nil {
		return nil, nil, fmt.Errorf("write score: %w", err)
	}

	resultRows, err := tx.Query(ctx,
		`SELECT id, test_id, quiz_question_id, order_num, is_correct
		 FROM test_question_results
		 WHERE test_id = $1
		 ORDER BY order_num`, testID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer resultRows.Close()

	var results []model.TestQuestionResult
	for resultRows.Next() {
		var res model.TestQuestionResult
		if err := resultRows.Scan(&res.ID, &res.TestID, &res.QuizQuestionID, &res.OrderNum, &res.IsCorrect); err != nil {
			return nil, nil, err
		}
		results = append(results, res)
	}
	if err := resultRows.Err(); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return t, results, nil
}

// MarkAbandoned flips IN_PROGRESS tests whose time ran out past the grace
// period to ABANDONED. Returns the number of tests swept.
func (r *TestRepository) MarkAbandoned(ctx context.Context, grace time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET status = $1
		 WHERE status = $2
		   AND started_at + make_interval(secs => duration) + $3 < now()`,
		model.TestStatusAbandoned, model.TestStatusInProgress, grace,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectAnswers(rows pgx.Rows) ([]model.TestAnswer, error) {
	var answers []model.TestAnswer
	for rows.Next() {
		var a model.TestAnswer
		if err := rows.Scan(&a.ID, &a.TestID, &a.QuizQuestionID, &a.SelectedOptionID, &a.TextAnswer, &a.SpentTime); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
