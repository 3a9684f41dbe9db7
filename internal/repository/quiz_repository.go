package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardlet/cardlet-backend/internal/model"
)

// QuizRepository reads quizzes, their question snapshots and the sharing
// grants. The authoring subsystem owns the writes; this core only reads.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetByID retrieves a quiz by id.
func (r *QuizRepository) GetByID(ctx context.Context, quizID uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, creator_id, duration, total_points, published, created_at
		 FROM quizzes WHERE id = $1`, quizID,
	).Scan(&q.ID, &q.Name, &q.CreatorID, &q.Duration, &q.TotalPoints, &q.Published, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRecordNotFound
		}
		return nil, err
	}
	return q, nil
}

// ListPublished retrieves all published quizzes (cache prewarm).
func (r *QuizRepository) ListPublished(ctx context.Context) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, creator_id, duration, total_points, published, created_at
		 FROM quizzes WHERE published`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		var q model.Quiz
		if err := rows.Scan(&q.ID, &q.Name, &q.CreatorID, &q.Duration, &q.TotalPoints, &q.Published, &q.CreatedAt); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// IsSharedWith reports whether the quiz has a sharing grant for the user.
func (r *QuizRepository) IsSharedWith(ctx context.Context, quizID, userID uuid.UUID) (bool, error) {
	var shared bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM shared_quizzes WHERE quiz_id = $1 AND user_id = $2
		 )`, quizID, userID,
	).Scan(&shared)
	return shared, err
}

// ListQuestions retrieves a quiz's questions in order, options (with answer
// keys) included.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]model.QuizQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, content, type, points, order_num
		 FROM quiz_questions
		 WHERE quiz_id = $1
		 ORDER BY order_num`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.QuizQuestion
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.QuizQuestion
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Content, &q.Type, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT o.id, o.quiz_question_id, o.content, o.is_correct
		 FROM quiz_question_options o
		 JOIN quiz_questions q ON o.quiz_question_id = q.id
		 WHERE q.quiz_id = $1
		 ORDER BY o.id`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var o model.QuizQuestionOption
		if err := optRows.Scan(&o.ID, &o.QuizQuestionID, &o.Content, &o.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuizQuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, optRows.Err()
}
