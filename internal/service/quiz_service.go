package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cardlet/cardlet-backend/internal/config"
	"github.com/cardlet/cardlet-backend/internal/model"
	"github.com/cardlet/cardlet-backend/internal/repository"
)

// QuizService serves quiz snapshots and access checks to the test-taking
// core. Published snapshots are cached in Redis so the hot test-taking path
// does not touch PostgreSQL for quiz content; the database stays the source
// of truth and a cache miss falls back to it.
type QuizService struct {
	quizRepo *repository.QuizRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(quizRepo *repository.QuizRepository, rdb *redis.Client, log zerolog.Logger) *QuizService {
	return &QuizService{
		quizRepo: quizRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "quiz_service").Logger(),
	}
}

// Authorize retrieves a quiz if the user may take it: the creator always may,
// everyone else needs a sharing grant. Anything else is ErrAccessDenied.
func (s *QuizService) Authorize(ctx context.Context, quizID, userID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if quiz.CreatorID != userID {
		shared, err := s.quizRepo.IsSharedWith(ctx, quizID, userID)
		if err != nil {
			return nil, fmt.Errorf("check sharing grant: %w", err)
		}
		if !shared {
			return nil, model.ErrAccessDenied
		}
	}

	return quiz, nil
}

// Snapshot retrieves the full quiz snapshot (header plus ordered questions
// with answer keys). Served from Redis when cached; a miss loads from
// PostgreSQL and re-caches published quizzes so the cache self-heals after a
// flush.
func (s *QuizService) Snapshot(ctx context.Context, quizID uuid.UUID) (*model.QuizSnapshot, error) {
	key := config.CacheKey.QuizSnapshotKey(quizID.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var snap model.QuizSnapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return &snap, nil
		}
		// Corrupt cache entry. Drop it and rebuild from the database.
		s.log.Warn().Str("quiz_id", quizID.String()).Msg("Corrupt snapshot cache entry, rebuilding")
		_ = s.rdb.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Redis unavailable, falling back to database")
	}

	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	snap, err := s.buildSnapshot(ctx, quiz)
	if err != nil {
		return nil, err
	}

	if quiz.Published {
		if err := s.cacheSnapshot(ctx, snap); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Failed to re-cache snapshot")
		}
	}

	return snap, nil
}

// PrewarmAllCaches loads every published quiz snapshot into Redis on
// application startup.
func (s *QuizService) PrewarmAllCaches(ctx context.Context) error {
	quizzes, err := s.quizRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published quizzes: %w", err)
	}

	if len(quizzes) == 0 {
		s.log.Info().Msg("No published quizzes to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(quizzes)).Msg("Prewarming published quizzes...")

	warmed := 0
	for i := range quizzes {
		snap, err := s.buildSnapshot(ctx, &quizzes[i])
		if err == nil {
			err = s.cacheSnapshot(ctx, snap)
		}
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("quiz_id", quizzes[i].ID.String()).
				Msg("Failed to warm quiz, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(quizzes)).
		Msg("Prewarming complete")
	return nil
}

func (s *QuizService) buildSnapshot(ctx context.Context, quiz *model.Quiz) (*model.QuizSnapshot, error) {
	questions, err := s.quizRepo.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return &model.QuizSnapshot{Quiz: *quiz, Questions: questions}, nil
}

func (s *QuizService) cacheSnapshot(ctx context.Context, snap *model.QuizSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	quizID := snap.Quiz.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.QuizSnapshotKey(quizID), payload, 0)
	pipe.Set(ctx, config.CacheKey.QuizDurationKey(quizID), snap.Quiz.Duration, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("quiz_id", quizID).
		Int("questions", len(snap.Questions)).
		Msg("Snapshot cached")
	return nil
}
