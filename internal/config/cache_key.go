package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizSnapshotKey returns the cache key for a published quiz's question snapshot.
func (r *CacheKeyStruct) QuizSnapshotKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:snapshot", quizID)
}

// QuizDurationKey returns the cache key for a quiz's duration in seconds.
func (r *CacheKeyStruct) QuizDurationKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:duration", quizID)
}

var CacheKey = NewCacheKeyStruct()
