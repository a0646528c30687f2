package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestAnswerKey returns the cache key for an assembled test's answer key hash
func (r *CacheKeyStruct) TestAnswerKey(testID string) string {
	return fmt.Sprintf("test:%s:key", testID)
}

// ClassifierScoreKey returns the cache key for a memoized classifier result
func (r *CacheKeyStruct) ClassifierScoreKey(contentHash string) string {
	return fmt.Sprintf("classifier:score:%s", contentHash)
}

// AssemblyRateKey returns the cache key counting assembly requests per client
func (r *CacheKeyStruct) AssemblyRateKey(clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:assembly:%s:%d", clientIP, window)
}

var CacheKey = NewCacheKeyStruct()
