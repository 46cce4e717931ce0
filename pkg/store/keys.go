package store

import (
	"fmt"
	"time"
)

// TokenKey is the sync-area key holding the Bridgy token
const TokenKey = "token"

// SourceKeyKey is the local key holding the Bridgy source key of a silo
func SourceKeyKey(silo string) string {
	return silo + "-bridgySourceKey"
}

// LastStartKey is the local key holding when the last poll of a silo started
func LastStartKey(silo string) string {
	return silo + "-lastStart"
}

// LastSuccessKey is the local key holding when the last poll of a silo succeeded
func LastSuccessKey(silo string) string {
	return silo + "-lastSuccess"
}

// PostPrefix is the common prefix of every post record of a silo
func PostPrefix(silo string) string {
	return silo + "-post-"
}

// PostKey is the local key holding the engagement counts of one post
func PostKey(silo, id string) string {
	return fmt.Sprintf("%s-post-%s", silo, id)
}

// PostStats is the stored engagement snapshot of a post
type PostStats struct {
	Comments  int `json:"c"`
	Reactions int `json:"r"`
}

// Changed reports whether next has more comments or reactions than s
func (s PostStats) Changed(next PostStats) bool {
	return next.Comments > s.Comments || next.Reactions > s.Reactions
}

// SiloState is the bookkeeping the local area holds for one silo
type SiloState struct {
	Silo        string               `json:"silo"`
	SourceKey   string               `json:"source_key,omitempty"`
	LastStart   *time.Time           `json:"last_start,omitempty"`
	LastSuccess *time.Time           `json:"last_success,omitempty"`
	Posts       map[string]PostStats `json:"posts,omitempty"`
}
