// Package timeout defines centralized timeout constants for persona turns.
// Package timeout 定义角色对话回合的集中式超时常量。
package timeout

import "time"

// Turn timeout constants.
// 回合超时常量。
const (
	// TurnTimeout bounds a whole orchestration turn, both events included.
	// TurnTimeout 是整个编排回合（含两次事件）的超时时间。
	TurnTimeout = 2 * time.Minute

	// ClassifyTimeout is the timeout for the recollection-needed classifier.
	// ClassifyTimeout 是记忆需求判断的超时时间。
	ClassifyTimeout = 10 * time.Second

	// ReflexTimeout is the timeout for the short reflex reply.
	// ReflexTimeout 是下意识快速回复的超时时间。
	ReflexTimeout = 20 * time.Second

	// ComposeTimeout is the timeout for direct and no-recollection replies.
	// ComposeTimeout 是直接回复与无记忆回复的超时时间。
	ComposeTimeout = 45 * time.Second

	// SupplementTimeout covers the fused reply including one regeneration.
	// SupplementTimeout 是补充回复（含一次重新生成）的超时时间。
	SupplementTimeout = 90 * time.Second

	// RetrievalTimeout is the timeout for recollection retrieval.
	// RetrievalTimeout 是记忆检索的超时时间。
	RetrievalTimeout = 15 * time.Second

	// EmbeddingTimeout is the timeout for embedding generation.
	// EmbeddingTimeout 是向量生成的超时时间。
	EmbeddingTimeout = 30 * time.Second

	// AuthoringTimeout is the timeout for generating one recollection draft.
	// AuthoringTimeout 是生成单条记忆草稿的超时时间。
	AuthoringTimeout = 60 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	// MaxTruncateLength 是日志中字符串截断的最大长度。
	MaxTruncateLength = 200
)
