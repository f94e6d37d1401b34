package app

import (
	"time"

	"github.com/taoyao-code/daly-bms/internal/health"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// NewHealthAggregator 初始只包含链路检查，存储/发布按启用情况追加
func NewHealthAggregator(s *session.Session, staleAfter time.Duration, link *Link) *health.Aggregator {
	return health.NewAggregator(health.NewLinkChecker(s, staleAfter, link.Breaker()))
}
