package selection

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Timed は登録簿で管理できるセッション。
type Timed interface {
	ID() string
	Expire(now time.Time) bool
	FinishedAt() time.Time
}

// Registry は有効なセッションをIDで保持し、期限切れと後片付けを行う。
// 終了したセッションはgraceの間だけ残し、遅れて届いたイベントに
// 「見つからない」ではなく「終了済み」を返せるようにする。
type Registry[S Timed] struct {
	mu       sync.Mutex
	sessions map[string]S
	grace    time.Duration
	onExpire func(S)
}

// NewRegistry はRegistryを生成する。onExpireはタイムアウトしたセッションごとに呼ばれる（nil可）。
func NewRegistry[S Timed](grace time.Duration, onExpire func(S)) *Registry[S] {
	return &Registry[S]{
		sessions: make(map[string]S),
		grace:    grace,
		onExpire: onExpire,
	}
}

// Add はセッションを登録する。
func (r *Registry[S]) Add(s S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Get はIDでセッションを取得する。
func (r *Registry[S]) Get(id string) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len は登録中のセッション数を返す。
func (r *Registry[S]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep は期限切れのセッションをタイムアウトさせ、終了から猶予を過ぎたセッションを削除する。
// この呼び出しでタイムアウトしたセッションを返す。
func (r *Registry[S]) Sweep(now time.Time) []S {
	r.mu.Lock()
	var expired []S
	for id, s := range r.sessions {
		if s.Expire(now) {
			expired = append(expired, s)
		}
		if fin := s.FinishedAt(); !fin.IsZero() && now.Sub(fin) >= r.grace {
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	if r.onExpire != nil {
		for _, s := range expired {
			r.onExpire(s)
		}
	}
	return expired
}

// Run はコンテキストがキャンセルされるまでinterval間隔でSweepを実行する。
func (r *Registry[S]) Run(ctx context.Context, interval time.Duration, clock func() time.Time, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := r.Sweep(clock()); len(expired) > 0 {
				logger.Debug("期限切れのセッションを終了しました",
					slog.Int("count", len(expired)),
					slog.Int("active", r.Len()),
				)
			}
		}
	}
}
