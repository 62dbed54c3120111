package selection

import (
	"sync"
	"time"
)

// SearchView は検索セッションのスナップショット。
type SearchView struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	State           string    `json:"state"`
	Types           []string  `json:"types"`
	Specializations []string  `json:"specializations"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// SearchSession は読み取り専用の検索セッション。
// 期限内であれば所有者は何度でも検索できる。
type SearchSession struct {
	mu sync.Mutex

	id              string
	ownerID         string
	types           []string
	specializations []string

	state      State
	expiresAt  time.Time
	finishedAt time.Time
}

// NewSearchSession は検索セッションを生成する。
func NewSearchSession(id, ownerID string, types, specializations []string, now time.Time, ttl time.Duration) *SearchSession {
	return &SearchSession{
		id:              id,
		ownerID:         ownerID,
		types:           types,
		specializations: specializations,
		state:           StateOpen,
		expiresAt:       now.Add(ttl),
	}
}

// ID はセッションIDを返す。
func (s *SearchSession) ID() string { return s.id }

// ExpiresAt はセッションの期限を返す。
func (s *SearchSession) ExpiresAt() time.Time { return s.expiresAt }

// FinishedAt はタイムアウトした時刻を返す。Openならゼロ値。
func (s *SearchSession) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

// State は現在の状態を返す。
func (s *SearchSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Authorize は検索イベントを受け付けられるかを確認する。
func (s *SearchSession) Authorize(actorID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if actorID != s.ownerID {
		return ErrNotAuthorized
	}
	if s.expireLocked(now) || s.state == StateTimedOut {
		return ErrExpired
	}
	return nil
}

// HasType はタイプが選択肢に含まれるかを返す。
func (s *SearchSession) HasType(t string) bool {
	return contains(s.types, t)
}

// HasSpecialization は専門が選択肢に含まれるかを返す。
func (s *SearchSession) HasSpecialization(spec string) bool {
	return contains(s.specializations, spec)
}

// Expire は期限を過ぎていればTimedOutにする。遷移した場合はtrueを返す。
func (s *SearchSession) Expire(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireLocked(now)
}

func (s *SearchSession) expireLocked(now time.Time) bool {
	if s.state != StateOpen || now.Before(s.expiresAt) {
		return false
	}
	s.state = StateTimedOut
	s.finishedAt = s.expiresAt
	return true
}

// View はセッションのスナップショットを返す。
func (s *SearchSession) View() SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SearchView{
		ID:              s.id,
		OwnerID:         s.ownerID,
		State:           s.state.String(),
		Types:           s.types,
		Specializations: s.specializations,
		ExpiresAt:       s.expiresAt,
	}
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
