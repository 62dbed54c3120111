// Package selection はパーク選択セッションと検索セッションの状態機械を提供する。
// セッションはメモリ上にのみ存在し、作成したユーザーだけが操作できる。
package selection

import (
	"sort"
	"sync"
	"time"
)

// State は選択セッションの状態。
type State int

const (
	StateOpen State = iota
	StateSubmitting
	StateCommitted
	StateCancelled
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateSubmitting:
		return "submitting"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal は終了状態かどうかを返す。
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCancelled || s == StateTimedOut
}

// Option は選択ページ上の選択肢1つ。
type Option struct {
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// Page は選択ページ1つ分の選択肢。
type Page struct {
	Index   int      `json:"index"`
	Options []Option `json:"options"`
}

// View はセッションの読み取り専用スナップショット。
type View struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	State     string    `json:"state"`
	MaxPerks  int       `json:"max_perks"`
	Selected  []string  `json:"selected"`
	Pages     []Page    `json:"pages"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session はユーザー1人のパーク選択を複数ページにわたって保持する。
// 1セッションへのイベントはミューテックスで1つずつ処理する。
type Session struct {
	mu sync.Mutex

	id        string
	ownerID   string
	ownerName string
	maxPerks  int

	pages   [][]string
	pageOf  map[string]int
	order   map[string]int
	working map[string]struct{}

	state      State
	expiresAt  time.Time
	finishedAt time.Time
}

// Config は選択セッションの生成パラメータ。
type Config struct {
	ID        string
	OwnerID   string
	OwnerName string
	Catalog   []string // カタログ順のパーク名
	Existing  []string // ユーザーが現在保持しているパーク名
	PageSize  int
	MaxPerks  int
	Now       time.Time
	TTL       time.Duration
}

// NewSession は選択セッションを生成する。
// 既存の保持パークのうちカタログに存在するものを選択済みとして初期化する。
func NewSession(cfg Config) *Session {
	s := &Session{
		id:        cfg.ID,
		ownerID:   cfg.OwnerID,
		ownerName: cfg.OwnerName,
		maxPerks:  cfg.MaxPerks,
		pages:     paginate(cfg.Catalog, cfg.PageSize),
		pageOf:    make(map[string]int, len(cfg.Catalog)),
		order:     make(map[string]int, len(cfg.Catalog)),
		working:   make(map[string]struct{}, len(cfg.Existing)),
		state:     StateOpen,
		expiresAt: cfg.Now.Add(cfg.TTL),
	}
	for p, names := range s.pages {
		for _, name := range names {
			s.pageOf[name] = p
			s.order[name] = len(s.order)
		}
	}
	for _, name := range cfg.Existing {
		if _, ok := s.pageOf[name]; ok {
			s.working[name] = struct{}{}
		}
	}
	return s
}

// paginate はカタログをページサイズごとに分割する。
func paginate(names []string, size int) [][]string {
	if size <= 0 {
		size = len(names)
	}
	var pages [][]string
	for start := 0; start < len(names); start += size {
		end := min(start+size, len(names))
		pages = append(pages, names[start:end:end])
	}
	return pages
}

// ID はセッションIDを返す。
func (s *Session) ID() string { return s.id }

// OwnerID はセッション所有者のIDを返す。
func (s *Session) OwnerID() string { return s.ownerID }

// OwnerName はセッション所有者の表示名を返す。
func (s *Session) OwnerName() string { return s.ownerName }

// State は現在の状態を返す。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExpiresAt はセッションの期限を返す。
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// FinishedAt は終了状態に入った時刻を返す。終了していなければゼロ値。
func (s *Session) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

// Select はページの選択変更を反映する。
// そのページに属する選択肢の選択状態だけをvaluesで置き換え、他のページの選択は維持する。
func (s *Session) Select(actorID string, page int, values []string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(actorID, now); err != nil {
		return err
	}
	if page < 0 || page >= len(s.pages) {
		return ErrInvalidPage
	}

	chosen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if p, ok := s.pageOf[v]; !ok || p != page {
			return &OptionError{Page: page, Value: v}
		}
		chosen[v] = struct{}{}
	}

	for _, name := range s.pages[page] {
		delete(s.working, name)
	}
	for v := range chosen {
		s.working[v] = struct{}{}
	}
	return nil
}

// BeginSubmit は選択数を検証し、Submitting状態に遷移して確定対象のパーク名を返す。
// 選択数が1未満または上限超過の場合はOpenのままエラーを返す。
func (s *Session) BeginSubmit(actorID string, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(actorID, now); err != nil {
		return nil, err
	}
	switch n := len(s.working); {
	case n == 0:
		return nil, ErrNothingSelected
	case n > s.maxPerks:
		return nil, ErrTooManySelected
	}

	s.state = StateSubmitting
	return s.selectedLocked(), nil
}

// Commit は保存成功後にCommittedへ遷移する。Submitting以外では何もしない。
func (s *Session) Commit(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSubmitting {
		s.finishLocked(StateCommitted, now)
	}
}

// Abort は保存失敗時にOpenへ戻す。選択内容は維持する。
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSubmitting {
		s.state = StateOpen
	}
}

// Cancel は選択を破棄してCancelledへ遷移する。
func (s *Session) Cancel(actorID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(actorID, now); err != nil {
		return err
	}
	s.working = map[string]struct{}{}
	s.finishLocked(StateCancelled, now)
	return nil
}

// Expire は期限を過ぎたOpenセッションをTimedOutにする。遷移した場合はtrueを返す。
// 保存処理中（Submitting）のセッションは保存の完了を待つため対象外とする。
func (s *Session) Expire(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireLocked(now)
}

func (s *Session) expireLocked(now time.Time) bool {
	if s.state != StateOpen || now.Before(s.expiresAt) {
		return false
	}
	s.working = map[string]struct{}{}
	s.finishLocked(StateTimedOut, s.expiresAt)
	return true
}

func (s *Session) finishLocked(state State, at time.Time) {
	s.state = state
	s.finishedAt = at
}

// checkLocked はイベントを受け付けられるかを確認する。
// 所有者以外のイベントは状態に関係なく拒否する。
func (s *Session) checkLocked(actorID string, now time.Time) error {
	if actorID != s.ownerID {
		return ErrNotAuthorized
	}
	s.expireLocked(now)
	switch s.state {
	case StateOpen:
		return nil
	case StateTimedOut:
		return ErrExpired
	default:
		return ErrClosed
	}
}

// selectedLocked は選択中のパーク名をカタログ順で返す。
func (s *Session) selectedLocked() []string {
	out := make([]string, 0, len(s.working))
	for name := range s.working {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i]] < s.order[out[j]] })
	return out
}

// Selected は選択中のパーク名をカタログ順で返す。
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

// View はセッションのスナップショットを返す。
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := make([]Page, len(s.pages))
	for i, names := range s.pages {
		opts := make([]Option, len(names))
		for j, name := range names {
			_, selected := s.working[name]
			opts[j] = Option{Value: name, Selected: selected}
		}
		pages[i] = Page{Index: i, Options: opts}
	}

	return View{
		ID:        s.id,
		OwnerID:   s.ownerID,
		State:     s.state.String(),
		MaxPerks:  s.maxPerks,
		Selected:  s.selectedLocked(),
		Pages:     pages,
		ExpiresAt: s.expiresAt,
	}
}
