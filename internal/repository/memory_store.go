package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/perkbot/internal/model"
)

// MemoryStore はプロセス内メモリでカタログと紐付けを保持するストア。
// CatalogRepositoryとAssignmentRepositoryの両方を実装する。
// 開発環境（STORAGE_DRIVER=memory）とテストで使用する。
// 全操作を単一のミューテックスで直列化するため、置き換えの途中状態は外部から見えない。
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	perks   []model.Perk // 取り込み順
	byName  map[string]int64
	byID    map[int64]int // perksのインデックス
	holders map[string]*memoryHolder
}

// memoryHolder はユーザー1人分の紐付け。
type memoryHolder struct {
	userName string
	perkIDs  []int64
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName:  make(map[string]int64),
		byID:    make(map[int64]int),
		holders: make(map[string]*memoryHolder),
	}
}

// ReplaceCatalog はカタログ全体を置き換える。名前が残るパークのIDは維持する。
func (s *MemoryStore) ReplaceCatalog(ctx context.Context, perks []model.PerkInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	perks = model.DedupePerkInputs(perks)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Perk, 0, len(perks))
	byName := make(map[string]int64, len(perks))
	byID := make(map[int64]int, len(perks))
	for i, p := range perks {
		id, ok := s.byName[p.Name]
		if !ok {
			s.nextID++
			id = s.nextID
		}
		next = append(next, model.Perk{
			ID:                    id,
			Name:                  p.Name,
			Type:                  p.Type,
			Specialization:        p.Specialization,
			SpecializationEffects: p.SpecializationEffects,
		})
		byName[p.Name] = id
		byID[id] = i
	}

	s.perks = next
	s.byName = byName
	s.byID = byID
	return nil
}

// ListPerkNames は取り込み順にパーク名一覧を返す。
func (s *MemoryStore) ListPerkNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.perks))
	for _, p := range s.perks {
		names = append(names, p.Name)
	}
	return names, nil
}

// ListPerks は取り込み順にパーク一覧を返す。
func (s *MemoryStore) ListPerks(ctx context.Context) ([]model.Perk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perks := make([]model.Perk, len(s.perks))
	copy(perks, s.perks)
	return perks, nil
}

// FindPerkByID は指定IDのパークを取得する。見つからない場合はnilを返す。
func (s *MemoryStore) FindPerkByID(ctx context.Context, id int64) (*model.Perk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	perk := s.perks[i]
	return &perk, nil
}

// ListDistinctTypes はカタログに存在するタイプを重複なしで返す。
func (s *MemoryStore) ListDistinctTypes(ctx context.Context) ([]string, error) {
	return s.distinct(func(p model.Perk) string { return p.Type }), nil
}

// ListDistinctSpecializations はカタログに存在する専門を重複なしで返す。
func (s *MemoryStore) ListDistinctSpecializations(ctx context.Context) ([]string, error) {
	return s.distinct(func(p model.Perk) string { return p.Specialization }), nil
}

func (s *MemoryStore) distinct(field func(model.Perk) string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.perks {
		v := field(p)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// GetUserPerks はユーザーが保持するパーク名をカタログ順で返す。
// カタログから消えたパークへの参照は除外する。
func (s *MemoryStore) GetUserPerks(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holders[userID]
	if !ok {
		return nil, nil
	}
	var names []string
	for _, p := range s.resolveLocked(h.perkIDs) {
		names = append(names, p.Name)
	}
	return names, nil
}

// UserHasAssignments はユーザーが1件以上の紐付けを持つかを返す。
func (s *MemoryStore) UserHasAssignments(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holders[userID]
	return ok && len(h.perkIDs) > 0, nil
}

// ReplaceUserPerks はユーザーの紐付けを全削除してから作り直す。
// カタログに存在しない名前は読み飛ばす。
func (s *MemoryStore) ReplaceUserPerks(ctx context.Context, userID, userName string, perkNames []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holders, userID)

	seen := make(map[int64]struct{}, len(perkNames))
	var ids []int64
	for _, name := range perkNames {
		id, ok := s.byName[name]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	s.holders[userID] = &memoryHolder{userName: userName, perkIDs: ids}
	return nil
}

// ClearUserPerks はユーザーの紐付けを全削除する。
func (s *MemoryStore) ClearUserPerks(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holders, userID)
	return nil
}

// QueryByPerkNameSubstring はパーク名の部分一致でパークごとの保持ユーザーを返す。
func (s *MemoryStore) QueryByPerkNameSubstring(ctx context.Context, fragment string) ([]model.PerkHolders, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(fragment)
	users := make(map[int64][]string)
	for _, h := range s.holders {
		for _, p := range s.resolveLocked(h.perkIDs) {
			if strings.Contains(strings.ToLower(p.Name), needle) {
				users[p.ID] = append(users[p.ID], h.userName)
			}
		}
	}

	var results []model.PerkHolders
	for _, p := range s.perks {
		names, ok := users[p.ID]
		if !ok {
			continue
		}
		sort.Strings(names)
		results = append(results, model.PerkHolders{PerkID: p.ID, PerkName: p.Name, Users: names})
	}
	return results, nil
}

// QueryByType は指定タイプのパークを保持するユーザーごとのパーク名を返す。
func (s *MemoryStore) QueryByType(ctx context.Context, perkType string) (model.UserPerks, error) {
	return s.queryUserPerks(func(p model.Perk) bool { return p.Type == perkType }), nil
}

// QueryBySpecialization は指定専門のパークを保持するユーザーごとのパーク名を返す。
func (s *MemoryStore) QueryBySpecialization(ctx context.Context, specialization string) (model.UserPerks, error) {
	return s.queryUserPerks(func(p model.Perk) bool { return p.Specialization == specialization }), nil
}

// QueryAll は全ユーザーの保持パーク名を返す。
func (s *MemoryStore) QueryAll(ctx context.Context) (model.UserPerks, error) {
	return s.queryUserPerks(func(model.Perk) bool { return true }), nil
}

func (s *MemoryStore) queryUserPerks(match func(model.Perk) bool) model.UserPerks {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := model.UserPerks{}
	for _, h := range s.holders {
		for _, p := range s.resolveLocked(h.perkIDs) {
			if match(p) {
				result[h.userName] = append(result[h.userName], p.Name)
			}
		}
	}
	return result
}

// resolveLocked はパークIDをカタログ順のパークに解決する。
// カタログに存在しないIDは読み飛ばす。呼び出し側でロックを保持していること。
func (s *MemoryStore) resolveLocked(ids []int64) []model.Perk {
	idx := make([]int, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.byID[id]; ok {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	perks := make([]model.Perk, len(idx))
	for j, i := range idx {
		perks[j] = s.perks[i]
	}
	return perks
}

// compile-time interface check
var (
	_ CatalogRepository    = (*MemoryStore)(nil)
	_ AssignmentRepository = (*MemoryStore)(nil)
)
