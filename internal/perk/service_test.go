package perk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/hitoshi/perkbot/internal/model"
	"github.com/hitoshi/perkbot/internal/repository"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// --- モック定義 ---

type mockRecorder struct {
	mu       sync.Mutex
	opened   map[string]int
	closed   map[string]int
	rejected map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		opened:   make(map[string]int),
		closed:   make(map[string]int),
		rejected: make(map[string]int),
	}
}

func (m *mockRecorder) RecordSessionOpened(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened[kind]++
}

func (m *mockRecorder) RecordSessionClosed(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed[kind+"/"+outcome]++
}

func (m *mockRecorder) RecordSubmitRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

// failingAssignments は書き込みだけ失敗させる紐付けリポジトリ。
type failingAssignments struct {
	repository.AssignmentRepository
	replaceErr error
	hasErr     error
}

func (f *failingAssignments) ReplaceUserPerks(ctx context.Context, userID, userName string, perkNames []string) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.AssignmentRepository.ReplaceUserPerks(ctx, userID, userName, perkNames)
}

func (f *failingAssignments) UserHasAssignments(ctx context.Context, userID string) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.AssignmentRepository.UserHasAssignments(ctx, userID)
}

// failingCatalog は全読み取りが失敗するカタログ。
type failingCatalog struct {
	repository.CatalogRepository
}

func (failingCatalog) ListPerkNames(ctx context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (failingCatalog) ListPerks(ctx context.Context) ([]model.Perk, error) {
	return nil, errors.New("connection refused")
}

func (failingCatalog) ListDistinctTypes(ctx context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (failingCatalog) FindPerkByID(ctx context.Context, id int64) (*model.Perk, error) {
	return nil, errors.New("connection refused")
}

// --- ヘルパー ---

var testCatalog = []model.PerkInput{
	{Name: "Quick Draw", Type: "Combat", Specialization: "Gunner", SpecializationEffects: "Faster draw"},
	{Name: "Iron Skin", Type: "Defense", Specialization: "Tank", SpecializationEffects: "Less damage"},
	{Name: "Eagle Eye", Type: "Combat", Specialization: "Sniper", SpecializationEffects: "Longer range"},
	{Name: "Field Medic", Type: "Support", Specialization: "Medic", SpecializationEffects: "Heal allies"},
	{Name: "Quick Hands", Type: "Support", Specialization: "Engineer", SpecializationEffects: "Faster repair"},
}

type fixture struct {
	svc     *Service
	store   *repository.MemoryStore
	metrics *mockRecorder
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	if err := store.ReplaceCatalog(context.Background(), testCatalog); err != nil {
		t.Fatalf("ReplaceCatalog returned error: %v", err)
	}
	return newFixtureWith(t, store, store, store)
}

func newFixtureWith(t *testing.T, store *repository.MemoryStore, catalog repository.CatalogRepository, assignments repository.AssignmentRepository) *fixture {
	t.Helper()

	f := &fixture{store: store, metrics: newMockRecorder(), clock: t0}
	f.svc = NewService(catalog, assignments, f.metrics, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		MaxPerks:         2,
		PageSize:         2,
		SelectionTimeout: 10 * time.Minute,
		SearchTimeout:    10 * time.Minute,
		PromptGrace:      time.Minute,
	})
	f.svc.now = func() time.Time { return f.clock }
	seq := 0
	f.svc.newID = func() string {
		seq++
		return fmt.Sprintf("sess-%d", seq)
	}
	return f
}

func cmpIgnorePerkID() cmp.Option {
	return cmpopts.IgnoreFields(model.PerkHolders{}, "PerkID")
}

func assertAPIError(t *testing.T, err error, wantCode string) *model.APIError {
	t.Helper()

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("expected code %s, got %s (%s)", wantCode, apiErr.Code, apiErr.Message)
	}
	return apiErr
}

// --- OpenSelection ---

func TestOpenSelection_PaginatesCatalogAndPreselectsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.store.ReplaceUserPerks(ctx, "u1", "Alice", []string{"Eagle Eye"}); err != nil {
		t.Fatalf("ReplaceUserPerks returned error: %v", err)
	}

	prompt, err := f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}

	if prompt.Prompt != "Alice - Select your perks and then click Submit:" {
		t.Errorf("unexpected prompt: %q", prompt.Prompt)
	}
	if len(prompt.Session.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(prompt.Session.Pages))
	}
	if diff := cmp.Diff([]string{"Eagle Eye"}, prompt.Session.Selected); diff != "" {
		t.Errorf("selected mismatch (-want +got):\n%s", diff)
	}
	if f.metrics.opened[KindSelection] != 1 {
		t.Errorf("expected opened selection metric 1, got %d", f.metrics.opened[KindSelection])
	}
}

func TestOpenSelection_EmptyCatalog(t *testing.T) {
	store := repository.NewMemoryStore()
	f := newFixtureWith(t, store, store, store)

	_, err := f.svc.OpenSelection(context.Background(), "u1", "Alice")
	apiErr := assertAPIError(t, err, model.ErrCodeNoPerksAvailable)
	if apiErr.Message != "[Info] No perks available at the moment" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestOpenSelection_StorageFault(t *testing.T) {
	store := repository.NewMemoryStore()
	f := newFixtureWith(t, store, failingCatalog{store}, store)

	_, err := f.svc.OpenSelection(context.Background(), "u1", "Alice")
	apiErr := assertAPIError(t, err, model.ErrCodeStorageFault)
	if apiErr.Message != "An error occurred while fetching perks." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

// --- 選択と送信 ---

func TestSubmit_SavesThenUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prompt, err := f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}
	id := prompt.Session.ID

	sel, err := f.svc.SelectPage(ctx, id, "u1", 0, []string{"Quick Draw"})
	if err != nil {
		t.Fatalf("SelectPage returned error: %v", err)
	}
	if sel.Notice.Message != "Perks selected, click Submit when done." || sel.Notice.DeleteAfter != model.NoticeShort {
		t.Errorf("unexpected select notice: %+v", sel.Notice)
	}

	res, err := f.svc.Submit(ctx, id, "u1")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Notice.Message != "Your perks have been saved!" {
		t.Errorf("expected saved notice, got %q", res.Notice.Message)
	}
	if res.Session.State != "committed" {
		t.Errorf("expected committed state, got %s", res.Session.State)
	}

	got, _ := f.store.GetUserPerks(ctx, "u1")
	if diff := cmp.Diff([]string{"Quick Draw"}, got); diff != "" {
		t.Errorf("stored perks mismatch (-want +got):\n%s", diff)
	}

	// 2回目は更新扱い
	prompt, err = f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}
	if _, err := f.svc.SelectPage(ctx, prompt.Session.ID, "u1", 0, []string{"Quick Draw", "Iron Skin"}); err != nil {
		t.Fatalf("SelectPage returned error: %v", err)
	}
	res, err = f.svc.Submit(ctx, prompt.Session.ID, "u1")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Notice.Message != "Your perks have been updated!" {
		t.Errorf("expected updated notice, got %q", res.Notice.Message)
	}

	got, _ = f.store.GetUserPerks(ctx, "u1")
	if diff := cmp.Diff([]string{"Quick Draw", "Iron Skin"}, got); diff != "" {
		t.Errorf("stored perks mismatch (-want +got):\n%s", diff)
	}
	if f.metrics.closed["selection/committed"] != 2 {
		t.Errorf("expected 2 committed sessions, got %d", f.metrics.closed["selection/committed"])
	}
}

func TestSubmit_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prompt, err := f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}
	id := prompt.Session.ID

	_, err = f.svc.Submit(ctx, id, "u1")
	apiErr := assertAPIError(t, err, model.ErrCodeValidationFailed)
	if apiErr.Message != "[Error] You must select at least one perk." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}

	if _, err := f.svc.SelectPage(ctx, id, "u1", 0, []string{"Quick Draw", "Iron Skin"}); err != nil {
		t.Fatalf("SelectPage returned error: %v", err)
	}
	if _, err := f.svc.SelectPage(ctx, id, "u1", 1, []string{"Eagle Eye"}); err != nil {
		t.Fatalf("SelectPage returned error: %v", err)
	}
	_, err = f.svc.Submit(ctx, id, "u1")
	apiErr = assertAPIError(t, err, model.ErrCodeValidationFailed)
	if apiErr.Message != "[Error] You can select up to 2 perks." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}

	// 却下後もセッションは開いたまま
	if _, err := f.svc.SelectPage(ctx, id, "u1", 1, nil); err != nil {
		t.Fatalf("SelectPage after rejection returned error: %v", err)
	}
	if _, err := f.svc.Submit(ctx, id, "u1"); err != nil {
		t.Fatalf("Submit after fixing selection returned error: %v", err)
	}

	if diff := cmp.Diff(map[string]int{"empty": 1, "too_many": 1}, f.metrics.rejected); diff != "" {
		t.Errorf("rejected metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_StorageFaultKeepsSessionOpen(t *testing.T) {
	store := repository.NewMemoryStore()
	if err := store.ReplaceCatalog(context.Background(), testCatalog); err != nil {
		t.Fatalf("ReplaceCatalog returned error: %v", err)
	}
	failing := &failingAssignments{AssignmentRepository: store, replaceErr: errors.New("disk full")}
	f := newFixtureWith(t, store, store, failing)
	ctx := context.Background()

	prompt, err := f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}
	id := prompt.Session.ID
	if _, err := f.svc.SelectPage(ctx, id, "u1", 0, []string{"Quick Draw"}); err != nil {
		t.Fatalf("SelectPage returned error: %v", err)
	}

	_, err = f.svc.Submit(ctx, id, "u1")
	apiErr := assertAPIError(t, err, model.ErrCodeStorageFault)
	if apiErr.Message != "An error occurred while saving your perks." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}

	has, _ := store.UserHasAssignments(ctx, "u1")
	if has {
		t.Error("expected no assignments after failed save")
	}

	failing.replaceErr = nil
	res, err := f.svc.Submit(ctx, id, "u1")
	if err != nil {
		t.Fatalf("retry Submit returned error: %v", err)
	}
	if res.Notice.Message != "Your perks have been saved!" {
		t.Errorf("unexpected notice: %q", res.Notice.Message)
	}
}

func TestSelection_OtherUserRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prompt, err := f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}
	id := prompt.Session.ID

	_, err = f.svc.SelectPage(ctx, id, "u2", 0, []string{"Quick Draw"})
	apiErr := assertAPIError(t, err, model.ErrCodeNotAuthorized)
	if apiErr.Message != "This interaction is not for you." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}

	_, err = f.svc.Submit(ctx, id, "u2")
	assertAPIError(t, err, model.ErrCodeNotAuthorized)
	_, err = f.svc.Cancel(ctx, id, "u2")
	assertAPIError(t, err, model.ErrCodeNotAuthorized)

	view, err := f.svc.SelectPage(ctx, id, "u1", 0, nil)
	if err != nil {
		t.Fatalf("owner SelectPage returned error: %v", err)
	}
	if view.Session.State != "open" {
		t.Errorf("expected open state, got %s", view.Session.State)
	}
}

func TestSelection_UnknownOptionAndPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prompt, err := f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}
	id := prompt.Session.ID

	_, err = f.svc.SelectPage(ctx, id, "u1", 0, []string{"Eagle Eye"})
	apiErr := assertAPIError(t, err, model.ErrCodeValidationFailed)
	if apiErr.Message != `[Error] "Eagle Eye" is not an option on this page.` {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}

	_, err = f.svc.SelectPage(ctx, id, "u1", 9, []string{"Quick Draw"})
	assertAPIError(t, err, model.ErrCodeInvalidRequest)
}

func TestCancel_LeavesStoredPerks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.store.ReplaceUserPerks(ctx, "u1", "Alice", []string{"Field Medic"}); err != nil {
		t.Fatalf("ReplaceUserPerks returned error: %v", err)
	}
	prompt, err := f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}
	id := prompt.Session.ID
	if _, err := f.svc.SelectPage(ctx, id, "u1", 2, nil); err != nil {
		t.Fatalf("SelectPage returned error: %v", err)
	}

	res, err := f.svc.Cancel(ctx, id, "u1")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if res.Notice.Message != "Perk selection cancelled." {
		t.Errorf("unexpected notice: %q", res.Notice.Message)
	}

	got, _ := f.store.GetUserPerks(ctx, "u1")
	if diff := cmp.Diff([]string{"Field Medic"}, got); diff != "" {
		t.Errorf("stored perks mismatch (-want +got):\n%s", diff)
	}

	_, err = f.svc.Submit(ctx, id, "u1")
	assertAPIError(t, err, model.ErrCodeSessionClosed)
}

func TestSelection_Timeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prompt, err := f.svc.OpenSelection(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("OpenSelection returned error: %v", err)
	}
	id := prompt.Session.ID
	if _, err := f.svc.SelectPage(ctx, id, "u1", 0, []string{"Quick Draw"}); err != nil {
		t.Fatalf("SelectPage returned error: %v", err)
	}

	f.clock = t0.Add(10 * time.Minute)
	if expired := f.svc.selections.Sweep(f.clock); len(expired) != 1 {
		t.Fatalf("expected 1 expired session, got %d", len(expired))
	}
	if f.metrics.closed["selection/timed_out"] != 1 {
		t.Errorf("expected timed_out metric 1, got %d", f.metrics.closed["selection/timed_out"])
	}

	_, err = f.svc.Submit(ctx, id, "u1")
	assertAPIError(t, err, model.ErrCodeSessionExpired)

	has, _ := f.store.UserHasAssignments(ctx, "u1")
	if has {
		t.Error("timed out session must not persist anything")
	}

	// 猶予経過後は登録簿から消える
	f.clock = f.clock.Add(time.Minute)
	f.svc.selections.Sweep(f.clock)
	_, err = f.svc.Submit(ctx, id, "u1")
	assertAPIError(t, err, model.ErrCodeSessionNotFound)
}

func TestSelection_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SelectPage(context.Background(), "missing", "u1", 0, nil)
	assertAPIError(t, err, model.ErrCodeSessionNotFound)
}

// --- 検索 ---

func seedAssignments(t *testing.T, store *repository.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	seed := []struct {
		id, name string
		perks    []string
	}{
		{"u1", "Alice", []string{"Quick Draw", "Iron Skin"}},
		{"u2", "Bob", []string{"Quick Hands"}},
		{"u3", "Carol", []string{"Eagle Eye", "Quick Draw"}},
	}
	for _, s := range seed {
		if err := store.ReplaceUserPerks(ctx, s.id, s.name, s.perks); err != nil {
			t.Fatalf("ReplaceUserPerks(%s) returned error: %v", s.id, err)
		}
	}
}

func openSearch(t *testing.T, f *fixture, actorID string) string {
	t.Helper()

	prompt, err := f.svc.OpenSearch(context.Background(), actorID)
	if err != nil {
		t.Fatalf("OpenSearch returned error: %v", err)
	}
	return prompt.Session.ID
}

func TestOpenSearch_OffersDistinctOptions(t *testing.T) {
	f := newFixture(t)

	prompt, err := f.svc.OpenSearch(context.Background(), "u1")
	if err != nil {
		t.Fatalf("OpenSearch returned error: %v", err)
	}
	if prompt.Prompt != "Select a search method and enter the required information:" {
		t.Errorf("unexpected prompt: %q", prompt.Prompt)
	}
	if diff := cmp.Diff([]string{"Combat", "Defense", "Support"}, prompt.Session.Types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Engineer", "Gunner", "Medic", "Sniper", "Tank"}, prompt.Session.Specializations); diff != "" {
		t.Errorf("specializations mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenSearch_StorageFault(t *testing.T) {
	store := repository.NewMemoryStore()
	f := newFixtureWith(t, store, failingCatalog{store}, store)

	_, err := f.svc.OpenSearch(context.Background(), "u1")
	apiErr := assertAPIError(t, err, model.ErrCodeStorageFault)
	if apiErr.Message != "An error occurred while setting up the search." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestSearchByType(t *testing.T) {
	f := newFixture(t)
	seedAssignments(t, f.store)
	ctx := context.Background()
	id := openSearch(t, f, "u1")

	res, err := f.svc.SearchByType(ctx, id, "u1", "Combat")
	if err != nil {
		t.Fatalf("SearchByType returned error: %v", err)
	}
	if res.Title != "Users with perks of type 'Combat'" {
		t.Errorf("unexpected title: %q", res.Title)
	}
	want := model.UserPerks{
		"Alice": {"Quick Draw"},
		"Carol": {"Quick Draw", "Eagle Eye"},
	}
	if diff := cmp.Diff(want, res.Users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}

	_, err = f.svc.SearchByType(ctx, id, "u1", "Stealth")
	assertAPIError(t, err, model.ErrCodeValidationFailed)
}

func TestSearchBySpecialization_Empty(t *testing.T) {
	f := newFixture(t)
	seedAssignments(t, f.store)
	id := openSearch(t, f, "u1")

	res, err := f.svc.SearchBySpecialization(context.Background(), id, "u1", "Medic")
	if err != nil {
		t.Fatalf("SearchBySpecialization returned error: %v", err)
	}
	if res.Notice == nil || res.Notice.Message != "No users found with perks of specialization 'Medic'." {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Users) != 0 {
		t.Errorf("expected no users, got %v", res.Users)
	}
}

func TestSearchByName(t *testing.T) {
	f := newFixture(t)
	seedAssignments(t, f.store)
	ctx := context.Background()
	id := openSearch(t, f, "u1")

	res, err := f.svc.SearchByName(ctx, id, "u1", "  quick ")
	if err != nil {
		t.Fatalf("SearchByName returned error: %v", err)
	}
	if res.Title != "Users with perks 'quick'" {
		t.Errorf("unexpected title: %q", res.Title)
	}
	want := []model.PerkHolders{
		{PerkName: "Quick Draw", Users: []string{"Alice", "Carol"}},
		{PerkName: "Quick Hands", Users: []string{"Bob"}},
	}
	if diff := cmp.Diff(want, res.Perks, cmpIgnorePerkID()); diff != "" {
		t.Errorf("perks mismatch (-want +got):\n%s", diff)
	}

	res, err = f.svc.SearchByName(ctx, id, "u1", "nothing")
	if err != nil {
		t.Fatalf("SearchByName returned error: %v", err)
	}
	if res.Notice == nil || res.Notice.Message != "No users found with perk matching 'nothing'." {
		t.Errorf("unexpected result: %+v", res)
	}

	_, err = f.svc.SearchByName(ctx, id, "u1", "   ")
	assertAPIError(t, err, model.ErrCodeInvalidRequest)
}

func TestSearchAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := openSearch(t, f, "u1")

	res, err := f.svc.SearchAll(ctx, id, "u1")
	if err != nil {
		t.Fatalf("SearchAll returned error: %v", err)
	}
	if res.Notice == nil || res.Notice.Message != "No users found with perks." {
		t.Errorf("unexpected empty result: %+v", res)
	}

	seedAssignments(t, f.store)
	res, err = f.svc.SearchAll(ctx, id, "u1")
	if err != nil {
		t.Fatalf("SearchAll returned error: %v", err)
	}
	if res.Title != "All users with their perks" {
		t.Errorf("unexpected title: %q", res.Title)
	}
	if len(res.Users) != 3 {
		t.Errorf("expected 3 users, got %d", len(res.Users))
	}
}

func TestSearch_OwnerAndExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := openSearch(t, f, "u1")

	_, err := f.svc.SearchAll(ctx, id, "u2")
	assertAPIError(t, err, model.ErrCodeNotAuthorized)

	f.clock = t0.Add(10 * time.Minute)
	_, err = f.svc.SearchAll(ctx, id, "u1")
	assertAPIError(t, err, model.ErrCodeSessionExpired)
}

// --- クリアと参照 ---

func TestClearPerks(t *testing.T) {
	f := newFixture(t)
	seedAssignments(t, f.store)
	ctx := context.Background()

	notice, err := f.svc.ClearPerks(ctx, "u1")
	if err != nil {
		t.Fatalf("ClearPerks returned error: %v", err)
	}
	if notice.Message != "Your perks have been cleared!" {
		t.Errorf("unexpected notice: %q", notice.Message)
	}

	notice, err = f.svc.ClearPerks(ctx, "u1")
	if err != nil {
		t.Fatalf("second ClearPerks returned error: %v", err)
	}
	if notice.Message != "You have no perks to clear." {
		t.Errorf("unexpected notice: %q", notice.Message)
	}

	got, _ := f.store.GetUserPerks(ctx, "u2")
	if diff := cmp.Diff([]string{"Quick Hands"}, got); diff != "" {
		t.Errorf("other user's perks must be untouched (-want +got):\n%s", diff)
	}
}

func TestClearPerks_StorageFault(t *testing.T) {
	store := repository.NewMemoryStore()
	failing := &failingAssignments{AssignmentRepository: store, hasErr: errors.New("timeout")}
	f := newFixtureWith(t, store, store, failing)

	_, err := f.svc.ClearPerks(context.Background(), "u1")
	apiErr := assertAPIError(t, err, model.ErrCodeStorageFault)
	if apiErr.Message != "An error occurred while clearing your perks." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestPerkInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	perks, err := f.svc.ListPerks(ctx)
	if err != nil {
		t.Fatalf("ListPerks returned error: %v", err)
	}
	if len(perks) != len(testCatalog) {
		t.Fatalf("expected %d perks, got %d", len(testCatalog), len(perks))
	}

	perk, err := f.svc.PerkInfo(ctx, perks[1].ID)
	if err != nil {
		t.Fatalf("PerkInfo returned error: %v", err)
	}
	if perk.Name != "Iron Skin" || perk.SpecializationEffects != "Less damage" {
		t.Errorf("unexpected perk: %+v", perk)
	}

	_, err = f.svc.PerkInfo(ctx, 9999)
	apiErr := assertAPIError(t, err, model.ErrCodePerkNotFound)
	if apiErr.Message != "Perk information not found." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestListPerks_StorageFault(t *testing.T) {
	store := repository.NewMemoryStore()
	f := newFixtureWith(t, store, failingCatalog{store}, store)

	_, err := f.svc.ListPerks(context.Background())
	assertAPIError(t, err, model.ErrCodeStorageFault)

	_, err = f.svc.PerkInfo(context.Background(), 1)
	assertAPIError(t, err, model.ErrCodeStorageFault)
}
