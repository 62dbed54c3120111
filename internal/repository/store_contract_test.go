package repository

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/perkbot/internal/model"
)

// storeFactory はテストごとに空のストアを返す。
type storeFactory func(t *testing.T) (CatalogRepository, AssignmentRepository)

func perkInput(name, typ, spec, effects string) model.PerkInput {
	return model.PerkInput{Name: name, Type: typ, Specialization: spec, SpecializationEffects: effects}
}

var sampleCatalog = []model.PerkInput{
	perkInput("Stealth", "Combat", "Rogue", "+10% evasion"),
	perkInput("Armor", "Combat", "Tank", "+20% defense"),
	perkInput("Lockpick", "Utility", "Rogue", "Open locked doors"),
}

// runStoreContract はCatalogRepositoryとAssignmentRepositoryの共通の振る舞いを検証する。
// メモリ実装とPostgreSQL実装の両方に対して実行する。
func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("カタログ置き換え後に名前一覧が取り込み順で返る", func(t *testing.T) {
		catalog, _ := newStore(t)
		if err := catalog.ReplaceCatalog(ctx, []model.PerkInput{perkInput("Stealth", "Combat", "Rogue", "+10% evasion")}); err != nil {
			t.Fatalf("ReplaceCatalog() error = %v", err)
		}
		names, err := catalog.ListPerkNames(ctx)
		if err != nil {
			t.Fatalf("ListPerkNames() error = %v", err)
		}
		if diff := cmp.Diff([]string{"Stealth"}, names); diff != "" {
			t.Errorf("ListPerkNames() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("同名の入力は後勝ちで1件になる", func(t *testing.T) {
		catalog, _ := newStore(t)
		err := catalog.ReplaceCatalog(ctx, []model.PerkInput{
			perkInput("Stealth", "Combat", "Rogue", "old"),
			perkInput("Armor", "Combat", "Tank", "+20% defense"),
			perkInput("Stealth", "Combat", "Rogue", "new"),
		})
		if err != nil {
			t.Fatalf("ReplaceCatalog() error = %v", err)
		}
		names, _ := catalog.ListPerkNames(ctx)
		if diff := cmp.Diff([]string{"Stealth", "Armor"}, names); diff != "" {
			t.Errorf("ListPerkNames() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("名前が残るパークはIDを維持し、消えた名前は削除される", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)
		before := perkIDByName(t, catalog, assignments, "Armor")

		mustReplaceCatalog(t, catalog, []model.PerkInput{
			perkInput("Armor", "Combat", "Tank", "+25% defense"),
			perkInput("Dash", "Movement", "Scout", "+1 move"),
		})
		after := perkIDByName(t, catalog, assignments, "Armor")
		if before != after {
			t.Errorf("Armor id changed across refresh: %d -> %d", before, after)
		}

		perk, err := catalog.FindPerkByID(ctx, after)
		if err != nil {
			t.Fatalf("FindPerkByID() error = %v", err)
		}
		if perk == nil || perk.SpecializationEffects != "+25% defense" {
			t.Errorf("FindPerkByID() = %+v, want refreshed effects", perk)
		}

		names, _ := catalog.ListPerkNames(ctx)
		if diff := cmp.Diff([]string{"Armor", "Dash"}, names); diff != "" {
			t.Errorf("ListPerkNames() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("パーク一覧は全列を取り込み順で返す", func(t *testing.T) {
		catalog, _ := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)

		perks, err := catalog.ListPerks(ctx)
		if err != nil {
			t.Fatalf("ListPerks() error = %v", err)
		}
		if len(perks) != len(sampleCatalog) {
			t.Fatalf("len(perks) = %d, want %d", len(perks), len(sampleCatalog))
		}
		for i, p := range perks {
			in := sampleCatalog[i]
			if p.Name != in.Name || p.Type != in.Type || p.Specialization != in.Specialization || p.SpecializationEffects != in.SpecializationEffects {
				t.Errorf("perks[%d] = %+v, want %+v", i, p, in)
			}
			if p.ID == 0 {
				t.Errorf("perks[%d].ID should be assigned", i)
			}
		}
	})

	t.Run("存在しないIDはnilを返す", func(t *testing.T) {
		catalog, _ := newStore(t)
		perk, err := catalog.FindPerkByID(ctx, 987654)
		if err != nil {
			t.Fatalf("FindPerkByID() error = %v", err)
		}
		if perk != nil {
			t.Errorf("FindPerkByID() = %+v, want nil", perk)
		}
	})

	t.Run("タイプと専門は重複なしで返る", func(t *testing.T) {
		catalog, _ := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)

		types, err := catalog.ListDistinctTypes(ctx)
		if err != nil {
			t.Fatalf("ListDistinctTypes() error = %v", err)
		}
		if diff := cmp.Diff([]string{"Combat", "Utility"}, types); diff != "" {
			t.Errorf("ListDistinctTypes() mismatch (-want +got):\n%s", diff)
		}

		specs, err := catalog.ListDistinctSpecializations(ctx)
		if err != nil {
			t.Fatalf("ListDistinctSpecializations() error = %v", err)
		}
		if diff := cmp.Diff([]string{"Rogue", "Tank"}, specs); diff != "" {
			t.Errorf("ListDistinctSpecializations() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("新規ユーザーの登録後に保持パークと存在確認が返る", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)

		if err := assignments.ReplaceUserPerks(ctx, "u1", "Alice", []string{"Stealth"}); err != nil {
			t.Fatalf("ReplaceUserPerks() error = %v", err)
		}
		assertUserPerks(t, assignments, "u1", []string{"Stealth"})

		has, err := assignments.UserHasAssignments(ctx, "u1")
		if err != nil {
			t.Fatalf("UserHasAssignments() error = %v", err)
		}
		if !has {
			t.Error("UserHasAssignments() = false, want true")
		}
	})

	t.Run("置き換えで古い紐付けが消える", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)

		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Stealth", "Armor"})
		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Armor"})
		assertUserPerks(t, assignments, "u1", []string{"Armor"})
	})

	t.Run("同じ入力での置き換えは冪等", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)

		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Lockpick", "Stealth"})
		first, _ := assignments.QueryAll(ctx)
		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Lockpick", "Stealth"})
		second, _ := assignments.QueryAll(ctx)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("state changed on repeated replace (-first +second):\n%s", diff)
		}
		assertUserPerks(t, assignments, "u1", []string{"Stealth", "Lockpick"})
	})

	t.Run("カタログにない名前は黙って読み飛ばす", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)

		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Stealth", "Ghost"})
		assertUserPerks(t, assignments, "u1", []string{"Stealth"})
	})

	t.Run("紐付けのないユーザーのクリアはエラーにならない", func(t *testing.T) {
		_, assignments := newStore(t)
		if err := assignments.ClearUserPerks(ctx, "nobody"); err != nil {
			t.Fatalf("ClearUserPerks() error = %v", err)
		}
		has, err := assignments.UserHasAssignments(ctx, "nobody")
		if err != nil {
			t.Fatalf("UserHasAssignments() error = %v", err)
		}
		if has {
			t.Error("UserHasAssignments() = true, want false")
		}
	})

	t.Run("クリアで全紐付けが消える", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)
		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Stealth", "Armor"})

		if err := assignments.ClearUserPerks(ctx, "u1"); err != nil {
			t.Fatalf("ClearUserPerks() error = %v", err)
		}
		assertUserPerks(t, assignments, "u1", nil)
	})

	t.Run("カタログから消えたパークは読み取り時に除外される", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)
		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Stealth", "Armor"})

		mustReplaceCatalog(t, catalog, []model.PerkInput{perkInput("Armor", "Combat", "Tank", "+20% defense")})
		assertUserPerks(t, assignments, "u1", []string{"Armor"})

		all, err := assignments.QueryAll(ctx)
		if err != nil {
			t.Fatalf("QueryAll() error = %v", err)
		}
		if diff := cmp.Diff(model.UserPerks{"Alice": {"Armor"}}, all); diff != "" {
			t.Errorf("QueryAll() mismatch (-want +got):\n%s", diff)
		}

		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Stealth", "Armor"})
		assertUserPerks(t, assignments, "u1", []string{"Armor"})
	})

	t.Run("パーク名の部分一致は大文字小文字を区別しない", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)
		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Stealth", "Lockpick"})
		mustReplaceUserPerks(t, assignments, "u2", "Bob", []string{"Stealth"})

		got, err := assignments.QueryByPerkNameSubstring(ctx, "STEAL")
		if err != nil {
			t.Fatalf("QueryByPerkNameSubstring() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len(results) = %d, want 1", len(got))
		}
		if got[0].PerkName != "Stealth" {
			t.Errorf("PerkName = %q, want Stealth", got[0].PerkName)
		}
		if diff := cmp.Diff([]string{"Alice", "Bob"}, got[0].Users); diff != "" {
			t.Errorf("Users mismatch (-want +got):\n%s", diff)
		}

		none, err := assignments.QueryByPerkNameSubstring(ctx, "100%")
		if err != nil {
			t.Fatalf("QueryByPerkNameSubstring() error = %v", err)
		}
		if len(none) != 0 {
			t.Errorf("wildcard characters must match literally, got %+v", none)
		}
	})

	t.Run("タイプと専門で保持ユーザーを引ける", func(t *testing.T) {
		catalog, assignments := newStore(t)
		mustReplaceCatalog(t, catalog, sampleCatalog)
		mustReplaceUserPerks(t, assignments, "u1", "Alice", []string{"Stealth", "Lockpick"})
		mustReplaceUserPerks(t, assignments, "u2", "Bob", []string{"Armor"})

		byType, err := assignments.QueryByType(ctx, "Combat")
		if err != nil {
			t.Fatalf("QueryByType() error = %v", err)
		}
		want := model.UserPerks{"Alice": {"Stealth"}, "Bob": {"Armor"}}
		if diff := cmp.Diff(want, byType); diff != "" {
			t.Errorf("QueryByType() mismatch (-want +got):\n%s", diff)
		}

		bySpec, err := assignments.QueryBySpecialization(ctx, "Rogue")
		if err != nil {
			t.Fatalf("QueryBySpecialization() error = %v", err)
		}
		if diff := cmp.Diff(model.UserPerks{"Alice": {"Stealth", "Lockpick"}}, bySpec); diff != "" {
			t.Errorf("QueryBySpecialization() mismatch (-want +got):\n%s", diff)
		}

		empty, err := assignments.QueryByType(ctx, "Magic")
		if err != nil {
			t.Fatalf("QueryByType() error = %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("QueryByType(Magic) = %v, want empty", empty)
		}
	})
}

func mustReplaceCatalog(t *testing.T, catalog CatalogRepository, perks []model.PerkInput) {
	t.Helper()
	if err := catalog.ReplaceCatalog(context.Background(), perks); err != nil {
		t.Fatalf("ReplaceCatalog() error = %v", err)
	}
}

func mustReplaceUserPerks(t *testing.T, assignments AssignmentRepository, userID, userName string, names []string) {
	t.Helper()
	if err := assignments.ReplaceUserPerks(context.Background(), userID, userName, names); err != nil {
		t.Fatalf("ReplaceUserPerks() error = %v", err)
	}
}

func assertUserPerks(t *testing.T, assignments AssignmentRepository, userID string, want []string) {
	t.Helper()
	got, err := assignments.GetUserPerks(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetUserPerks() error = %v", err)
	}
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetUserPerks(%q) mismatch (-want +got):\n%s", userID, diff)
	}
}

// perkIDByName は部分一致検索を経由せずにIDを引くため、一時ユーザーに紐付けて解決する。
func perkIDByName(t *testing.T, catalog CatalogRepository, assignments AssignmentRepository, name string) int64 {
	t.Helper()
	ctx := context.Background()
	mustReplaceUserPerks(t, assignments, "__probe", "__probe", []string{name})
	defer assignments.ClearUserPerks(ctx, "__probe")

	results, err := assignments.QueryByPerkNameSubstring(ctx, name)
	if err != nil {
		t.Fatalf("QueryByPerkNameSubstring() error = %v", err)
	}
	for _, r := range results {
		if r.PerkName == name {
			return r.PerkID
		}
	}
	t.Fatalf("perk %q not found", name)
	return 0
}
