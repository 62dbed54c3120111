package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/perkbot/internal/model"
)

// likeEscaper はLIKEパターンのメタ文字をリテラルとして扱うためのエスケープ。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresAssignmentRepo はPostgreSQLを使用したユーザーパーク紐付けリポジトリ。
// user_perks.perk_idには外部キー制約を付けておらず、カタログから消えたパークへの
// 参照はJOINで除外される。
type PostgresAssignmentRepo struct {
	db *sql.DB
}

// NewPostgresAssignmentRepo はPostgresAssignmentRepoを生成する。
func NewPostgresAssignmentRepo(db *sql.DB) *PostgresAssignmentRepo {
	return &PostgresAssignmentRepo{db: db}
}

// GetUserPerks はユーザーが保持するパーク名をカタログ順で返す。
func (r *PostgresAssignmentRepo) GetUserPerks(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.name
		 FROM user_perks up
		 JOIN perks p ON p.id = up.perk_id
		 WHERE up.user_id = $1
		 ORDER BY p.position ASC, p.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザーのパーク取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ユーザーのパーク行の読み取りに失敗しました: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザーのパークの走査に失敗しました: %w", err)
	}
	return names, nil
}

// UserHasAssignments はユーザーが1件以上の紐付けを持つかを返す。
func (r *PostgresAssignmentRepo) UserHasAssignments(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_perks WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("紐付けの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ReplaceUserPerks はユーザーの紐付けを同一トランザクションで全削除・再作成する。
// パーク名は現在のカタログでIDに解決し、存在しない名前は読み飛ばす。
func (r *PostgresAssignmentRepo) ReplaceUserPerks(ctx context.Context, userID, userName string, perkNames []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_perks WHERE user_id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("既存の紐付けの削除に失敗しました: %w", err)
	}

	if len(perkNames) > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_perks (user_id, user_name, perk_id)
			 SELECT $1, $2, p.id FROM perks p WHERE p.name = ANY($3)
			 ON CONFLICT (user_id, perk_id) DO NOTHING`,
			userID, userName, pq.Array(perkNames),
		); err != nil {
			return fmt.Errorf("紐付けの作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ClearUserPerks はユーザーの紐付けを全削除する。
func (r *PostgresAssignmentRepo) ClearUserPerks(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_perks WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの紐付けの削除に失敗しました: %w", err)
	}
	return nil
}

// QueryByPerkNameSubstring はパーク名の部分一致でパークごとの保持ユーザーを返す。
func (r *PostgresAssignmentRepo) QueryByPerkNameSubstring(ctx context.Context, fragment string) ([]model.PerkHolders, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, up.user_name
		 FROM perks p
		 JOIN user_perks up ON up.perk_id = p.id
		 WHERE p.name ILIKE '%' || $1 || '%'
		 ORDER BY p.position ASC, p.id ASC, up.user_name ASC`,
		likeEscaper.Replace(fragment),
	)
	if err != nil {
		return nil, fmt.Errorf("パーク名による検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []model.PerkHolders
	for rows.Next() {
		var (
			perkID   int64
			perkName string
			userName string
		)
		if err := rows.Scan(&perkID, &perkName, &userName); err != nil {
			return nil, fmt.Errorf("検索結果の読み取りに失敗しました: %w", err)
		}
		if n := len(results); n > 0 && results[n-1].PerkID == perkID {
			results[n-1].Users = append(results[n-1].Users, userName)
			continue
		}
		results = append(results, model.PerkHolders{
			PerkID:   perkID,
			PerkName: perkName,
			Users:    []string{userName},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("検索結果の走査に失敗しました: %w", err)
	}
	return results, nil
}

// QueryByType は指定タイプのパークを保持するユーザーごとのパーク名を返す。
func (r *PostgresAssignmentRepo) QueryByType(ctx context.Context, perkType string) (model.UserPerks, error) {
	return r.queryUserPerks(ctx, `WHERE p.type = $1`, perkType)
}

// QueryBySpecialization は指定専門のパークを保持するユーザーごとのパーク名を返す。
func (r *PostgresAssignmentRepo) QueryBySpecialization(ctx context.Context, specialization string) (model.UserPerks, error) {
	return r.queryUserPerks(ctx, `WHERE p.specialization = $1`, specialization)
}

// QueryAll は全ユーザーの保持パーク名を返す。
func (r *PostgresAssignmentRepo) QueryAll(ctx context.Context) (model.UserPerks, error) {
	return r.queryUserPerks(ctx, ``)
}

// queryUserPerks はuser_perksとperksをJOINし、ユーザー表示名ごとにパーク名をまとめる。
// whereには固定のSQL断片のみを渡すこと。
func (r *PostgresAssignmentRepo) queryUserPerks(ctx context.Context, where string, args ...any) (model.UserPerks, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT up.user_name, p.name
		 FROM user_perks up
		 JOIN perks p ON p.id = up.perk_id
		 `+where+`
		 ORDER BY up.user_name ASC, p.position ASC, p.id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザーごとのパーク取得に失敗しました: %w", err)
	}
	defer rows.Close()

	result := model.UserPerks{}
	for rows.Next() {
		var userName, perkName string
		if err := rows.Scan(&userName, &perkName); err != nil {
			return nil, fmt.Errorf("ユーザーごとのパーク行の読み取りに失敗しました: %w", err)
		}
		result[userName] = append(result[userName], perkName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザーごとのパークの走査に失敗しました: %w", err)
	}
	return result, nil
}

// compile-time interface check
var _ AssignmentRepository = (*PostgresAssignmentRepo)(nil)
