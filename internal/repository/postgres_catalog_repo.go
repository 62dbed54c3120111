package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/perkbot/internal/model"
)

// PostgresCatalogRepo はPostgreSQLを使用したパークカタログリポジトリ。
type PostgresCatalogRepo struct {
	db *sql.DB
}

// NewPostgresCatalogRepo はPostgresCatalogRepoを生成する。
func NewPostgresCatalogRepo(db *sql.DB) *PostgresCatalogRepo {
	return &PostgresCatalogRepo{db: db}
}

// ReplaceCatalog はカタログ全体を同一トランザクションで置き換える。
// 入力に含まれない名前のパークを削除し、残りは名前をキーにUPSERTする。
// 同名パークのIDは維持されるため、既存の紐付けは更新をまたいで有効なまま残る。
func (r *PostgresCatalogRepo) ReplaceCatalog(ctx context.Context, perks []model.PerkInput) error {
	perks = model.DedupePerkInputs(perks)

	names := make([]string, len(perks))
	for i, p := range perks {
		names[i] = p.Name
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM perks WHERE NOT (name = ANY($1))`,
		pq.Array(names),
	); err != nil {
		return fmt.Errorf("カタログから除外されたパークの削除に失敗しました: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO perks (name, type, specialization, specialization_effects, position)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET
		     type = EXCLUDED.type,
		     specialization = EXCLUDED.specialization,
		     specialization_effects = EXCLUDED.specialization_effects,
		     position = EXCLUDED.position`,
	)
	if err != nil {
		return fmt.Errorf("パーク挿入文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for i, p := range perks {
		if _, err := stmt.ExecContext(ctx, p.Name, p.Type, p.Specialization, p.SpecializationEffects, i); err != nil {
			return fmt.Errorf("パーク %q の保存に失敗しました: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListPerkNames は取り込み順にパーク名一覧を返す。
func (r *PostgresCatalogRepo) ListPerkNames(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT name FROM perks ORDER BY position ASC, id ASC`)
}

// ListPerks は取り込み順にパーク一覧を返す。
func (r *PostgresCatalogRepo) ListPerks(ctx context.Context) ([]model.Perk, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, specialization, specialization_effects
		 FROM perks ORDER BY position ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("パーク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var perks []model.Perk
	for rows.Next() {
		var p model.Perk
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Specialization, &p.SpecializationEffects); err != nil {
			return nil, fmt.Errorf("パーク行の読み取りに失敗しました: %w", err)
		}
		perks = append(perks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("パーク一覧の走査に失敗しました: %w", err)
	}
	return perks, nil
}

// FindPerkByID は指定IDのパークを取得する。見つからない場合はnilを返す。
func (r *PostgresCatalogRepo) FindPerkByID(ctx context.Context, id int64) (*model.Perk, error) {
	perk := &model.Perk{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, specialization, specialization_effects
		 FROM perks WHERE id = $1`,
		id,
	).Scan(&perk.ID, &perk.Name, &perk.Type, &perk.Specialization, &perk.SpecializationEffects)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("パークの取得に失敗しました: %w", err)
	}

	return perk, nil
}

// ListDistinctTypes はカタログに存在するタイプを重複なしで返す。
func (r *PostgresCatalogRepo) ListDistinctTypes(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT type FROM perks ORDER BY type ASC`)
}

// ListDistinctSpecializations はカタログに存在する専門を重複なしで返す。
func (r *PostgresCatalogRepo) ListDistinctSpecializations(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT specialization FROM perks ORDER BY specialization ASC`)
}

// queryStrings は1列の文字列結果を返すクエリを実行する。
func (r *PostgresCatalogRepo) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("カタログの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("カタログ行の読み取りに失敗しました: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カタログの走査に失敗しました: %w", err)
	}
	return out, nil
}

// compile-time interface check
var _ CatalogRepository = (*PostgresCatalogRepo)(nil)
