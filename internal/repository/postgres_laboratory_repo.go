package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/labtrack/internal/model"
)

// PostgresLaboratoryRepo はPostgreSQLを使用した研究室リポジトリ。
// 参加者数はbase_membersとmembershipsの件数の合計で算出する。
type PostgresLaboratoryRepo struct {
	db *sql.DB
}

// NewPostgresLaboratoryRepo はPostgresLaboratoryRepoを生成する。
func NewPostgresLaboratoryRepo(db *sql.DB) *PostgresLaboratoryRepo {
	return &PostgresLaboratoryRepo{db: db}
}

// ListWithMembership は研究室一覧を参加状態付きで返す。名前順。
func (r *PostgresLaboratoryRepo) ListWithMembership(ctx context.Context, userID, query string) ([]model.LaboratoryWithMembership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.name, l.description, l.location, l.capacity,
		        l.base_members + (SELECT count(*) FROM memberships m WHERE m.laboratory_id = l.id),
		        EXISTS (SELECT 1 FROM memberships m WHERE m.laboratory_id = l.id AND m.user_id = NULLIF($1, '')::uuid),
		        l.created_at
		 FROM laboratories l
		 WHERE $2 = ''
		    OR l.name ILIKE $3 ESCAPE '\'
		    OR l.description ILIKE $3 ESCAPE '\'
		    OR l.location ILIKE $3 ESCAPE '\'
		 ORDER BY l.name ASC`,
		userID, query, likePattern(query),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list laboratories: %w", err)
	}
	defer rows.Close()

	var labs []model.LaboratoryWithMembership
	for rows.Next() {
		var lab model.LaboratoryWithMembership
		if err := rows.Scan(
			&lab.ID, &lab.Name, &lab.Description, &lab.Location, &lab.Capacity,
			&lab.CurrentMembers, &lab.IsJoined, &lab.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan laboratory: %w", err)
		}
		labs = append(labs, lab)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate laboratories: %w", err)
	}

	return labs, nil
}

// FindByID は指定IDの研究室を取得する。見つからない場合はnilを返す。
func (r *PostgresLaboratoryRepo) FindByID(ctx context.Context, id string) (*model.Laboratory, error) {
	lab := &model.Laboratory{}
	err := r.db.QueryRowContext(ctx,
		`SELECT l.id, l.name, l.description, l.location, l.capacity,
		        l.base_members + (SELECT count(*) FROM memberships m WHERE m.laboratory_id = l.id),
		        l.created_at
		 FROM laboratories l
		 WHERE l.id = $1`,
		id,
	).Scan(&lab.ID, &lab.Name, &lab.Description, &lab.Location, &lab.Capacity, &lab.CurrentMembers, &lab.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find laboratory: %w", err)
	}

	return lab, nil
}

// likePattern はqueryをILIKE用の部分一致パターンに変換する。
// %と_はエスケープしてリテラルとして扱う。
func likePattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	return "%" + escaped + "%"
}

// compile-time interface check
var _ LaboratoryRepository = (*PostgresLaboratoryRepo)(nil)
