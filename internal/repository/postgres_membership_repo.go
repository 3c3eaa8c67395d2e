package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/labtrack/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用した研究室参加リポジトリ。
// アンケート回答と推奨値はJSONBで保存する。
type PostgresMembershipRepo struct {
	db *sql.DB
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db *sql.DB) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// CreateWithinCapacity は研究室行をFOR UPDATEでロックし、定員を確認してから参加情報を作成する。
func (r *PostgresMembershipRepo) CreateWithinCapacity(ctx context.Context, m *model.Membership) error {
	answers, err := json.Marshal(m.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode membership answers: %w", err)
	}
	recs, err := json.Marshal(m.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode membership recommendations: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var capacity, baseMembers int
	err = tx.QueryRowContext(ctx,
		`SELECT capacity, base_members FROM laboratories WHERE id = $1 FOR UPDATE`,
		m.LaboratoryID,
	).Scan(&capacity, &baseMembers)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLaboratoryNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock laboratory: %w", err)
	}

	var joined bool
	var members int
	err = tx.QueryRowContext(ctx,
		`SELECT count(*), COALESCE(bool_or(user_id = $2), false)
		 FROM memberships WHERE laboratory_id = $1`,
		m.LaboratoryID, m.UserID,
	).Scan(&members, &joined)
	if err != nil {
		return fmt.Errorf("failed to count memberships: %w", err)
	}
	if joined {
		return ErrAlreadyMember
	}
	if baseMembers+members >= capacity {
		return ErrLaboratoryFull
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memberships (id, user_id, laboratory_id, answers, recommendations, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.UserID, m.LaboratoryID, answers, recs, m.JoinedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete はユーザーの研究室参加を削除する。削除した場合はtrueを返す。
func (r *PostgresMembershipRepo) Delete(ctx context.Context, userID, laboratoryID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND laboratory_id = $2`,
		userID, laboratoryID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteByUserID はユーザーのすべての研究室参加を削除し、削除件数を返す。
func (r *PostgresMembershipRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memberships by user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ MembershipRepository = (*PostgresMembershipRepo)(nil)
