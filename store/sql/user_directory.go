package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/uptrace/bun"
)

var ErrUserNotFound = errors.New("sqlstore: user not found")

// UserDirectory resolves donors against the member table. Members are matched
// by id or by the contact hash of their email address.
type UserDirectory struct {
	db *bun.DB
}

func NewUserDirectory(db *bun.DB) (*UserDirectory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &UserDirectory{db: db}, nil
}

// SaveUser creates or updates a member. The email hash is derived from the
// email.
func (d *UserDirectory) SaveUser(ctx context.Context, user core.UserInfo) (core.UserInfo, error) {
	if d == nil || d.db == nil {
		return core.UserInfo{}, fmt.Errorf("sqlstore: user directory is not configured")
	}
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)
	if user.Username == "" {
		return core.UserInfo{}, fmt.Errorf("sqlstore: username is required")
	}
	now := time.Now().UTC()
	record := &userRecord{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		EmailHash:     core.EmailHash(user.Email),
		DonatedAmount: user.DonatedAmount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if record.ID <= 0 {
		if _, err := d.db.NewInsert().Model(record).Returning("user_id").Exec(ctx); err != nil {
			return core.UserInfo{}, err
		}
		return record.toDomain(), nil
	}
	if _, err := d.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("user_email = EXCLUDED.user_email").
		Set("user_email_hash = EXCLUDED.user_email_hash").
		Set("donated_amount = EXCLUDED.donated_amount").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return core.UserInfo{}, err
	}
	return record.toDomain(), nil
}

func (d *UserDirectory) FindUserByID(ctx context.Context, userID int64) (core.UserInfo, bool, error) {
	if d == nil || d.db == nil {
		return core.UserInfo{}, false, fmt.Errorf("sqlstore: user directory is not configured")
	}
	if userID <= 0 {
		return core.UserInfo{}, false, nil
	}
	record := &userRecord{}
	err := d.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.UserInfo{}, false, nil
		}
		return core.UserInfo{}, false, err
	}
	return record.toDomain(), true, nil
}

func (d *UserDirectory) FindUserByEmail(ctx context.Context, email string) (core.UserInfo, bool, error) {
	if d == nil || d.db == nil {
		return core.UserInfo{}, false, fmt.Errorf("sqlstore: user directory is not configured")
	}
	hash := core.EmailHash(email)
	if hash == "" {
		return core.UserInfo{}, false, nil
	}
	record := &userRecord{}
	err := d.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_email_hash = ?", hash).
		OrderExpr("?TableAlias.user_id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.UserInfo{}, false, nil
		}
		return core.UserInfo{}, false, err
	}
	return record.toDomain(), true, nil
}

func (d *UserDirectory) UpdateDonatedAmount(ctx context.Context, userID int64, amount float64) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("sqlstore: user directory is not configured")
	}
	res, err := d.db.NewUpdate().
		Model((*userRecord)(nil)).
		Set("donated_amount = ?", amount).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	return nil
}

// AddUserToGroup adds the membership once and optionally makes the group the
// member's default.
func (d *UserDirectory) AddUserToGroup(ctx context.Context, groupID int64, userID int64, makeDefault bool) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("sqlstore: user directory is not configured")
	}
	if groupID <= 0 || userID <= 0 {
		return fmt.Errorf("sqlstore: group id and user id are required")
	}
	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*userRecord)(nil)).
			Where("?TableAlias.user_id = ?", userID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
		}
		membership := &userGroupRecord{
			GroupID:   groupID,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := tx.NewInsert().
			Model(membership).
			On("CONFLICT (group_id, user_id) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
		if !makeDefault {
			return nil
		}
		_, err = tx.NewUpdate().
			Model((*userRecord)(nil)).
			Set("group_id = ?", groupID).
			Set("updated_at = ?", time.Now().UTC()).
			Where("user_id = ?", userID).
			Exec(ctx)
		return err
	})
}

// GroupMembers lists the member ids of a group in ascending order.
func (d *UserDirectory) GroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	if d == nil || d.db == nil {
		return nil, fmt.Errorf("sqlstore: user directory is not configured")
	}
	var ids []int64
	err := d.db.NewSelect().
		Model((*userGroupRecord)(nil)).
		Column("user_id").
		Where("?TableAlias.group_id = ?", groupID).
		OrderExpr("?TableAlias.user_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DefaultGroup returns the default group id of a member.
func (d *UserDirectory) DefaultGroup(ctx context.Context, userID int64) (int64, error) {
	if d == nil || d.db == nil {
		return 0, fmt.Errorf("sqlstore: user directory is not configured")
	}
	record := &userRecord{}
	err := d.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
		}
		return 0, err
	}
	return record.DefaultGroupID, nil
}
