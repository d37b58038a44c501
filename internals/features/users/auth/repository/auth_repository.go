package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	authModel "campusmap_backend/internals/features/users/auth/model"
)

/* ====================== ADMIN ====================== */

func FindAdminByEmail(ctx context.Context, db *gorm.DB, email string) (*authModel.AdminModel, error) {
	var a authModel.AdminModel
	if err := db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func FindAdminByID(ctx context.Context, db *gorm.DB, id uint) (*authModel.AdminModel, error) {
	var a authModel.AdminModel
	if err := db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func CreateAdmin(ctx context.Context, db *gorm.DB, a *authModel.AdminModel) error {
	return db.WithContext(ctx).Create(a).Error
}

func UpdateAdminPassword(ctx context.Context, db *gorm.DB, id uint, hash string) error {
	return db.WithContext(ctx).Model(&authModel.AdminModel{}).Where("id = ?", id).Update("password", hash).Error
}

/* ====================== BLACKLIST TOKEN ====================== */

// BlacklistToken is idempotent: a token logged out twice keeps one row.
func BlacklistToken(ctx context.Context, db *gorm.DB, token string, expiresAt time.Time) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(&authModel.TokenBlacklist{Token: token, ExpiredAt: expiresAt.UTC()}).Error
}

func IsBlacklisted(ctx context.Context, db *gorm.DB, token string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&authModel.TokenBlacklist{}).Where("token = ?", token).Count(&n).Error
	return n > 0, err
}

// CleanupExpiredBlacklist drops tokens that expired before now; they can no
// longer authenticate anyway.
func CleanupExpiredBlacklist(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expired_at <= ?", now.UTC()).Delete(&authModel.TokenBlacklist{})
	return res.RowsAffected, res.Error
}
