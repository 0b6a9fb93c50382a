package repository

import (
	"context"

	"veritas/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type profileRepository struct {
	db     *gorm.DB
	system string
}

// NewProfileRepository creates a profile repository backed by the users table.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db, system: db.Dialector.Name()}
}

// GetPublicProfiles resolves ids to public profiles. Unknown ids are absent
// from the result.
func (r *profileRepository) GetPublicProfiles(ctx context.Context, ids []string) (out map[string]models.PublicProfile, err error) {
	out = make(map[string]models.PublicProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, finish := instrument(ctx, r.system, "get_profiles", "users")
	defer func() { finish(err) }()

	var users []models.User
	if err = r.db.WithContext(ctx).
		Select("id", "username", "avatar").
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, storeErr(err)
	}
	for i := range users {
		out[users[i].ID] = users[i].Profile()
	}
	return out, nil
}

func (r *profileRepository) Upsert(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "name", "avatar", "bio"}),
	}).Create(user).Error
	return storeErr(err)
}
