package site

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, s *Site) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Site, error) {
	var s Site
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) List(ctx context.Context) ([]Site, error) {
	var sites []Site
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (r *Repo) Update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&Site{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Site{}, "id = ?", id).Error
}
