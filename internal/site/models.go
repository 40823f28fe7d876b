package site

import "time"

// Site is one publishing target. AppPasswordB64 stores the WordPress
// application password base64-encoded at rest; the publish client decodes it
// when building the Basic auth header.
type Site struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	Name           string `gorm:"size:128;not null" json:"name"`
	URL            string `gorm:"size:512;not null" json:"url"`
	Username       string `gorm:"size:128;not null" json:"username"`
	AppPasswordB64 string `gorm:"size:512;not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Site) TableName() string { return "sites" }
