package db

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `gorm:"index" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserSession struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

// StravaLink associates a club member with a Strava athlete and holds the
// OAuth token pair for that athlete. One row per member and per athlete;
// rows are created on the first successful code exchange and updated on
// every token refresh, never deleted by the sync code.
type StravaLink struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	UserID       uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	AthleteID    int64  `gorm:"uniqueIndex;not null" json:"athlete_id"`
	AccessToken  string `gorm:"not null" json:"-"`
	RefreshToken string `gorm:"not null" json:"-"`
	// ExpiresAt is unix seconds, as returned verbatim by the token endpoint.
	ExpiresAt int64     `gorm:"not null" json:"expires_at"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

// Activity is a local copy of one Strava run. The remote activity id is the
// primary key, so repeated syncs update in place instead of duplicating.
type Activity struct {
	StravaID   int64     `gorm:"primarykey;autoIncrement:false" json:"strava_id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	Name       string    `json:"name"`
	Distance   float64   `json:"distance"`
	MovingTime int       `json:"moving_time"`
	SportType  string    `gorm:"index" json:"sport_type"`
	Polyline   string    `json:"polyline,omitempty"`
	StartDate  time.Time `gorm:"index" json:"start_date"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Event struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	Body      string    `json:"body"`
	Location  string    `json:"location"`
	StartsAt  time.Time `gorm:"index" json:"starts_at"`
	Distances string    `json:"distances"`
	Published bool      `gorm:"index" json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewsPost struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Body        string     `json:"body"`
	AuthorID    uint       `gorm:"index" json:"author_id"`
	PublishedAt *time.Time `gorm:"index" json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Photo struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Title      string    `json:"title"`
	FileName   string    `gorm:"not null" json:"file_name"`
	ThumbName  string    `json:"thumb_name"`
	UploadedBy uint      `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type Product struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description string    `json:"description"`
	PriceCents  int       `json:"price_cents"`
	Sizes       string    `json:"sizes"`
	InStock     bool      `json:"in_stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&UserSession{},
		&StravaLink{},
		&Activity{},
		&Event{},
		&NewsPost{},
		&Photo{},
		&Product{},
	)
}
