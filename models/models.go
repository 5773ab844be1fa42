package models

import (
	"time"

	"gorm.io/datatypes"
)

// User roles. Admins may manage any poll and subscribe to the admin room.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	Role         string    `gorm:"size:20;not null;default:user" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Poll is a question with ordered options. Deletion is a soft delete via
// IsActive; deleted polls are filtered at the database boundary and are
// reported as not found everywhere else.
type Poll struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	Title         string       `gorm:"size:200;not null" json:"title"`
	Description   string       `gorm:"type:text" json:"description"`
	Options       []PollOption `gorm:"foreignKey:PollID" json:"options"`
	CreatedBy     uint         `gorm:"not null;index" json:"created_by"`
	IsActive      bool         `gorm:"not null;default:true" json:"is_active"`
	IsClosed      bool         `gorm:"not null;default:false" json:"is_closed"`
	ClosesAt      *time.Time   `json:"closes_at,omitempty"`
	AllowMultiple bool         `gorm:"not null;default:false" json:"allow_multiple"`
	IsPublic      bool         `gorm:"not null;default:true" json:"is_public"`
	TotalVotes    int64        `gorm:"not null;default:0" json:"total_votes"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// AcceptsVotes reports whether the poll takes new ballots at the given
// instant. A ClosesAt equal to now already rejects.
func (p *Poll) AcceptsVotes(now time.Time) bool {
	if !p.IsActive || p.IsClosed {
		return false
	}
	if p.ClosesAt != nil && !p.ClosesAt.After(now) {
		return false
	}
	return true
}

// PollOption is one choice of a poll, addressed by its 0-based Position.
type PollOption struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PollID   uint   `gorm:"not null;index" json:"poll_id"`
	Position int    `gorm:"not null" json:"position"`
	Text     string `gorm:"size:200;not null" json:"text"`
	Votes    int64  `gorm:"not null;default:0" json:"votes"`
}

// Vote is one user's ballot for a poll. The unique index on
// (user_id, poll_id) is the mechanism of record against double voting, not
// an advisory application check.
type Vote struct {
	ID              uint                     `gorm:"primaryKey" json:"id"`
	UserID          uint                     `gorm:"not null;uniqueIndex:idx_votes_user_poll" json:"user_id"`
	PollID          uint                     `gorm:"not null;uniqueIndex:idx_votes_user_poll;index" json:"poll_id"`
	SelectedOptions datatypes.JSONSlice[int] `gorm:"not null" json:"selected_options"`
	VotedAt         time.Time                `gorm:"not null" json:"voted_at"`
}
