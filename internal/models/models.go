package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	default:
		return false
	}
}

type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	AvatarURL string     `json:"avatarUrl"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

const (
	DefaultWinnersPerPeriod = 2
	// DrawsPerPeriod is the number of monthly draws a full period allows.
	DrawsPerPeriod = 4
)

type RaffleSettings struct {
	ID               int64     `json:"id"`
	WinnersPerPeriod int       `json:"winnersPerPeriod"`
	Active           bool      `json:"active"`
	UpdatedBy        string    `json:"updatedBy"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// RaffleCycle is one (year, month) drawing period. Month is 0-indexed.
type RaffleCycle struct {
	ID            int64      `json:"id"`
	Year          int        `json:"year"`
	Month         int        `json:"month"`
	EligibleUsers []string   `json:"eligibleUsers"`
	DrawnUsers    []string   `json:"drawnUsers"`
	PoolSize      int        `json:"poolSize"`
	WinnersCount  int        `json:"winnersCount"`
	IsCompleted   bool       `json:"isCompleted"`
	DrawingDate   *time.Time `json:"drawingDate"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Period returns the raffle period tag for the cycle.
func (c *RaffleCycle) Period() time.Time {
	return RafflePeriod(c.Year, c.Month)
}

// RafflePeriod returns the first day of the given 0-indexed month in UTC.
func RafflePeriod(year, month int) time.Time {
	return time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC)
}

type MemberStatus string

const (
	MemberEligible MemberStatus = "eligible"
	MemberDrawn    MemberStatus = "drawn"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPaid
}

type RaffleWinner struct {
	ID            int64           `json:"id"`
	DrawID        string          `json:"drawId"`
	RafflePeriod  time.Time       `json:"rafflePeriod"`
	UserID        string          `json:"userId"`
	Position      int             `json:"position"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaymentDate   *time.Time      `json:"paymentDate"`
	PayoutRef     string          `json:"payoutRef"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type WinnerWithUser struct {
	RaffleWinner
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatarUrl"`
}

type AnnouncedWinner struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Announcement is what gets sent to members after a draw.
type Announcement struct {
	Year    int               `json:"year"`
	Month   int               `json:"month"`
	Winners []AnnouncedWinner `json:"winners"`
}
