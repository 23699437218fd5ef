package models

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

type ItemType string

const (
	ItemLost  ItemType = "lost"
	ItemFound ItemType = "found"
)

// Opposite returns the type a matching report would have.
func (t ItemType) Opposite() ItemType {
	if t == ItemLost {
		return ItemFound
	}
	return ItemLost
}

func (t ItemType) Valid() bool {
	return t == ItemLost || t == ItemFound
}

type ItemState string

const (
	ItemActive  ItemState = "active"
	ItemClaimed ItemState = "claimed"
	ItemExpired ItemState = "expired"
	ItemDeleted ItemState = "deleted"
)

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// User is a Telegram user known to the bot
type User struct {
	ID          int64
	TelegramID  int64
	DisplayName string
	Username    string // empty when the Telegram account has none
	IsBanned    bool
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Item is a lost or found report
type Item struct {
	ID                   int64
	OwnerID              int64
	Type                 ItemType
	Category             string // key into Categories
	Title                string
	Description          string
	Location             string // key into Locations
	LocationDetail       string
	OccurredAt           time.Time
	State                ItemState
	VerificationQuestion string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ItemDraft is everything a finished report dialogue hands to the store.
type ItemDraft struct {
	OwnerID        int64
	Type           ItemType
	Category       string
	Title          string
	Description    string
	Location       string
	LocationDetail string
	OccurredAt     time.Time
	PhotoFileIDs   []string
}

// Validate reports ErrIncompleteItem when a mandatory field is missing.
func (d ItemDraft) Validate() error {
	switch {
	case d.OwnerID == 0,
		!d.Type.Valid(),
		CategoryByKey(d.Category) == nil,
		d.Title == "",
		LocationByKey(d.Location) == nil,
		d.OccurredAt.IsZero():
		return ErrIncompleteItem
	}
	return nil
}

// Photo is a Telegram file attached to an item
type Photo struct {
	ID        int64
	ItemID    int64
	FileID    string
	Hash      string // hex dHash, empty until computed
	CreatedAt time.Time
}

// Claim is a user's assertion that an item is theirs
type Claim struct {
	ID         int64
	ItemID     int64
	ClaimantID int64
	Message    string
	Status     ClaimStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Match is a scored pairing of an item with an opposite-type candidate
type Match struct {
	SourceItemID    int64
	CandidateItemID int64
	Score           int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stats backs the /admin summary.
type Stats struct {
	Users         int
	ActiveLost    int
	ActiveFound   int
	Claimed       int
	Expired       int
	PendingClaims int
	Matches       int
}

// CandidateQuery selects items that could match a report: active, of the
// given type and category, not owned by ExcludeOwner, and occurring within
// [From, To].
type CandidateQuery struct {
	Type         ItemType
	Category     string
	ExcludeOwner int64
	From         time.Time
	To           time.Time
}
