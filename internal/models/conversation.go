package models

import "time"

// FlowState labels where a user is in a multi-step dialogue. The empty
// value means idle: no row is stored for idle users.
type FlowState string

const (
	StateIdle                 FlowState = ""
	StateReportCategory       FlowState = "report_category"
	StateReportTitle          FlowState = "report_title"
	StateReportDescription    FlowState = "report_description"
	StateReportLocation       FlowState = "report_location"
	StateReportLocationDetail FlowState = "report_location_detail"
	StateReportDate           FlowState = "report_date"
	StateReportPhotos         FlowState = "report_photos"
	StateSearchQuery          FlowState = "search_query"
	StateClaimMessage         FlowState = "claim_message"
)

// ConversationData accumulates draft fields between dialogue steps. It is
// stored as JSON; empty fields are omitted so partial updates can be merged
// key by key.
type ConversationData struct {
	ItemType       ItemType   `json:"item_type,omitempty"`
	Category       string     `json:"category,omitempty"`
	Title          string     `json:"title,omitempty"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	LocationDetail string     `json:"location_detail,omitempty"`
	OccurredAt     *time.Time `json:"occurred_at,omitempty"`
	Photos         []string   `json:"photos,omitempty"`
	ItemID         int64      `json:"item_id,omitempty"`
	SearchQuery    string     `json:"search_query,omitempty"`
	Offset         int        `json:"offset,omitempty"`
}

// ConversationState is the per-user dialogue record.
type ConversationState struct {
	UserID    int64
	State     FlowState
	Data      ConversationData
	UpdatedAt time.Time
}

// Active reports whether the user is mid-dialogue.
func (c *ConversationState) Active() bool {
	return c != nil && c.State != StateIdle
}

// Draft converts accumulated report data into an ItemDraft for owner.
func (d ConversationData) Draft(ownerID int64) ItemDraft {
	draft := ItemDraft{
		OwnerID:        ownerID,
		Type:           d.ItemType,
		Category:       d.Category,
		Title:          d.Title,
		Description:    d.Description,
		Location:       d.Location,
		LocationDetail: d.LocationDetail,
		PhotoFileIDs:   d.Photos,
	}
	if d.OccurredAt != nil {
		draft.OccurredAt = *d.OccurredAt
	}
	return draft
}
