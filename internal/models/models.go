// Package models defines the domain entities mirrored from the backing
// document store: users, groups, expense/loan records, approval requests and
// per-recipient notification inboxes.
//
// Field names follow the store's JSON layout, which is the durable owner of
// record; the in-memory representations here are what the entity store caches
// and the workflow engine reads.
package models

import "time"

// RequestKind discriminates the variants of an approval request.
type RequestKind string

const (
	KindGroupDelete       RequestKind = "group_delete"
	KindGroupEdit         RequestKind = "group_edit"
	KindAddMember         RequestKind = "add_member"
	KindLeave             RequestKind = "leave"
	KindJoin              RequestKind = "join"
	KindTransferOwnership RequestKind = "transfer_ownership"
	KindSettlement        RequestKind = "settlement"
	KindRecordDelete      RequestKind = "record_delete"
	KindRecordUpdate      RequestKind = "record_update"
	KindUserDelete        RequestKind = "user_delete"
	KindUserUpdate        RequestKind = "user_update"
)

// Member is a denormalized membership snapshot. It is not live-joined to the
// user entity: a later rename does not cascade here.
type Member struct {
	Mobile string `json:"mobile"`
	Name   string `json:"name"`
}

// Approval is one named consent on a pending request.
type Approval struct {
	Mobile     string `json:"mobile"`
	Name       string `json:"name"`
	ApprovedAt string `json:"approvedAt,omitempty"`
}

// Request is the tagged approval-request variant shared by every workflow
// kind. Payload fields are optional and only populated for the kind that
// uses them.
type Request struct {
	Kind            RequestKind `json:"kind"`
	RequestedBy     string      `json:"requestedBy"`
	RequestedByName string      `json:"requestedByName,omitempty"`
	RequestedAt     string      `json:"requestedAt,omitempty"`
	Approvals       []Approval  `json:"approvals"`

	// RequiredApprovals pins an explicit approver set (user delete/update
	// flows, scoped to the owners of the user's groups). When empty the
	// set is derived from current membership at check time.
	RequiredApprovals []string `json:"requiredApprovals,omitempty"`

	// group_edit payload
	Name           string   `json:"name,omitempty"`
	NewMembers     []Member `json:"newMembers,omitempty"`
	AddedMembers   []Member `json:"addedMembers,omitempty"`
	RemovedMembers []Member `json:"removedMembers,omitempty"`

	// add_member payload
	NewMember *Member `json:"newMember,omitempty"`

	// transfer_ownership payload
	NewOwner string `json:"newOwner,omitempty"`

	// settlement payload
	Month string `json:"month,omitempty"`

	// leave / join payload: the member the request is about
	Subject     string `json:"subject,omitempty"`
	SubjectName string `json:"subjectName,omitempty"`

	// user_update payload
	NewName string `json:"newName,omitempty"`

	// record_update payload: full proposed record snapshot
	Changes *Record `json:"changes,omitempty"`
}

// HasApproval reports whether mobile has already approved this request.
func (r *Request) HasApproval(mobile string) bool {
	for _, a := range r.Approvals {
		if a.Mobile == mobile {
			return true
		}
	}
	return false
}

// Notification is one entry in a recipient's per-entity inbox.
type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	ByName    string `json:"byName,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Notification types.
const (
	NoticeApproved     = "approved"
	NoticeRejected     = "rejected"
	NoticeGroupUpdated = "group_updated"
	NoticeReminder     = "reminder"
	NoticeMonthEnd     = "month_end"
)

// User is a registered account keyed by mobile number.
type User struct {
	Mobile string `json:"mobile"`
	Name   string `json:"name"`

	// LoginCode is nil until the first successful login sets it. Stored as
	// a bcrypt hash, never plaintext.
	LoginCode *string `json:"loginCode"`

	// RecoveryCodes are one-shot passcodes, consumed on use and regenerated
	// when the last one is spent.
	RecoveryCodes []string `json:"recoveryCodes,omitempty"`

	AddedBy string `json:"addedBy,omitempty"`

	DeleteRequest *Request `json:"deleteRequest,omitempty"`
	UpdateRequest *Request `json:"updateRequest,omitempty"`
}

// Group is a shared-expense group. Members is never empty while the group
// exists. OwnerMobile references a current member, except transiently while
// ownership is vacant after the owner leaves.
type Group struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerMobile string `json:"ownerMobile"`

	Members []Member `json:"members"`

	JoinRequests  []Request `json:"joinRequests,omitempty"`
	LeaveRequests []Request `json:"leaveRequests,omitempty"`

	EditRequest              *Request `json:"editRequest,omitempty"`
	DeleteRequest            *Request `json:"deleteRequest,omitempty"`
	AddMemberRequest         *Request `json:"addMemberRequest,omitempty"`
	TransferOwnershipRequest *Request `json:"transferOwnershipRequest,omitempty"`
	SettlementRequest        *Request `json:"settlementRequest,omitempty"`

	// Notifications maps recipient mobile to their inbox. Absent key means
	// empty inbox.
	Notifications map[string][]Notification `json:"notifications,omitempty"`

	CreatedAt string `json:"createdAt,omitempty"`
}

// HasMember reports whether mobile is a current member.
func (g *Group) HasMember(mobile string) bool {
	for _, m := range g.Members {
		if m.Mobile == mobile {
			return true
		}
	}
	return false
}

// MemberName returns the denormalized name for mobile, or the mobile itself
// when not a member.
func (g *Group) MemberName(mobile string) string {
	for _, m := range g.Members {
		if m.Mobile == mobile {
			return m.Name
		}
	}
	return mobile
}

// Payer modes.
const (
	PayerSingle   = "single"
	PayerMultiple = "multiple"
)

// Split modes.
const (
	SplitEqual  = "equal"
	SplitCustom = "custom"
)

// PayerShare is one payer's contribution when PayerMode is multiple.
type PayerShare struct {
	Mobile string  `json:"mobile"`
	Name   string  `json:"name,omitempty"`
	Amount float64 `json:"amount"`
}

// SplitShare is one participant's computed share of a record.
type SplitShare struct {
	Mobile string  `json:"mobile"`
	Name   string  `json:"name,omitempty"`
	Amount float64 `json:"amount"`
}

// SplitItem is one line of a custom (item-based) split.
type SplitItem struct {
	Description  string   `json:"description,omitempty"`
	Amount       float64  `json:"amount"`
	Participants []string `json:"participants"`
}

// Record is a payment or loan entry stored under
// {collection}/{groupID|"global"}/{YYYY-MM}/{id}.
type Record struct {
	ID          string  `json:"id,omitempty"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date,omitempty"`
	WhoAdded    string  `json:"whoAdded,omitempty"`
	WhenAdded   string  `json:"whenAdded,omitempty"`

	PayerMode string       `json:"payerMode,omitempty"`
	Payer     string       `json:"payer,omitempty"`
	Payers    []PayerShare `json:"payers,omitempty"`

	Participants []string     `json:"participants,omitempty"`
	SplitMode    string       `json:"splitMode,omitempty"`
	SplitItems   []SplitItem  `json:"splitItems,omitempty"`
	Split        []SplitShare `json:"split,omitempty"`

	DeleteRequest *Request `json:"deleteRequest,omitempty"`
	UpdateRequest *Request `json:"updateRequest,omitempty"`

	Notifications map[string][]Notification `json:"notifications,omitempty"`

	ReceiptURL string `json:"receiptUrl,omitempty"`

	Group string `json:"group,omitempty"`
}

// HasPendingRequest reports whether a delete or update request blocks direct
// edits of this record.
func (r *Record) HasPendingRequest() bool {
	return r.DeleteRequest != nil || r.UpdateRequest != nil
}

// NowISO returns the current UTC time in RFC3339, the format requests and
// approvals are stamped with.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
