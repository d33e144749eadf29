package models

import (
	"fmt"
	"strconv"
	"time"
)

// Document-tree roots. Every entity lives under one of these.
const (
	RootUsers          = "users"
	RootGroups         = "groups"
	RootPayments       = "payments"
	RootLoans          = "loans"
	RootPersonalLoans  = "personal-loans"
	RootPaymentsBackup = "payments-backup"
)

// GlobalScope is the pseudo group id for records not tied to a group.
const GlobalScope = "global"

// UserPath returns users/{mobile}.
func UserPath(mobile string) string {
	return RootUsers + "/" + mobile
}

// GroupPath returns groups/{groupID}.
func GroupPath(groupID string) string {
	return RootGroups + "/" + groupID
}

// MonthPath returns {root}/{scope}/{month}, the parent of all records for a
// scope and calendar month.
func MonthPath(root, scope, month string) string {
	return fmt.Sprintf("%s/%s/%s", root, scope, month)
}

// RecordPath returns {root}/{scope}/{month}/{recordID}.
func RecordPath(root, scope, month, recordID string) string {
	return MonthPath(root, scope, month) + "/" + recordID
}

// ScopePath returns {root}/{scope}, the parent whose child keys are the
// months that hold records.
func ScopePath(root, scope string) string {
	return root + "/" + scope
}

// NewGroupID mints a group id from the current millisecond epoch, rendered
// as a decimal string so ids sort chronologically.
func NewGroupID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// CurrentMonth returns the current calendar month as YYYY-MM.
func CurrentMonth() string {
	return time.Now().UTC().Format("2006-01")
}
