package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind names a templated event handed to the notification gateway.
type NotificationKind string

const (
	NotificationSessionCreated         NotificationKind = "session.created"
	NotificationAccountCreated         NotificationKind = "account.created"
	NotificationAccountDeleted         NotificationKind = "account.deleted"
	NotificationVerificationCodeIssued NotificationKind = "verification.code_issued"
	NotificationResetLinkIssued        NotificationKind = "password_reset.link_issued"
)

// Notification is the payload only; delivery mechanics belong to the gateway.
type Notification struct {
	Kind       NotificationKind  `json:"kind"`
	Recipient  string            `json:"recipient"`
	UserID     *uuid.UUID        `json:"user_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
