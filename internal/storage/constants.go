package db

import "time"

const (
	defaultMaxConns          = 10
	defaultMinConns          = 2
	defaultMaxConnIdleTime   = 5 * time.Minute
	defaultMaxConnLifetime   = 30 * time.Minute
	defaultHealthCheckPeriod = time.Minute

	maxConnectionRetries = 10
	connectionRetrySleep = 2 * time.Second

	uniqueViolationCode = "23505"

	defaultPageSize = 20
	maxPageSize     = 100
)

// Moderation status lifecycle for user-generated content.
const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationFlagged  = "flagged"
	ModerationRemoved  = "removed"
)

// Report lifecycle.
const (
	ReportStatusPending  = "pending"
	ReportStatusReviewed = "reviewed"
	ReportStatusResolved = "resolved"
)

// Report target types.
const (
	TargetPost    = "post"
	TargetComment = "comment"
)

// Trial alert frequencies.
const (
	FrequencyInstant = "instant"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
)

// Notification types.
const (
	NotificationSystem      = "system"
	NotificationTrialAlert  = "trial_alert"
	NotificationTrialDigest = "trial_digest"
	NotificationCommunity   = "community"
	NotificationModeration  = "moderation"
	NotificationEvent       = "event"
)

// User types / roles.
const (
	UserTypePatient   = "patient"
	UserTypeHCP       = "hcp"
	UserTypeOrgMember = "org_member"
	UserTypeAdmin     = "admin"
)

// Doctor verification statuses.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)
