package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tenant is the root isolation scope (spec §3).
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Site is the top of the location hierarchy under a tenant.
type Site struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Area belongs to a Site.
type Area struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	SiteID    uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Unit statuses (spec §3).
const (
	UnitStatusOK                     = "ok"
	UnitStatusExcursion              = "excursion"
	UnitStatusAlarmActive            = "alarmActive"
	UnitStatusRestoring              = "restoring"
	UnitStatusManualRequired         = "manualRequired"
	UnitStatusMonitoringInterrupted  = "monitoringInterrupted"
	UnitStatusOffline                = "offline"
)

// Unit is a refrigeration enclosure.
type Unit struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	AreaID          uuid.UUID
	SiteID          uuid.UUID // denormalized for single-join threshold/escalation lookups
	Name            string
	MinTemp         *int32 // tenths of a degree; nil if unset
	MaxTemp         *int32
	TempUnit        string // "F" | "C"
	Status          string
	LastReadingAt   *time.Time
	LastTemperature *int32
	StatusChangedAt time.Time
	Active          bool
	CreatedAt       time.Time
}

// Reading is an immutable time-series row.
type Reading struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	UnitID          uuid.UUID
	DeviceID        *string
	Temperature     int32 // tenths of a degree
	Humidity        *int32
	Battery         *int32
	SignalStrength  *int32
	RecordedAt      time.Time
	ReceivedAt      time.Time
	Source          string
	RawPayload      json.RawMessage
}

// AlertRule is an optional threshold/confirmation override at one scope level.
type AlertRule struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	SiteID          *uuid.UUID
	UnitID          *uuid.UUID
	AlertType       string
	Enabled         bool
	MinTemp         *int32
	MaxTemp         *int32
	ConfirmMinutes  *int32
	CreatedAt       time.Time
}

// Alert statuses and types (spec §3).
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusEscalated    = "escalated"
	AlertStatusResolved     = "resolved"

	AlertSeverityInfo     = "info"
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"

	AlertTypeExcursion = "temp_excursion"

	BoundMin = "min"
	BoundMax = "max"
)

// Alert is a materialized excursion event.
type Alert struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	UnitID            uuid.UUID
	AlertType         string
	Severity          string
	Status            string
	TriggeringTemp    int32
	TriggeringBound   string
	TriggeredAt       time.Time
	AcknowledgedAt    *time.Time
	AcknowledgedBy    *string
	ResolvedAt        *time.Time
	ResolvedBy        *string
	EscalationLevel   int32
	LastEscalatedAt   *time.Time
	Metadata          json.RawMessage
	CreatedAt         time.Time
}

// IsOpen reports whether the alert is in one of the "open" statuses (spec Glossary).
func (a Alert) IsOpen() bool {
	switch a.Status {
	case AlertStatusActive, AlertStatusAcknowledged, AlertStatusEscalated:
		return true
	default:
		return false
	}
}

// EscalationPolicy defines tiering behavior for one severity within a tenant.
type EscalationPolicy struct {
	ID                    uuid.UUID
	TenantID              uuid.UUID
	Severity              string
	MaxLevel              int32
	EscalateAfterMinutes  int32
	SendSMS               bool
	PriorityThresholds    json.RawMessage // map[string]int keyed by level, e.g. {"1":50,"2":100}
	PerAlertMinutes       int32
	PerUserMinutes        int32
	OrgWindowMinutes      int32
	MaxSMSPerOrgWindow    int32
	CreatedAt             time.Time
}

// EscalationContact is a per-tenant SMS recipient.
type EscalationContact struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Phone     string
	Priority  int32
	Active    bool
	UserID    *uuid.UUID
	CreatedAt time.Time
}

// Notification delivery channels/statuses (spec §3, §6).
const (
	ChannelSMS = "sms"

	DeliveryPending   = "pending"
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// NotificationDelivery is one outbound SMS attempt.
type NotificationDelivery struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	AlertID           uuid.UUID
	ContactID         *uuid.UUID
	Phone             string
	UserID            *uuid.UUID
	Channel           string
	Status            string
	EscalationLevel   int32
	ProviderMessageID *string
	ScheduledAt       time.Time
	SentAt            *time.Time
	DeliveredAt       *time.Time
	FailedAt          *time.Time
	ErrorText         *string
}

// AuditLogEntry records one mutating action against tenant-scoped state.
type AuditLogEntry struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	UserID     *uuid.UUID
	Action     string
	Resource   string
	ResourceID uuid.UUID
	Detail     json.RawMessage
	IPAddress  *string
	UserAgent  *string
	CreatedAt  time.Time
}

// MetricBucket is a per (unit, hour) aggregate (spec §4.5).
type MetricBucket struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	UnitID        uuid.UUID
	PeriodStart   time.Time
	Granularity   string
	MinTemp       int32
	MaxTemp       int32
	SumTemp       int64
	Count         int64
	AvgTemp       float64
	MinHumidity   *int32
	MaxHumidity   *int32
	AnomalyCount  int64
}
