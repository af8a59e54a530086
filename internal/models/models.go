// Package models holds the ticket/manager/office records the enrichment
// and assignment pipeline operates on.
package models

import (
	"strings"
	"time"
)

// Segment values a ticket can carry. Unknown input defaults to Mass.
const (
	SegmentMass     = "Mass"
	SegmentPriority = "Priority"
	SegmentVIP      = "VIP"
)

// Canonical request types, post-NLP normalization.
const (
	TypeComplaint          = "Complaint"
	TypeDataChange         = "DataChange"
	TypeConsultation       = "Consultation"
	TypeClaim              = "Claim"
	TypeAppMalfunction     = "AppMalfunction"
	TypeFraudulentActivity = "FraudulentActivity"
	TypeSpam               = "Spam"
)

// Canonical sentiment values.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

// Language codes the detector and NLP pool agree on.
const (
	LanguageRU  = "RU"
	LanguageKZ  = "KZ"
	LanguageENG = "ENG"
)

// Manager positions.
const (
	PositionSpecialist       = "Specialist"
	PositionSeniorSpecialist = "SeniorSpecialist"
	PositionChiefSpecialist  = "ChiefSpecialist"
)

// Skill tags a manager can hold.
const (
	SkillVIP = "VIP"
	SkillKZ  = "KZ"
	SkillENG = "ENG"
)

// Ticket is a single customer-support request, from raw upload through
// enrichment and assignment.
type Ticket struct {
	CustomerGUID string `json:"customer_guid"`
	Gender       string `json:"gender,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
	Description  string `json:"description"`
	Attachments  string `json:"attachments,omitempty"`
	Segment      string `json:"client_segment"`
	Country      string `json:"country,omitempty"`
	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	Street       string `json:"street,omitempty"`
	Building     string `json:"building,omitempty"`

	// Enrichment, added by the pipeline.
	RequestType  string   `json:"request_type,omitempty"`
	Sentiment    string   `json:"sentiment,omitempty"`
	PriorityScore int     `json:"priority,omitempty"`
	Language     string   `json:"language,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	NextActions  string   `json:"next_actions,omitempty"`
	InferTimeMs  int64    `json:"infer_time_ms,omitempty"`
	Latitude     *float64 `json:"lat"`
	Longitude    *float64 `json:"lon"`

	// Assignment outcome, added by the pipeline.
	Outcome AssignmentOutcome `json:"-"`

	AssignedManagerName    *string `json:"assigned_manager_name"`
	AssignedManagerLevel   *string `json:"assigned_manager_level"`
	AssignedOfficeName     *string `json:"assigned_office"`
	AssignedOfficeAddress  *string `json:"assigned_office_address"`
}

// AssignmentOutcome is a tagged sum type over how a ticket's routing
// resolved, replacing the loose "manager id or nil plus a status string"
// shape the pipeline would otherwise carry.
type AssignmentOutcome int

const (
	// OutcomeAssigned means an eligible manager was chosen and bumped.
	OutcomeAssigned AssignmentOutcome = iota
	// OutcomeNoEligibleManager means an office was resolved but no
	// manager there (or at any fallback office) passed the competency
	// filter.
	OutcomeNoEligibleManager
	// OutcomeUnmapped means no nearest office could be resolved at all
	// (the ticket has no coordinates, or no office does).
	OutcomeUnmapped
	// OutcomeSpam means the ticket was classified Spam and never
	// entered assignment.
	OutcomeSpam
)

func (o AssignmentOutcome) String() string {
	switch o {
	case OutcomeAssigned:
		return "ASSIGNED"
	case OutcomeNoEligibleManager:
		return "NO_ELIGIBLE_MANAGER"
	case OutcomeUnmapped:
		return "UNMAPPED"
	case OutcomeSpam:
		return "SPAM"
	default:
		return "UNKNOWN"
	}
}

// Manager is a human assignee eligible for some subset of tickets.
type Manager struct {
	ManagerID string   `json:"manager_id"`
	FullName  string   `json:"full_name"`
	Position  string   `json:"position"`
	Skills    []string `json:"skills"`
	Office    string   `json:"office"`
	Active    *bool    `json:"active,omitempty"`
	Workload  int      `json:"workload"`
}

// IsActive defaults to true when Active is unset.
func (m Manager) IsActive() bool {
	return m.Active == nil || *m.Active
}

// HasSkill reports whether the manager carries the given skill tag,
// case-insensitively.
func (m Manager) HasSkill(skill string) bool {
	for _, s := range m.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

// Office is a physical branch tickets route to.
type Office struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
}

// HasCoords reports whether the office can participate in distance
// routing.
func (o Office) HasCoords() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// Run records one batch's processing lifecycle.
type Run struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	Status       string    `json:"status"`
	TicketCount  int       `json:"ticket_count"`
	ManagerCount int       `json:"manager_count"`
	NLPTotalMs   int64     `json:"nlp_total_time_ms"`
	NLPAvgMs     int64     `json:"nlp_avg_time_ms"`
}

// BatchSummary is what one batch run reports back to its caller.
type BatchSummary struct {
	SessionID    string `json:"session_id"`
	TicketCount  int    `json:"ticket_count"`
	ManagerCount int    `json:"manager_count"`
	OKCount      int    `json:"ok_count"`
	FailCount    int    `json:"fail_count"`
	UnmappedCount int   `json:"unmapped_count"`
	Status       string `json:"status"`
	NLPTotalMs   int64  `json:"nlp_total_time_ms"`
	NLPAvgMs     int64  `json:"nlp_avg_time_ms"`
}
