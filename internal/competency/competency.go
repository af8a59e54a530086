// Package competency applies the cascading hard/soft eligibility rules
// that decide which managers at an office may take a given ticket.
// Office match and active status are hard filters, as are the VIP and
// DataChange gates; KZ/ENG language gating is soft: an empty result at
// the language step reverts to the pre-gating set rather than
// eliminating every candidate.
package competency

import (
	"strings"

	"github.com/ticketfire/backend/internal/models"
)

// Filter narrows managers down to those eligible for the ticket at the
// given office. Pure over its inputs.
func Filter(managers []models.Manager, officeName string, ticket models.Ticket) []models.Manager {
	candidates := officeActive(managers, officeName)
	if len(candidates) == 0 {
		return nil
	}

	needsVIP := strings.EqualFold(ticket.Segment, models.SegmentVIP) ||
		strings.EqualFold(ticket.Segment, models.SegmentPriority) ||
		ticket.PriorityScore >= 8
	if needsVIP {
		candidates = filterBySkill(candidates, models.SkillVIP)
	}

	if ticket.RequestType == models.TypeDataChange {
		candidates = filterByPosition(candidates, models.PositionChiefSpecialist)
	}

	switch ticket.Language {
	case models.LanguageKZ:
		candidates = softGate(candidates, models.SkillKZ)
	case models.LanguageENG:
		candidates = softGate(candidates, models.SkillENG)
	}

	return candidates
}

func officeActive(managers []models.Manager, officeName string) []models.Manager {
	out := make([]models.Manager, 0, len(managers))
	for _, m := range managers {
		if strings.EqualFold(m.Office, officeName) && m.IsActive() {
			out = append(out, m)
		}
	}
	return out
}

func filterBySkill(managers []models.Manager, skill string) []models.Manager {
	out := make([]models.Manager, 0, len(managers))
	for _, m := range managers {
		if m.HasSkill(skill) {
			out = append(out, m)
		}
	}
	return out
}

func filterByPosition(managers []models.Manager, position string) []models.Manager {
	out := make([]models.Manager, 0, len(managers))
	for _, m := range managers {
		if strings.EqualFold(m.Position, position) {
			out = append(out, m)
		}
	}
	return out
}

// softGate keeps only managers with the given skill, unless that would
// empty the set, in which case the input is returned unchanged.
func softGate(managers []models.Manager, skill string) []models.Manager {
	gated := filterBySkill(managers, skill)
	if len(gated) == 0 {
		return managers
	}
	return gated
}
