package statemachine

import (
	"strings"

	"cafe-ordering-api/apperr"
	"cafe-ordering-api/models"
)

// Transition is one step of the declared order progression
type Transition struct {
	From models.OrderStatus `json:"from"`
	To   models.OrderStatus `json:"to"`
}

// knownStatuses lists every status an order may hold, in progression order
var knownStatuses = []models.OrderStatus{
	models.StatusPending,
	models.StatusPreparing,
	models.StatusReady,
	models.StatusServed,
	models.StatusCancelled,
}

// declaredTransitions is the intended kitchen flow. It documents the lifecycle
// but is not enforced: admins may move an order to any known status,
// including back to an earlier one.
var declaredTransitions = []Transition{
	{From: models.StatusPending, To: models.StatusPreparing},
	{From: models.StatusPreparing, To: models.StatusReady},
	{From: models.StatusReady, To: models.StatusServed},
	{From: models.StatusPending, To: models.StatusCancelled},
}

var transitionSet = func() map[Transition]bool {
	m := make(map[Transition]bool, len(declaredTransitions))
	for _, t := range declaredTransitions {
		m[t] = true
	}
	return m
}()

// Statuses returns all recognised statuses
func Statuses() []models.OrderStatus {
	out := make([]models.OrderStatus, len(knownStatuses))
	copy(out, knownStatuses)
	return out
}

// IsKnown reports whether s is one of the five recognised statuses
func IsKnown(s models.OrderStatus) bool {
	for _, k := range knownStatuses {
		if k == s {
			return true
		}
	}
	return false
}

// Parse validates a raw status value
func Parse(raw string) (models.OrderStatus, error) {
	s := models.OrderStatus(raw)
	if !IsKnown(s) {
		return "", apperr.Validation("Invalid status. Must be one of: " + describe(knownStatuses))
	}
	return s, nil
}

// IsDeclared reports whether from → to follows the declared progression
func IsDeclared(from, to models.OrderStatus) bool {
	return transitionSet[Transition{From: from, To: to}]
}

// ValidTransitionsFrom returns the declared next states from a given state
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	for _, t := range declaredTransitions {
		if t.From == status {
			nexts = append(nexts, t.To)
		}
	}
	return nexts
}

// IsTerminal reports whether the declared progression ends at status
func IsTerminal(status models.OrderStatus) bool {
	return IsKnown(status) && len(ValidTransitionsFrom(status)) == 0
}

// TerminalStatuses returns the statuses with no declared successor
func TerminalStatuses() []models.OrderStatus {
	var out []models.OrderStatus
	for _, s := range knownStatuses {
		if IsTerminal(s) {
			out = append(out, s)
		}
	}
	return out
}

// GetAllTransitions returns the declared progression for documentation
func GetAllTransitions() []Transition {
	out := make([]Transition, len(declaredTransitions))
	copy(out, declaredTransitions)
	return out
}

func describe(statuses []models.OrderStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
