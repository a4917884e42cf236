package service

import "strings"

// Capability names a class of operations an actor may perform.
type Capability string

const (
	// CapabilityStudent drives progress, quizzes, rewards and streaks. Every authenticated actor holds it.
	CapabilityStudent Capability = "student"
	// CapabilityInstructor authors the catalog, quizzes and badges.
	CapabilityInstructor Capability = "instructor"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uint
	Role string
}

// NewActor normalises the role taken from a token.
func NewActor(id uint, role string) Actor {
	return Actor{ID: id, Role: strings.ToLower(strings.TrimSpace(role))}
}

// Can reports whether the actor holds capability.
func (a Actor) Can(capability Capability) bool {
	if a.ID == 0 {
		return false
	}

	switch capability {
	case CapabilityStudent:
		return true
	case CapabilityInstructor:
		switch a.Role {
		case "instructor", "admin", "teacher":
			return true
		}
	}
	return false
}

// SeesInactive reports whether inactive courses and lessons are visible to the actor.
func (a Actor) SeesInactive() bool {
	return a.Can(CapabilityInstructor)
}

func requireCapability(actor Actor, capability Capability) error {
	if !actor.Can(capability) {
		return ErrForbidden
	}
	return nil
}
