package service

import (
	"github.com/google/uuid"

	"go-stock-ledger/internal/events"
)

// Actor is the operator on whose behalf a ledger call runs.
type Actor struct {
	UserID *uuid.UUID
	Name   string
	Email  string
}

// SystemActor is used by seeders and maintenance commands.
var SystemActor = Actor{Name: "system"}

// Label is the value stored in created_by/updated_by.
func (a Actor) Label() string {
	switch {
	case a.Email != "":
		return a.Email
	case a.Name != "":
		return a.Name
	case a.UserID != nil:
		return a.UserID.String()
	}
	return "system"
}

func (a Actor) displayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Label()
}

func (a Actor) eventUser() *events.User {
	u := &events.User{Name: a.Name, Email: a.Email}
	if a.UserID != nil {
		u.ID = a.UserID.String()
	}
	return u
}
