// Package session issues the opaque token that scopes one client's context
// and conversation history on the RAG backend.
package session

import "github.com/google/uuid"

// ID is fixed for the lifetime of a client and never persisted.
type ID string

// New returns a random (v4) token.
func New() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }
