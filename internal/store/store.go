package store

import "errors"

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating an entity whose name is already taken.
var ErrExists = errors.New("already exists")

// Store defines the persistence interface.
type Store interface {
	// Macro operations. CreateMacro fails with ErrExists on a duplicate
	// name; Get/Update/Delete fail with ErrNotFound when absent.
	CreateMacro(m *Macro) error
	GetMacro(name string) (*Macro, error)
	UpdateMacro(name string, m *Macro) error
	DeleteMacro(name string) error
	ListMacros() ([]*Macro, error)

	// Speaker snapshots (last-known state cache, written best effort).
	SaveSpeaker(sp *Speaker) error
	GetSpeaker(name string) (*Speaker, error)
	ListSpeakers() ([]*Speaker, error)

	// Close the store
	Close() error
}
