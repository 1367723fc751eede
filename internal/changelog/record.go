// Package changelog decodes raw change records emitted by the primary
// record store into typed domain events.
package changelog

// EventKind classifies what happened to the source entity.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventModify EventKind = "MODIFY"
	EventRemove EventKind = "REMOVE"
)

// EntityKind classifies which entity a change record describes.
type EntityKind string

const (
	EntityBook     EntityKind = "BOOK"
	EntityPurchase EntityKind = "PURCHASE"
)

// Attribute is one value in the primary store's attribute-map encoding.
// Exactly one field is populated per attribute.
type Attribute struct {
	// S holds a string value
	S string `json:"S,omitempty"`

	// N holds a number rendered as a string
	N string `json:"N,omitempty"`

	// Bool holds a boolean value
	Bool *bool `json:"BOOL,omitempty"`

	// L holds a list of attributes
	L []Attribute `json:"L,omitempty"`

	// M holds a nested attribute map
	M map[string]Attribute `json:"M,omitempty"`
}

// AttributeMap is an entity snapshot in the change-log wire encoding.
type AttributeMap map[string]Attribute

// ChangeRecord is one entry of the primary store's change log.
// REMOVE carries only Before; INSERT only After; MODIFY both, of which
// only After is used by the current projections.
type ChangeRecord struct {
	EventName string       `json:"eventName"`
	Before    AttributeMap `json:"before,omitempty"`
	After     AttributeMap `json:"after,omitempty"`
}

// Snapshot returns the attribute map a projection should read for this
// record: the prior image for REMOVE, the new image otherwise.
func (r ChangeRecord) Snapshot() AttributeMap {
	if r.EventName == string(EventRemove) {
		return r.Before
	}
	return r.After
}
