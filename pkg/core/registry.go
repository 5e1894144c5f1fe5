package core

import "io"

// Registry is the catalog of items and their documents.
type Registry interface {
	// AllItems returns a snapshot of every item, sorted by name.
	AllItems() []Item
	// ItemByName returns the named item.
	ItemByName(name string) (Item, bool)
	// OpenDocument opens the item's raw document for reading.
	OpenDocument(name string) (io.ReadCloser, error)
	// WriteDocument replaces the item's document with what write produces.
	// The replacement is atomic: the live document is either fully old or
	// fully new. Output that does not deserialize as a job document of the
	// item's kind is rejected and the live document left untouched.
	WriteDocument(name string, write func(w io.Writer) error) error
	// Reload rehydrates the item from its stored document and link.
	Reload(name string) (Item, error)
	// Create adds a new item from doc.
	Create(name string, doc io.Reader) (Item, error)
	// Rename moves an item to a new name.
	Rename(oldName, newName string) error
}

// LinkStore persists template links keyed by implementation name.
type LinkStore interface {
	SaveLink(implementation string, link *TemplateLink) error
	// GetLink returns nil, nil when the implementation has no link.
	GetLink(implementation string) (*TemplateLink, error)
	ListLinks() (map[string]*TemplateLink, error)
	DeleteLink(implementation string) error
	// RenameTemplateReferences points every link naming oldName at newName
	// and returns the number of links changed.
	RenameTemplateReferences(oldName, newName string) (int64, error)
	RenameImplementation(oldName, newName string) error
}
