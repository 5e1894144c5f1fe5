package core

// Kind identifies which variant an item deserializes as. The value is the
// identity tag stored on the document's top-level "kind:" line.
type Kind string

// Kind constants.
const (
	KindTemplate       Kind = "template"
	KindImplementation Kind = "implementation"
	KindOther          Kind = "other"
)

// KindOf maps a document's kind tag to an item kind. Unknown or empty tags
// are KindOther.
func KindOf(tag string) Kind {
	switch Kind(tag) {
	case KindTemplate:
		return KindTemplate
	case KindImplementation:
		return KindImplementation
	default:
		return KindOther
	}
}

// Item is a named job known to the registry. The set of implementations is
// closed: *TemplateItem, *ImplementationItem and *OtherItem.
type Item interface {
	Name() string
	Kind() Kind
	Spec() *JobSpec
	sealed()
}

type itemBase struct {
	name string
	spec *JobSpec
}

func (b *itemBase) Name() string   { return b.name }
func (b *itemBase) Spec() *JobSpec { return b.spec }
func (b *itemBase) sealed()        {}

// TemplateItem is an item whose document is authored directly.
type TemplateItem struct {
	itemBase
}

// NewTemplateItem creates a template item.
func NewTemplateItem(name string, spec *JobSpec) *TemplateItem {
	return &TemplateItem{itemBase{name: name, spec: spec}}
}

// Kind implements Item.
func (*TemplateItem) Kind() Kind { return KindTemplate }

// ImplementationItem is an item whose document is rendered from a template.
// Link is nil until the implementation is attached to a template.
type ImplementationItem struct {
	itemBase
	Link *TemplateLink
}

// NewImplementationItem creates an implementation item.
func NewImplementationItem(name string, spec *JobSpec, link *TemplateLink) *ImplementationItem {
	return &ImplementationItem{itemBase: itemBase{name: name, spec: spec}, Link: link}
}

// Kind implements Item.
func (*ImplementationItem) Kind() Kind { return KindImplementation }

// Implements reports whether the implementation is linked to template.
func (i *ImplementationItem) Implements(template string) bool {
	return i != nil && i.Link != nil && i.Link.TemplateName == template
}

// OtherItem is any job that is neither a template nor an implementation.
// Sync never touches it.
type OtherItem struct {
	itemBase
}

// NewOtherItem creates a bystander item.
func NewOtherItem(name string, spec *JobSpec) *OtherItem {
	return &OtherItem{itemBase{name: name, spec: spec}}
}

// Kind implements Item.
func (*OtherItem) Kind() Kind { return KindOther }

// NewItem builds the variant matching spec's kind tag. link is only kept for
// implementations.
func NewItem(name string, spec *JobSpec, link *TemplateLink) Item {
	switch KindOf(spec.Kind) {
	case KindTemplate:
		return NewTemplateItem(name, spec)
	case KindImplementation:
		return NewImplementationItem(name, spec, link)
	default:
		return NewOtherItem(name, spec)
	}
}
