package notebook

// Mirror is the client-side contract of the collaborative document: a
// secondary notebook representation kept eventually consistent with the
// canonical document through explicit one-directional sync calls. It never
// auto-syncs; between sync calls no invariant holds between the two.
type Mirror struct {
	doc *Document
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{}
}

// Set replaces the mirror's content with a deep copy of doc. Immediately
// after Set the mirror's serialized form equals the document's.
func (m *Mirror) Set(doc *Document) error {
	if doc == nil {
		m.doc = nil
		return nil
	}
	clone, err := doc.Clone()
	if err != nil {
		return err
	}
	m.doc = clone
	return nil
}

// Snapshot returns a deep copy of the mirror's content, or nil when the
// mirror has never been set.
func (m *Mirror) Snapshot() (*Document, error) {
	if m.doc == nil {
		return nil, nil
	}
	return m.doc.Clone()
}
