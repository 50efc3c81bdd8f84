package domain

// Property is the listing a prospect is interested in.
type Property struct {
	ID    string
	State string
	City  string
	// OwnerBrokerID ties the property to a single broker outside the tiered flow.
	OwnerBrokerID *string
}

// HasOwnerLink reports whether dispatch is superseded by an owner-broker link.
func (p *Property) HasOwnerLink() bool {
	return p != nil && p.OwnerBrokerID != nil && *p.OwnerBrokerID != ""
}
