package testutil

import (
	"strings"

	"github.com/zimmed/zimmed-core/internal/datamodel"
)

// Initials is a named transform over a contact's name.
var Initials = datamodel.Transform{Name: "initials", Fn: func(v any) any {
	s, _ := v.(string)
	var b strings.Builder
	for _, word := range strings.Fields(s) {
		b.WriteString(strings.ToUpper(word[:1]))
	}
	return b.String()
}}

// Contact is a small controller used across package tests.
type Contact struct {
	*datamodel.Base
}

// ContactType derives name, initials, tags and score from the attributes
// of the same names. Stores loading contacts need Initials in their catalog.
var ContactType = datamodel.MustType("contact",
	datamodel.RuleSet{
		"name":     datamodel.NewRule(datamodel.Attr("name"), datamodel.String, datamodel.Identity),
		"initials": datamodel.NewRule(datamodel.Attr("name"), datamodel.String, Initials),
		"tags":     datamodel.NewRule(datamodel.Attr("tags"), datamodel.List(datamodel.String), datamodel.Identity),
		"score":    datamodel.NewRule(datamodel.Attr("score"), datamodel.Int, datamodel.Identity),
	},
	func(b *datamodel.Base) datamodel.Controller { return &Contact{b} },
	datamodel.WithDefaults(map[string]any{"name": "", "tags": []string{}, "score": 0}),
)

// WithContacts adds three contacts: contact-ada, contact-alan and contact-grace.
func (b *Builder) WithContacts() *Builder {
	return b.
		WithController(ContactType, "contact-ada",
			Attrs("name", "Ada Lovelace", "tags", []string{"math"}, "score", 10)).
		WithController(ContactType, "contact-alan",
			Attrs("name", "Alan Turing", "tags", []string{"math", "crypto"}, "score", 7)).
		WithController(ContactType, "contact-grace",
			Attrs("name", "Grace Brewster Hopper", "score", 9))
}
