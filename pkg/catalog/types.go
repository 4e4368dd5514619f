// Package catalog holds the seller API catalog types shared by the client
// and its callers.
package catalog

import "fmt"

// Credential is one seller account's API access.
type Credential struct {
	ClientID string
	APIKey   string
}

// String hides the API key.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{ClientID: %s}", c.ClientID)
}

// CategoryID is an opaque category identifier.
type CategoryID string

// CategoryInfo is the API view of a single category.
type CategoryInfo struct {
	CategoryID CategoryID
	Title      string
}

// Attribute is one attribute reported by the category attribute endpoint.
// DictionaryID is zero when the attribute has no dictionary.
type Attribute struct {
	ID           int64
	Name         string
	Description  string
	Type         string
	IsCollection bool
	IsRequired   bool
	GroupName    string
	DictionaryID int64
}

// CategoryAttributes groups the attributes reported for one category.
type CategoryAttributes struct {
	CategoryID CategoryID
	Attributes []Attribute
}

// DictionaryValue is one value of an attribute dictionary.
type DictionaryValue struct {
	ID      int64
	Value   string
	Info    string
	Picture string
}

// DictionaryPage is one page of the dictionary values endpoint.
type DictionaryPage struct {
	Values  []DictionaryValue
	HasNext bool
}
