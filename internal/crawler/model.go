// Package crawler implements the two-phase catalog crawl: category and
// attribute metadata per credential shard, then dictionary values for every
// (attribute, category) pair discovered in the first phase.
package crawler

import (
	"cmp"
	"fmt"
	"strconv"

	"github.com/Sternrassler/ozon-catalog-crawler/pkg/catalog"
)

// SentinelCategoryID means "no category" and is never crawled.
const SentinelCategoryID CategoryID = "0"

// NullMarker is persisted for attribute fields that have no value.
const NullMarker = "NULL"

// Persisted tables and their dedup keys.
const (
	TableCategory         = "category"
	TableAttribute        = "cat_list"
	TableDictionaryValue  = "attr_param_list"
	compositeKeyColumn    = "db_i"
	defaultMarketplaceID  = 1
	defaultDictionaryPage = 5000
	defaultAttributeBatch = 20
)

var (
	// CategoryDedupKey identifies one category row per marketplace.
	CategoryDedupKey = []string{"cat_id", "mp_id"}

	// AttributeDedupKey is the composite key of an attribute row.
	AttributeDedupKey = []string{compositeKeyColumn}

	// DictionaryValueDedupKey is the composite key of a dictionary value row.
	DictionaryValueDedupKey = []string{compositeKeyColumn}
)

// NamedAttributes are product fields that are not reported by the attribute
// endpoint but are stored for every category alongside the real attributes.
var NamedAttributes = []string{
	"complex_attributes", "color_image", "barcode",
	"category_id", "name", "offer_id", "height", "depth",
	"width", "dimension_unit", "weight", "weight_unit",
	"images", "image_group_id", "images360", "pdf_list",
	"description",
}

// Catalog types come from the public client package so the client can be
// used without the crawler.
type (
	Credential         = catalog.Credential
	CategoryID         = catalog.CategoryID
	CategoryInfo       = catalog.CategoryInfo
	Attribute          = catalog.Attribute
	CategoryAttributes = catalog.CategoryAttributes
	DictionaryValue    = catalog.DictionaryValue
	DictionaryPage     = catalog.DictionaryPage
)

// DictAttributeKey identifies one dictionary that needs value resolution.
type DictAttributeKey struct {
	AttributeID int64
	CategoryID  CategoryID
}

func (k DictAttributeKey) String() string {
	return fmt.Sprintf("%d/%s", k.AttributeID, k.CategoryID)
}

// compareDictKeys orders keys by category, then attribute.
func compareDictKeys(a, b DictAttributeKey) int {
	if c := cmp.Compare(a.CategoryID, b.CategoryID); c != 0 {
		return c
	}
	return cmp.Compare(a.AttributeID, b.AttributeID)
}

// Write is one row insert handed to the Store.
type Write struct {
	Table   string
	Columns []string
	Values  []any
}

// CategoryRecord is a persisted category.
type CategoryRecord struct {
	Name          string
	CategoryID    CategoryID
	MarketplaceID int
}

// Write converts the record to a row of the category table.
func (r CategoryRecord) Write() Write {
	return Write{
		Table:   TableCategory,
		Columns: []string{"name", "cat_id", "mp_id"},
		Values:  []any{r.Name, string(r.CategoryID), r.MarketplaceID},
	}
}

// AttributeRecord is a persisted category attribute. Fields keep the textual
// form of the cat_list table.
type AttributeRecord struct {
	AttrID       string
	Name         string
	IsRequired   string
	IsCollection string
	Type         string
	Description  string
	DictionaryID string
	GroupName    string
	CategoryID   CategoryID
}

// CompositeKey is category_id followed by attr_id.
func (r AttributeRecord) CompositeKey() string {
	return string(r.CategoryID) + r.AttrID
}

// Write converts the record to a row of the cat_list table.
func (r AttributeRecord) Write() Write {
	return Write{
		Table: TableAttribute,
		Columns: []string{
			"chid", "name", "is_required", "is_collection", "type",
			"description", "dictionary_id", "group_name", "cat_id", compositeKeyColumn,
		},
		Values: []any{
			r.AttrID, r.Name, r.IsRequired, r.IsCollection, r.Type,
			r.Description, r.DictionaryID, r.GroupName, string(r.CategoryID), r.CompositeKey(),
		},
	}
}

// DictionaryValueRecord is a persisted dictionary value.
type DictionaryValueRecord struct {
	Value            string
	Picture          string
	Info             string
	AttributeParamID int64
	AttributeID      int64
}

// CompositeKey is attribute_id followed by attribute_param_id.
func (r DictionaryValueRecord) CompositeKey() string {
	return strconv.FormatInt(r.AttributeID, 10) + strconv.FormatInt(r.AttributeParamID, 10)
}

// Write converts the record to a row of the attr_param_list table.
func (r DictionaryValueRecord) Write() Write {
	return Write{
		Table:   TableDictionaryValue,
		Columns: []string{"value", "picture", "info", "attr_param_id", "chid", compositeKeyColumn},
		Values: []any{
			r.Value, r.Picture, r.Info,
			strconv.FormatInt(r.AttributeParamID, 10),
			strconv.FormatInt(r.AttributeID, 10),
			r.CompositeKey(),
		},
	}
}

func attributeRecord(categoryID CategoryID, a Attribute) AttributeRecord {
	return AttributeRecord{
		AttrID:       strconv.FormatInt(a.ID, 10),
		Name:         a.Name,
		IsRequired:   formatBool(a.IsRequired),
		IsCollection: formatBool(a.IsCollection),
		Type:         a.Type,
		Description:  a.Description,
		DictionaryID: strconv.FormatInt(a.DictionaryID, 10),
		GroupName:    a.GroupName,
		CategoryID:   categoryID,
	}
}

func namedAttributeRecord(categoryID CategoryID, name string) AttributeRecord {
	return AttributeRecord{
		AttrID:       name,
		Name:         name,
		IsRequired:   "True",
		IsCollection: "False",
		Type:         "",
		Description:  name,
		DictionaryID: NullMarker,
		GroupName:    NullMarker,
		CategoryID:   categoryID,
	}
}

func dictionaryValueRecord(attributeID int64, v DictionaryValue) DictionaryValueRecord {
	return DictionaryValueRecord{
		Value:            v.Value,
		Picture:          v.Picture,
		Info:             v.Info,
		AttributeParamID: v.ID,
		AttributeID:      attributeID,
	}
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
