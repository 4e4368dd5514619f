package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/ozon-catalog-crawler/pkg/cache"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/catalog"
)

// Request bodies. Category IDs travel as JSON numbers.

type categoryTreeRequest struct {
	CategoryID json.Number `json:"category_id"`
	Language   string      `json:"language"`
}

type categoryAttributesRequest struct {
	AttributeType string        `json:"attribute_type"`
	CategoryID    []json.Number `json:"category_id"`
	Language      string        `json:"language"`
}

type dictionaryValuesRequest struct {
	AttributeID int64       `json:"attribute_id"`
	CategoryID  json.Number `json:"category_id"`
	LastValueID *int64      `json:"last_value_id"`
	Language    string      `json:"language"`
	Limit       int         `json:"limit"`
}

// Response bodies. Pointer fields are required; nil means the field was absent.

type categoryNode struct {
	CategoryID json.Number    `json:"category_id"`
	Title      string         `json:"title"`
	Children   []categoryNode `json:"children"`
}

type categoryTreeResponse struct {
	Result *[]categoryNode `json:"result"`
}

type attributeItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Type         string `json:"type"`
	IsCollection bool   `json:"is_collection"`
	IsRequired   bool   `json:"is_required"`
	GroupID      int64  `json:"group_id"`
	GroupName    string `json:"group_name"`
	DictionaryID int64  `json:"dictionary_id"`
}

type categoryAttributesItem struct {
	CategoryID json.Number     `json:"category_id"`
	Attributes []attributeItem `json:"attributes"`
}

type categoryAttributesResponse struct {
	Result *[]categoryAttributesItem `json:"result"`
}

type dictionaryValueItem struct {
	ID      int64  `json:"id"`
	Value   string `json:"value"`
	Info    string `json:"info"`
	Picture string `json:"picture"`
}

type dictionaryValuesResponse struct {
	Result  *[]dictionaryValueItem `json:"result"`
	HasNext *bool                  `json:"has_next"`
}

var errMissingResult = errors.New(`missing "result"`)

// CategoryInfo resolves the title of one category.
func (c *Client) CategoryInfo(ctx context.Context, cred catalog.Credential, id catalog.CategoryID) (catalog.CategoryInfo, error) {
	req := categoryTreeRequest{
		CategoryID: json.Number(id),
		Language:   c.language,
	}
	key := &cache.CacheKey{
		Endpoint: EndpointCategoryTree,
		Params:   map[string]string{"category_id": string(id), "language": c.language},
	}

	var info catalog.CategoryInfo
	err := c.fetch(ctx, cred, EndpointCategoryTree, req, key, func(data []byte) error {
		var resp categoryTreeResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		if resp.Result == nil {
			return errMissingResult
		}
		if len(*resp.Result) == 0 {
			return fmt.Errorf("empty result for category %s", id)
		}
		info = catalog.CategoryInfo{
			CategoryID: id,
			Title:      (*resp.Result)[0].Title,
		}
		return nil
	})
	if err != nil {
		return catalog.CategoryInfo{}, fmt.Errorf("category info %s: %w", id, err)
	}
	return info, nil
}

// CategoryAttributes returns attribute metadata for up to 20 categories.
func (c *Client) CategoryAttributes(ctx context.Context, cred catalog.Credential, ids []catalog.CategoryID) ([]catalog.CategoryAttributes, error) {
	numbers := make([]json.Number, len(ids))
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		numbers[i] = json.Number(id)
		idStrings[i] = string(id)
	}

	req := categoryAttributesRequest{
		AttributeType: "ALL",
		CategoryID:    numbers,
		Language:      c.language,
	}
	key := &cache.CacheKey{
		Endpoint: EndpointCategoryAttributes,
		Params: map[string]string{
			"attribute_type": "ALL",
			"category_id":    strings.Join(idStrings, ","),
			"language":       c.language,
		},
	}

	var out []catalog.CategoryAttributes
	err := c.fetch(ctx, cred, EndpointCategoryAttributes, req, key, func(data []byte) error {
		var resp categoryAttributesResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		if resp.Result == nil {
			return errMissingResult
		}
		out = make([]catalog.CategoryAttributes, 0, len(*resp.Result))
		for _, item := range *resp.Result {
			attrs := make([]catalog.Attribute, 0, len(item.Attributes))
			for _, a := range item.Attributes {
				attrs = append(attrs, catalog.Attribute{
					ID:           a.ID,
					Name:         a.Name,
					Description:  a.Description,
					Type:         a.Type,
					IsCollection: a.IsCollection,
					IsRequired:   a.IsRequired,
					GroupName:    a.GroupName,
					DictionaryID: a.DictionaryID,
				})
			}
			out = append(out, catalog.CategoryAttributes{
				CategoryID: catalog.CategoryID(item.CategoryID.String()),
				Attributes: attrs,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("category attributes [%s]: %w", strings.Join(idStrings, ","), err)
	}
	return out, nil
}

// DictionaryValues returns one page of dictionary values. Pages are never cached.
func (c *Client) DictionaryValues(ctx context.Context, cred catalog.Credential, attributeID int64, categoryID catalog.CategoryID, lastValueID *int64, limit int) (catalog.DictionaryPage, error) {
	req := dictionaryValuesRequest{
		AttributeID: attributeID,
		CategoryID:  json.Number(categoryID),
		LastValueID: lastValueID,
		Language:    c.language,
		Limit:       limit,
	}

	var page catalog.DictionaryPage
	err := c.fetch(ctx, cred, EndpointDictionaryValues, req, nil, func(data []byte) error {
		var resp dictionaryValuesResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		if resp.Result == nil {
			return errMissingResult
		}
		if resp.HasNext == nil {
			return errors.New(`missing "has_next"`)
		}
		values := make([]catalog.DictionaryValue, len(*resp.Result))
		for i, v := range *resp.Result {
			values[i] = catalog.DictionaryValue{
				ID:      v.ID,
				Value:   v.Value,
				Info:    v.Info,
				Picture: v.Picture,
			}
		}
		page = catalog.DictionaryPage{Values: values, HasNext: *resp.HasNext}
		return nil
	})
	if err != nil {
		return catalog.DictionaryPage{}, fmt.Errorf("dictionary values %d/%s: %w", attributeID, categoryID, err)
	}
	return page, nil
}

// marshalRequest encodes body without HTML escaping.
func marshalRequest(body any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
