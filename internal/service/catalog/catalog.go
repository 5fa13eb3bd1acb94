// Package catalog caches the field metadata of the currently selected
// target object.
//
// Loads are issued with a Ticket. A result is applied only when its ticket
// is the latest one issued, so a slow response for an object the user has
// since switched away from never overwrites the current catalog.
package catalog

import (
	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/pkg/logger"
)

// Ticket identifies one catalog load.
type Ticket struct {
	Object     string `json:"object"`
	Generation int    `json:"generation"`
}

// Cache is the field catalog for one wizard session. The zero value is an
// empty cache using domain.DefaultPrimaryKeyField. Cache is a plain value
// and is not safe for concurrent use; callers serialize access.
type Cache struct {
	Object     string         `json:"object"`
	Generation int            `json:"generation"`
	Ready      bool           `json:"ready"`
	AllFields  []domain.Field `json:"all_fields,omitempty"`
	PrimaryKey string         `json:"primary_key,omitempty"`
}

// Begin starts a load for object and returns its ticket. Switching to a
// different object clears the cached fields immediately.
func (c *Cache) Begin(object string) Ticket {
	c.Generation++
	if object != c.Object {
		c.Object = object
		c.AllFields = nil
		c.Ready = false
	}
	return Ticket{Object: object, Generation: c.Generation}
}

// Current reports whether t is the most recent ticket for the cached object.
func (c *Cache) Current(t Ticket) bool {
	return t.Generation == c.Generation && t.Object == c.Object
}

// Complete applies fields loaded under t. It returns false, leaving the
// cache untouched, when t has been superseded.
func (c *Cache) Complete(t Ticket, fields []domain.Field) bool {
	if !c.Current(t) {
		logger.Debug("discarding stale field catalog",
			"object", t.Object, "generation", t.Generation, "current_generation", c.Generation)
		return false
	}
	c.AllFields = append([]domain.Field(nil), fields...)
	c.Ready = true
	return true
}

// Loaded reports whether fields for the current object are available.
func (c *Cache) Loaded() bool { return c.Ready }

// PrimaryKeyField returns the API name of the object's record id field.
func (c *Cache) PrimaryKeyField() string {
	if c.PrimaryKey != "" {
		return c.PrimaryKey
	}
	return domain.DefaultPrimaryKeyField
}

// Field looks up a field by API name.
func (c *Cache) Field(apiName string) (domain.Field, bool) {
	for _, f := range c.AllFields {
		if f.APIName == apiName {
			return f, true
		}
	}
	return domain.Field{}, false
}

// IsLookup reports whether apiName is a relationship field.
func (c *Cache) IsLookup(apiName string) bool {
	f, ok := c.Field(apiName)
	return ok && f.IsLookup
}

// LookupFields returns the relationship fields, in catalog order.
func (c *Cache) LookupFields() []domain.Field {
	var out []domain.Field
	for _, f := range c.AllFields {
		if f.IsLookup {
			out = append(out, f)
		}
	}
	return out
}
