package wizard

import (
	"context"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/pkg/logger"
	"github.com/ignite/crm-import/internal/service/catalog"
	"github.com/ignite/crm-import/internal/service/mapping"
	"github.com/ignite/crm-import/internal/session"
)

// SelectTarget records the object and operation and loads the object's
// field catalog. A catalog response that arrives after the user moved on to
// another object is dropped.
func (s *Service) SelectTarget(ctx context.Context, id, object string, op domain.Operation) (*session.Session, error) {
	var ticket catalog.Ticket
	var fetch bool

	sess, err := s.mutate(ctx, id, func(sess *session.Session) error {
		prev := sess.State.ObjectName
		if err := apply(sess, mapping.TargetSelected{ObjectName: object, Operation: op}); err != nil {
			return err
		}
		if prev != object {
			for _, c := range sess.Cells {
				c.Reset()
			}
		}
		if prev == object && sess.Catalog.Loaded() {
			return nil
		}
		sess.Catalog.PrimaryKey = s.primaryKey
		ticket = sess.Catalog.Begin(object)
		fetch = true
		return nil
	})
	if err != nil || !fetch {
		return sess, err
	}

	fields, fetchErr := s.platform.ListFields(ctx, object)

	var loadErr error
	sess, err = s.mutate(ctx, id, func(sess *session.Session) error {
		if fetchErr != nil {
			if sess.Catalog.Current(ticket) {
				logger.Error("field catalog load failed", "session_id", id, "object", object, "error", fetchErr.Error())
				loadErr = platformError("list fields", fetchErr)
			}
			return nil
		}
		if !sess.Catalog.Complete(ticket, fields) {
			logger.Debug("discarding stale field catalog", "session_id", id, "object", object)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, loadErr
}

// SelectField handles the user choosing a target field for a mapping row.
// Lookup fields trigger a fetch of the related object's fields; the result
// is applied only if the row is still waiting for exactly that fetch.
func (s *Service) SelectField(ctx context.Context, id, keyField, field string) (*session.Session, error) {
	var req *mapping.LookupRequest

	sess, err := s.mutate(ctx, id, func(sess *session.Session) error {
		if sess.State.ObjectName == "" {
			return invalid(mapping.ErrNoObject)
		}
		if !sess.Catalog.Loaded() {
			return invalid(ErrCatalogLoading)
		}
		c, err := cell(sess, keyField)
		if err != nil {
			return err
		}
		if field != "" && field != sess.Catalog.PrimaryKeyField() {
			if _, ok := sess.Catalog.Field(field); !ok {
				return invalid(mapping.ErrUnknownField)
			}
		}
		ch, r := c.Select(field, &sess.Catalog)
		if err := apply(sess, mapping.FieldChanged{Change: ch}); err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil || req == nil {
		return sess, err
	}

	res, fetchErr := s.platform.ResolveLookupFields(ctx, req.ObjectName, req.Field)

	var resolveErr error
	sess, err = s.mutate(ctx, id, func(sess *session.Session) error {
		c, ok := sess.Cells[req.KeyField]
		if !ok || sess.State.ObjectName != req.ObjectName || !c.Awaiting(*req) {
			logger.Debug("discarding stale lookup response",
				"session_id", id, "key_field", req.KeyField, "field", req.Field, "seq", req.Seq)
			return nil
		}
		if fetchErr != nil {
			c.Abandon(*req)
			logger.Error("lookup field load failed",
				"session_id", id, "object", req.ObjectName, "field", req.Field, "error", fetchErr.Error())
			resolveErr = platformError("resolve lookup", fetchErr)
			return nil
		}
		ch, _ := c.Resolve(*req, res)
		return apply(sess, mapping.FieldChanged{Change: ch})
	})
	if err != nil {
		return nil, err
	}
	return sess, resolveErr
}

// SelectLookupFields sets the related fields used to match a lookup.
func (s *Service) SelectLookupFields(ctx context.Context, id, keyField string, fields []string) (*session.Session, error) {
	return s.cellChange(ctx, id, keyField, func(c *mapping.Cell) (mapping.Change, error) {
		return c.SelectLookupFields(fields)
	})
}

// SetWhereClause sets the filter used when resolving a lookup.
func (s *Service) SetWhereClause(ctx context.Context, id, keyField, clause string) (*session.Session, error) {
	return s.cellChange(ctx, id, keyField, func(c *mapping.Cell) (mapping.Change, error) {
		return c.SetWhereClause(clause)
	})
}

// SetExtraCSVField picks the CSV column feeding one selected related field
// of a lookup. An empty column clears the slot.
func (s *Service) SetExtraCSVField(ctx context.Context, id, keyField, lookupField, column string) (*session.Session, error) {
	return s.mutate(ctx, id, func(sess *session.Session) error {
		if column != "" && !sess.State.HasHeader(column) {
			return invalid(mapping.ErrUnknownColumn)
		}
		c, err := cell(sess, keyField)
		if err != nil {
			return err
		}
		ch, err := c.SetExtraCSVField(lookupField, column)
		if err != nil {
			return invalid(err)
		}
		return apply(sess, mapping.FieldChanged{Change: ch})
	})
}

// SetCompositePart picks the related field matched by one column of a
// composite lookup.
func (s *Service) SetCompositePart(ctx context.Context, id, keyField, column, field string) (*session.Session, error) {
	return s.Dispatch(ctx, id, mapping.CompositePartLookupSet{KeyField: keyField, Column: column, Field: field})
}

func (s *Service) cellChange(ctx context.Context, id, keyField string, fn func(*mapping.Cell) (mapping.Change, error)) (*session.Session, error) {
	return s.mutate(ctx, id, func(sess *session.Session) error {
		c, err := cell(sess, keyField)
		if err != nil {
			return err
		}
		ch, err := fn(c)
		if err != nil {
			return invalid(err)
		}
		return apply(sess, mapping.FieldChanged{Change: ch})
	})
}
