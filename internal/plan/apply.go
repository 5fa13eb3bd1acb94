package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/service/mapping"
	"github.com/ignite/crm-import/internal/session"
)

// Wizard is the part of the wizard service a plan drives.
type Wizard interface {
	SelectTarget(ctx context.Context, id, object string, op domain.Operation) (*session.Session, error)
	SelectField(ctx context.Context, id, keyField, field string) (*session.Session, error)
	SelectLookupFields(ctx context.Context, id, keyField string, fields []string) (*session.Session, error)
	SetExtraCSVField(ctx context.Context, id, keyField, lookupField, column string) (*session.Session, error)
	SetWhereClause(ctx context.Context, id, keyField, clause string) (*session.Session, error)
	SetCompositePart(ctx context.Context, id, keyField, column, field string) (*session.Session, error)
	Dispatch(ctx context.Context, id string, a mapping.Action) (*session.Session, error)
}

// Apply replays p against session id. It stops at the first rejected step
// and names it in the error.
func Apply(ctx context.Context, w Wizard, id string, p *Plan) (*session.Session, error) {
	op, err := domain.ParseOperation(p.Operation)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	sess, err := w.SelectTarget(ctx, id, p.Object, op)
	if err != nil {
		return nil, fmt.Errorf("plan: select %s: %w", p.Object, err)
	}

	for _, f := range p.Fields {
		if sess, err = applyField(ctx, w, id, f.key(), f); err != nil {
			return nil, err
		}
	}

	for _, f := range p.Additional {
		before := sess
		sess, err = w.Dispatch(ctx, id, mapping.AdditionalMappingAdded{Header: f.Column})
		if err != nil {
			return nil, fmt.Errorf("plan: add mapping for %s: %w", f.Column, err)
		}
		if sess, err = applyField(ctx, w, id, addedKey(before, sess), f); err != nil {
			return nil, err
		}
	}

	for _, c := range p.Composites {
		if sess, err = applyComposite(ctx, w, id, sess, c); err != nil {
			return nil, err
		}
	}

	if p.UniqueKey != nil && len(p.UniqueKey.Columns) > 0 {
		if sess, err = applyUniqueKey(ctx, w, id, *p.UniqueKey); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func applyField(ctx context.Context, w Wizard, id, key string, f Field) (*session.Session, error) {
	field := f.Field
	if f.Skip {
		field = ""
	}
	sess, err := w.SelectField(ctx, id, key, field)
	if err != nil {
		return nil, fmt.Errorf("plan: map %s to %q: %w", key, field, err)
	}
	if f.Skip {
		return sess, nil
	}

	if len(f.LookupFields) > 0 {
		if sess, err = w.SelectLookupFields(ctx, id, key, f.LookupFields); err != nil {
			return nil, fmt.Errorf("plan: lookup fields of %s: %w", key, err)
		}
	}
	for _, lf := range sortedKeys(f.ExtraCSVFields) {
		if sess, err = w.SetExtraCSVField(ctx, id, key, lf, f.ExtraCSVFields[lf]); err != nil {
			return nil, fmt.Errorf("plan: extra column for %s.%s: %w", key, lf, err)
		}
	}
	if f.Where != "" {
		if sess, err = w.SetWhereClause(ctx, id, key, f.Where); err != nil {
			return nil, fmt.Errorf("plan: where clause of %s: %w", key, err)
		}
	}
	return sess, nil
}

func applyComposite(ctx context.Context, w Wizard, id string, sess *session.Session, c Composite) (*session.Session, error) {
	sess, err := w.Dispatch(ctx, id, mapping.SectionAdded{})
	if err != nil {
		return nil, fmt.Errorf("plan: add section: %w", err)
	}
	sid := sess.State.Sections[len(sess.State.Sections)-1].ID
	for _, col := range c.Columns {
		if sess, err = w.Dispatch(ctx, id, mapping.SectionColumnToggled{SectionID: sid, Column: col, Checked: true}); err != nil {
			return nil, fmt.Errorf("plan: composite column %s: %w", col, err)
		}
	}
	before := sess
	if sess, err = w.Dispatch(ctx, id, mapping.CompositeCreated{SectionID: sid}); err != nil {
		return nil, fmt.Errorf("plan: create composite: %w", err)
	}
	key := addedKey(before, sess)

	if sess, err = applyField(ctx, w, id, key, Field{Field: c.Field, Where: c.Where}); err != nil {
		return nil, err
	}
	for _, col := range c.Columns {
		part, ok := c.Parts[col]
		if !ok {
			continue
		}
		if sess, err = w.SetCompositePart(ctx, id, key, col, part); err != nil {
			return nil, fmt.Errorf("plan: composite part %s: %w", col, err)
		}
	}
	return sess, nil
}

func applyUniqueKey(ctx context.Context, w Wizard, id string, uk UniqueKey) (*session.Session, error) {
	mode := uk.Mode
	if mode == "" {
		mode = mapping.UniqueKeySingle
		if len(uk.Columns) > 1 {
			mode = mapping.UniqueKeyMulti
		}
	}
	actions := []mapping.Action{mapping.UniqueKeyModeSet{Mode: mode}}
	for _, col := range uk.Columns {
		actions = append(actions, mapping.UniqueKeyColumnToggled{Column: col, Checked: true})
	}
	actions = append(actions, mapping.UniqueKeyCreated{})

	var sess *session.Session
	var err error
	for _, a := range actions {
		if sess, err = w.Dispatch(ctx, id, a); err != nil {
			return nil, fmt.Errorf("plan: unique key: %w", err)
		}
	}
	return sess, nil
}

// addedKey returns the key field present in after but not in before.
func addedKey(before, after *session.Session) string {
	known := make(map[string]bool, len(before.State.Entries))
	for _, e := range before.State.Entries {
		known[e.KeyField] = true
	}
	for _, e := range after.State.Entries {
		if !known[e.KeyField] {
			return e.KeyField
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
