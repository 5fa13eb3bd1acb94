package wizard

import (
	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/service/mapping"
	"github.com/ignite/crm-import/internal/session"
)

// View is what a client renders for a session.
type View struct {
	*session.Session

	Fields           []domain.Field        `json:"fields"`
	LookupFields     []domain.Field        `json:"lookup_fields"`
	Rows             []mapping.TableRow    `json:"rows"`
	CompositeColumns []string              `json:"composite_columns"`
	UniqueKeyOptions []string              `json:"unique_key_options"`
	UniqueKeyApplies bool                  `json:"unique_key_applies"`
	Columns          []string              `json:"mapped_columns"`
	Options          []domain.HeaderOption `json:"header_options"`
}

// NewView derives the client view of sess.
func NewView(sess *session.Session) View {
	st := sess.State
	return View{
		Session:          sess,
		Fields:           sess.Catalog.AllFields,
		LookupFields:     sess.Catalog.LookupFields(),
		Rows:             st.TableRows(),
		CompositeColumns: st.AvailableColumnsForComposite(),
		UniqueKeyOptions: st.UniqueKeyOptions(),
		UniqueKeyApplies: st.Operation.AllowsUniqueKey(),
		Columns:          st.MappedColumns(),
		Options:          st.HeaderOptions,
	}
}
