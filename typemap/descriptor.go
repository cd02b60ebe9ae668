package typemap

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusdata/rdbx/dialect"
)

// ColumnRole classifies a column's part in statement generation: which
// columns form the WHERE clause of an UPDATE/DELETE/UPSERT, which one (if
// any) is a last-insert-id target, which one carries an optimistic
// concurrency token, and which are tagged as creation/update audit columns.
// Nothing fills the audit columns automatically on write; the gateway
// writes them from the entity's fields like any other column.
type ColumnRole int

const (
	RoleRegular ColumnRole = iota
	RolePrimaryKey
	RoleSurrogateID
	RoleVersion
	RoleAuditCreated
	RoleAuditUpdated
)

// ColumnDescriptor is one struct field's database-facing identity: its
// column name, its role, the semantic type CreateParameter needs, and the
// reflect.StructField index path used to read/write it.
type ColumnDescriptor struct {
	Name       string
	FieldIndex []int
	GoType     reflect.Type
	Role       ColumnRole
	Type       dialect.SemanticType
	Nullable   bool
}

// EntityDescriptor is the fully classified column set for one Go struct
// type, built once by Registry.Describe and cached for the lifetime of the
// process.
type EntityDescriptor struct {
	GoType    reflect.Type
	Table     string
	Columns   []ColumnDescriptor
	byName    map[string]int
	keyIdx    []int // indices into Columns forming the WHERE clause
	surrogate int   // index into Columns, or -1
	version   int   // index into Columns, or -1
}

// Column looks up a column by its database name.
func (e *EntityDescriptor) Column(name string) (ColumnDescriptor, bool) {
	if i, ok := e.byName[name]; ok {
		return e.Columns[i], true
	}
	return ColumnDescriptor{}, false
}

// ColumnNames returns every column name in struct declaration order.
func (e *EntityDescriptor) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyColumns returns the columns that uniquely identify a row: the
// surrogate id column if the entity has one, otherwise every column tagged
// as a primary key part.
func (e *EntityDescriptor) KeyColumns() []ColumnDescriptor {
	if e.surrogate >= 0 {
		return []ColumnDescriptor{e.Columns[e.surrogate]}
	}
	out := make([]ColumnDescriptor, len(e.keyIdx))
	for i, idx := range e.keyIdx {
		out[i] = e.Columns[idx]
	}
	return out
}

// SurrogateID returns the auto-generated/sequence-backed id column, if any.
func (e *EntityDescriptor) SurrogateID() (ColumnDescriptor, bool) {
	if e.surrogate < 0 {
		return ColumnDescriptor{}, false
	}
	return e.Columns[e.surrogate], true
}

// VersionColumn returns the optimistic-concurrency token column, if any.
func (e *EntityDescriptor) VersionColumn() (ColumnDescriptor, bool) {
	if e.version < 0 {
		return ColumnDescriptor{}, false
	}
	return e.Columns[e.version], true
}

// FieldValue reads column c's value out of entity, which must be a struct
// or pointer-to-struct of e.GoType.
func FieldValue(entity any, c ColumnDescriptor) any {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v.FieldByIndex(c.FieldIndex).Interface()
}

// FieldAddr returns an addressable pointer to column c's field on entity,
// which must be a non-nil pointer to a struct of e.GoType. Used as a
// *sql.Rows.Scan destination when materializing a row straight into a Go
// value without an intermediate map.
func FieldAddr(entity any, c ColumnDescriptor) any {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v.FieldByIndex(c.FieldIndex).Addr().Interface()
}

// SetSurrogateID writes a freshly generated integer surrogate id (as
// returned by sql.Result.LastInsertId) into entity's surrogate column,
// converting it to that field's concrete integer type.
func SetSurrogateID(entity any, c ColumnDescriptor, id int64) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	f := v.FieldByIndex(c.FieldIndex)
	f.Set(reflect.ValueOf(id).Convert(f.Type()))
}

// inferSemanticType maps a Go field type to the portable SemanticType a
// dialect's CreateParameter expects. It is the only source of a column's
// SemanticType; no struct tag overrides it.
func inferSemanticType(t reflect.Type) dialect.SemanticType {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t {
	case reflect.TypeOf(uuid.UUID{}):
		return dialect.TypeGUID
	case reflect.TypeOf(time.Time{}):
		return dialect.TypeDateTime
	}
	switch t.Kind() {
	case reflect.Bool:
		return dialect.TypeBoolean
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return dialect.TypeInt16
	case reflect.Int, reflect.Int32, reflect.Uint16, reflect.Uint32:
		return dialect.TypeInt32
	case reflect.Int64, reflect.Uint, reflect.Uint64:
		return dialect.TypeInt64
	case reflect.Float32, reflect.Float64:
		return dialect.TypeDecimal
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return dialect.TypeBinary
		}
		return dialect.TypeJSON
	case reflect.Struct, reflect.Map:
		return dialect.TypeJSON
	default:
		return dialect.TypeString
	}
}

func roleFromTag(tag string) (ColumnRole, error) {
	switch tag {
	case "", "regular":
		return RoleRegular, nil
	case "pk":
		return RolePrimaryKey, nil
	case "surrogate":
		return RoleSurrogateID, nil
	case "version":
		return RoleVersion, nil
	case "created":
		return RoleAuditCreated, nil
	case "updated":
		return RoleAuditUpdated, nil
	default:
		return RoleRegular, fmt.Errorf("typemap: unknown dbrole tag %q", tag)
	}
}
