// Package typemap builds and caches EntityDescriptors: the column
// classification (key, surrogate id, version token, audit columns) that the
// gateway and bulk packages need to render statements for an arbitrary Go
// struct, derived once per type via reflection and struct tags and reused
// for every subsequent row of that type.
package typemap

// Entity is any row-shaped Go value a Table gateway can operate on. It
// carries no required methods; TableNamer, IDer and
// PgsqlOnConflictConstrainter below are optional interfaces a concrete
// entity type may additionally implement.
type Entity = any

// ID is the string-renderable identity a key column's Go value exposes
// through IDer. The bulk engine does not read it and does not split
// batches on duplicate keys.
type ID interface {
	String() string
}

// IDer is implemented by entities whose primary key or surrogate id can be
// read back without going through the column descriptor.
type IDer interface {
	ID() ID
}

// TableNamer is implemented by entities that don't want their table name
// derived from their Go type name via strcase.Snake.
type TableNamer interface {
	TableName() string
}

// PgsqlOnConflictConstrainter is implemented by entities that name a
// PostgreSQL/CockroachDB constraint for ON CONFLICT. The gateway's Upsert
// does not consult it: its ON CONFLICT clause always lists the key columns.
type PgsqlOnConflictConstrainter interface {
	PgsqlOnConflictConstraint() string
}

// EntityConstraint couples a struct type T with its pointer type so generic
// functions can both range over []T and call pointer-receiver methods
// (TableName, ID, ...) on each element's address.
type EntityConstraint[T any] interface {
	Entity
	*T
}
