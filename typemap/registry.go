package typemap

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/nimbusdata/rdbx/strcase"
)

// Registry builds and caches one EntityDescriptor per Go struct type.
// Describe is safe to call concurrently; the underlying cache is a
// sync.Map-style read-mostly map guarded by a RWMutex, matching the
// single-build-many-reads access pattern every caller has.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[reflect.Type]*EntityDescriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[reflect.Type]*EntityDescriptor)}
}

// Describe returns the EntityDescriptor for entity's type, building and
// validating it on first use and returning the cached descriptor on every
// subsequent call for the same type.
func (r *Registry) Describe(entity any) (*EntityDescriptor, error) {
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.RLock()
	d, ok := r.descriptors[t]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.descriptors[t]; ok {
		return d, nil
	}

	d, err := buildDescriptor(t, entity)
	if err != nil {
		return nil, err
	}
	r.descriptors[t] = d
	return d, nil
}

func buildDescriptor(t reflect.Type, entity any) (*EntityDescriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("typemap: %s is not a struct", t)
	}

	d := &EntityDescriptor{
		GoType:    t,
		byName:    make(map[string]int),
		surrogate: -1,
		version:   -1,
	}

	if tn, ok := entity.(TableNamer); ok {
		d.Table = tn.TableName()
	} else {
		d.Table = strcase.Snake(t.Name())
	}

	if err := collectColumns(t, nil, d); err != nil {
		return nil, err
	}

	if len(d.keyIdx) == 0 && d.surrogate < 0 {
		return nil, fmt.Errorf("typemap: %s has no primary key or surrogate id column (tag at least one field `dbrole:\"pk\"` or `dbrole:\"surrogate\"`)", t)
	}
	if len(d.keyIdx) > 0 && d.surrogate >= 0 {
		return nil, fmt.Errorf("typemap: %s declares both primary-key columns and a surrogate id column; pick one identity strategy", t)
	}

	return d, nil
}

// collectColumns walks t's fields, recursing into anonymous embedded
// structs so embedding (the teacher's idiom for shared audit columns)
// flattens into the parent's column list, the way sqlx's reflectx.Mapper
// does for its own Columns() output.
func collectColumns(t reflect.Type, index []int, d *EntityDescriptor) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fieldIndex := append(append([]int{}, index...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if err := collectColumns(f.Type, fieldIndex, d); err != nil {
				return err
			}
			continue
		}

		name, ok := f.Tag.Lookup("db")
		if !ok || name == "-" {
			continue
		}

		role, err := roleFromTag(f.Tag.Get("dbrole"))
		if err != nil {
			return fmt.Errorf("typemap: %s.%s: %w", t, f.Name, err)
		}

		if _, dup := d.byName[name]; dup {
			return fmt.Errorf("typemap: %s: duplicate column name %q", t, name)
		}

		semanticType := inferSemanticType(f.Type)
		nullable := f.Type.Kind() == reflect.Ptr

		col := ColumnDescriptor{
			Name:       name,
			FieldIndex: fieldIndex,
			GoType:     f.Type,
			Role:       role,
			Type:       semanticType,
			Nullable:   nullable,
		}

		idx := len(d.Columns)
		d.Columns = append(d.Columns, col)
		d.byName[name] = idx

		switch role {
		case RolePrimaryKey:
			d.keyIdx = append(d.keyIdx, idx)
		case RoleSurrogateID:
			if d.surrogate >= 0 {
				return fmt.Errorf("typemap: %s declares more than one surrogate id column", t)
			}
			d.surrogate = idx
		case RoleVersion:
			if d.version >= 0 {
				return fmt.Errorf("typemap: %s declares more than one version column", t)
			}
			d.version = idx
		}
	}
	return nil
}
