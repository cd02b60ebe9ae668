package typemap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdata/rdbx/typemap"
)

type host struct {
	ID        int64  `db:"id" dbrole:"surrogate"`
	Name      string `db:"name"`
	CreatedAt int64  `db:"created_at" dbrole:"created"`
}

func (host) TableName() string { return "host" }

type compositeKeyRow struct {
	TenantID int64 `db:"tenant_id" dbrole:"pk"`
	HostID   int64 `db:"host_id" dbrole:"pk"`
	Name     string `db:"name"`
}

type noKeyRow struct {
	Name string `db:"name"`
}

func TestDescribeSurrogate(t *testing.T) {
	r := typemap.NewRegistry()

	d, err := r.Describe(&host{})
	require.NoError(t, err)
	assert.Equal(t, "host", d.Table)
	assert.Equal(t, []string{"id", "name", "created_at"}, d.ColumnNames())

	surrogate, ok := d.SurrogateID()
	require.True(t, ok)
	assert.Equal(t, "id", surrogate.Name)

	key := d.KeyColumns()
	require.Len(t, key, 1)
	assert.Equal(t, "id", key[0].Name)
}

func TestDescribeCompositeKey(t *testing.T) {
	r := typemap.NewRegistry()

	d, err := r.Describe(&compositeKeyRow{})
	require.NoError(t, err)

	key := d.KeyColumns()
	require.Len(t, key, 2)
	assert.Equal(t, "tenant_id", key[0].Name)
	assert.Equal(t, "host_id", key[1].Name)

	_, ok := d.SurrogateID()
	assert.False(t, ok)
}

func TestDescribeNoKeyIsError(t *testing.T) {
	r := typemap.NewRegistry()

	_, err := r.Describe(&noKeyRow{})
	assert.Error(t, err)
}

func TestDescribeIsCached(t *testing.T) {
	r := typemap.NewRegistry()

	d1, err := r.Describe(&host{})
	require.NoError(t, err)
	d2, err := r.Describe(&host{})
	require.NoError(t, err)
	assert.Same(t, d1, d2)
}
