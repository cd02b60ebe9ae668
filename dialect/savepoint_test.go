package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSavepointSQL(t *testing.T) {
	subtests := []struct {
		name       string
		d          Dialect
		savepoint  string
		release    string
		rollbackTo string
	}{
		{"ansi_default_postgres", NewPostgres(), "SAVEPOINT sp1", "RELEASE SAVEPOINT sp1", "ROLLBACK TO SAVEPOINT sp1"},
		{"ansi_default_mysql", NewMySQL(), "SAVEPOINT sp1", "RELEASE SAVEPOINT sp1", "ROLLBACK TO SAVEPOINT sp1"},
		{"sqlserver", NewSqlServer(), "SAVE TRANSACTION sp1", "", "ROLLBACK TRANSACTION sp1"},
		{"oracle", NewOracle(), "SAVEPOINT sp1", "", "ROLLBACK TO SAVEPOINT sp1"},
	}
	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			assert.Equal(t, st.savepoint, st.d.SavepointSQL("sp1"))
			assert.Equal(t, st.release, st.d.ReleaseSavepointSQL("sp1"))
			assert.Equal(t, st.rollbackTo, st.d.RollbackToSavepointSQL("sp1"))
		})
	}
}

func TestUpsertIncomingColumnMergeDialectsUseSourceAlias(t *testing.T) {
	subtests := []struct {
		name string
		d    Dialect
	}{
		{"sqlserver", NewSqlServer()},
		{"oracle", NewOracle()},
		{"firebird", NewFirebird()},
	}
	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			assert.Equal(t, `source."col"`, st.d.UpsertIncomingColumn("col"))
		})
	}
}
