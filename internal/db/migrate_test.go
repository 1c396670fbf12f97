package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	script := `-- header
CREATE TABLE a (
    id INT
);

-- between
CREATE INDEX b ON a (id);
SELECT 1`

	got := SplitStatements(script)
	require.Len(t, got, 3)
	assert.Equal(t, "CREATE TABLE a (\nid INT\n)", got[0])
	assert.Equal(t, "CREATE INDEX b ON a (id)", got[1])
	assert.Equal(t, "SELECT 1", got[2])
}

func TestEmbeddedSchema(t *testing.T) {
	stmts := SplitStatements(Schema())
	require.NotEmpty(t, stmts)

	var tables []string
	for _, s := range stmts {
		assert.NotContains(t, s, "--")
		if name, ok := strings.CutPrefix(s, "CREATE TABLE IF NOT EXISTS "); ok {
			tables = append(tables, strings.Fields(name)[0])
		}
	}
	assert.Equal(t, []string{
		"users", "patients", "audiologists", "schedules", "time_slots", "appointments",
		"medical_records", "hearing_tests", "audiogram_data", "products", "prescriptions",
		"inventory_transactions", "orders", "order_items", "invoices", "payments",
	}, tables)
	assert.Contains(t, Schema(), "WHERE status IN ('pending', 'confirmed')")
}
