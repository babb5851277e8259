package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/portal"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for
// more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock, zap.NewNop()), mock
}

func TestEnsureSchema(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(flexibleSQLMatcher("CREATE TABLE IF NOT EXISTS shipments")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertShipments(t *testing.T) {
	st, mock := newMockStore(t)

	updated := time.Date(2024, 1, 5, 0, 0, 0, 0, time.Local)
	shipments := []portal.ShipmentSummary{
		{TrackingNumber: "12345678901", CustomerName: "Maria Huber", Status: "Zugestellt", Location: "Wien", LastUpdate: &updated, IsOverdue: true},
		{TrackingNumber: "98765432109", CustomerName: "Unbekannt", Status: "Unterwegs"},
	}

	upsert := flexibleSQLMatcher("INSERT INTO shipments")
	mock.ExpectExec(upsert).
		WithArgs("12345678901", "Maria Huber", "Zugestellt", "Wien", &updated, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(upsert).
		WithArgs("98765432109", "Unbekannt", "Unterwegs", "", (*time.Time)(nil), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.UpsertShipments(context.Background(), shipments))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertShipmentsPropagatesFailure(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(flexibleSQLMatcher("INSERT INTO shipments")).
		WithArgs("12345678901", "Maria Huber", "Zugestellt", "", (*time.Time)(nil), false).
		WillReturnError(errors.New("connection reset"))

	err := st.UpsertShipments(context.Background(), []portal.ShipmentSummary{
		{TrackingNumber: "12345678901", CustomerName: "Maria Huber", Status: "Zugestellt"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "12345678901")
}

func TestListShipments(t *testing.T) {
	st, mock := newMockStore(t)

	updated := time.Date(2024, 1, 5, 0, 0, 0, 0, time.Local)
	rows := pgxmock.NewRows([]string{"tracking_number", "customer_name", "status", "location", "last_update", "is_overdue"}).
		AddRow("12345678901", "Maria Huber", "Zugestellt", "Wien", &updated, true).
		AddRow("98765432109", "Müller GmbH", "Unterwegs", "", (*time.Time)(nil), false)

	mock.ExpectQuery(flexibleSQLMatcher("SELECT tracking_number, customer_name, status, location, last_update, is_overdue FROM shipments")).
		WillReturnRows(rows)

	got, err := st.ListShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "12345678901", got[0].TrackingNumber)
	assert.True(t, got[0].IsOverdue)
	require.NotNil(t, got[0].LastUpdate)
	assert.Equal(t, updated, *got[0].LastUpdate)

	assert.Equal(t, "Müller GmbH", got[1].CustomerName)
	assert.Nil(t, got[1].LastUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOlderThan(t *testing.T) {
	st, mock := newMockStore(t)

	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(flexibleSQLMatcher("DELETE FROM shipments WHERE scraped_at <")).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := st.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
