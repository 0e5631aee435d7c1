//go:build integration

package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/nudges/internal/database/dbtest"
	"github.com/sitecrew/nudges/snapshot"
)

func TestSQLSourcePostgres(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Postgres(t)

	db.MustExecContext(ctx, `INSERT INTO candidates (id, first_name, last_name, start_date, project_id, compliance)
		VALUES ('cand-1', 'Aroha', 'Ngata', '13/03/2025', 'proj-1', '{"site_safety_expiry": "2025-03-20"}')`)
	db.MustExecContext(ctx, `INSERT INTO projects (id, name, start_date, ssa_status)
		VALUES ('proj-1', 'Harbour Tower', '2025-03-15T00:00:00Z', 'Pending')`)
	db.MustExecContext(ctx, `INSERT INTO clients (id, name, last_contact) VALUES ('client-1', 'Fletcher', '2025-01-19')`)

	snap, err := snapshot.Load(ctx, snapshot.NewSQLSource(db))
	require.NoError(t, err)

	require.Len(t, snap.Candidates, 1)
	c := snap.Candidates[0]
	assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), c.StartDate)
	assert.Equal(t, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), c.Compliance.SiteSafetyExpiry, "JSONB compliance is decoded")

	require.Len(t, snap.Projects, 1)
	assert.Equal(t, "Pending", snap.Projects[0].SSAStatus)
	assert.Len(t, snap.AssignedTo(snap.Projects[0]), 1)

	require.Len(t, snap.Clients, 1)
	assert.Equal(t, time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), snap.Clients[0].LastContact)
}
