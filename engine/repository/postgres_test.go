package repository_test

import (
	"context"
	"testing"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/repository"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_GetWorkflow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	t.Run("Should return the matching workflow", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "owner", "active"}).
			AddRow("wf-1", "alice", true)
		mock.ExpectQuery("SELECT id, owner, active FROM workflows").
			WithArgs("wf-1").
			WillReturnRows(rows)

		repo := repository.NewPostgresRepository(mock)
		wf, err := repo.GetWorkflow(context.Background(), core.ID("wf-1"))
		require.NoError(t, err)
		assert.Equal(t, core.ID("wf-1"), wf.ID)
		assert.Equal(t, "alice", wf.Owner)
		assert.True(t, wf.Active)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_ListConnections(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	t.Run("Should list every connection for the workflow", func(t *testing.T) {
		cond := "SUCCESS"
		rows := pgxmock.NewRows([]string{"workflow_id", "from_node", "to_node", "condition"}).
			AddRow("wf-1", "n1", "n2", &cond).
			AddRow("wf-1", "n1", "n3", nil)
		mock.ExpectQuery("SELECT workflow_id, from_node, to_node, condition FROM workflow_connections").
			WithArgs("wf-1").
			WillReturnRows(rows)

		repo := repository.NewPostgresRepository(mock)
		conns, err := repo.ListConnections(context.Background(), core.ID("wf-1"))
		require.NoError(t, err)
		require.Len(t, conns, 2)
		assert.Equal(t, core.ID("n2"), conns[0].ToNode)
		require.NotNil(t, conns[0].Condition)
		assert.Equal(t, "SUCCESS", *conns[0].Condition)
		assert.Nil(t, conns[1].Condition)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
