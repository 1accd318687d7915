package mongo

import (
	"context"
	"testing"

	"kayak/internal/flights/repository"
	"kayak/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestRunMigration(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates missing collection with validator", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".$cmd.listCollections"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(t, RunMigration(context.Background(), mt.DB, logger.Discard()))

		assert.Equal(t, "listCollections", mt.GetStartedEvent().CommandName)

		create := mt.GetStartedEvent()
		require.Equal(t, "create", create.CommandName)
		assert.Equal(t, repository.CollectionName, create.Command.Lookup("create").StringValue())
		_, err := create.Command.Lookup("validator").Document().LookupErr("$jsonSchema")
		assert.NoError(t, err)

		indexes := mt.GetStartedEvent()
		require.Equal(t, "createIndexes", indexes.CommandName)
		values, err := indexes.Command.Lookup("indexes").Array().Values()
		require.NoError(t, err)
		assert.Len(t, values, len(FlightsIndexes))
	})

	mt.Run("existing collection updates validator", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".$cmd.listCollections"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "name", Value: repository.CollectionName}}),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(t, RunMigration(context.Background(), mt.DB, logger.Discard()))

		mt.GetStartedEvent()
		assert.Equal(t, "collMod", mt.GetStartedEvent().CommandName)
		assert.Equal(t, "createIndexes", mt.GetStartedEvent().CommandName)
	})

	mt.Run("index failure is returned", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".$cmd.listCollections"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 85, Message: "index options conflict"}),
		)

		err := RunMigration(context.Background(), mt.DB, logger.Discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ensure indexes for "+repository.CollectionName)
	})
}
