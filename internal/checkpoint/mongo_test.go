package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var mongoTestTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newMockRepo(mt *mtest.T) *MongoRepository {
	return &MongoRepository{
		client: mt.Client,
		coll:   mt.Coll,
		runID:  "run-1",
		now:    func() time.Time { return mongoTestTime },
	}
}

func duplicateKey() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: checkpoints index: stage_1_version_-1",
	})
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("write inserts a versioned snapshot", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		version, err := newMockRepo(mt).Write(context.Background(), StageRaw, []row{{Name: "a"}, {Name: "b"}})
		require.NoError(mt, err)
		assert.Equal(mt, NewVersion(mongoTestTime), version)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "insert", started.CommandName)
	})

	mt.Run("same millisecond gets a suffixed version", func(mt *mtest.T) {
		mt.AddMockResponses(duplicateKey(), duplicateKey(), mtest.CreateSuccessResponse())

		version, err := newMockRepo(mt).Write(context.Background(), StageEnriched, []row{{Name: "a"}})
		require.NoError(mt, err)
		assert.Equal(mt, NewVersion(mongoTestTime)+"-003", version)
		assert.Len(mt, mt.GetAllStartedEvents(), 3)
	})

	mt.Run("other write errors are returned", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))

		_, err := newMockRepo(mt).Write(context.Background(), StageRaw, []row{{Name: "a"}})
		require.Error(mt, err)
		assert.Len(mt, mt.GetAllStartedEvents(), 1)
	})

	mt.Run("unversioned stage is replaced", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		version, err := newMockRepo(mt).Write(context.Background(), StageFailedSeed, []row{})
		require.NoError(mt, err)
		assert.Empty(mt, version)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})

	mt.Run("latest decodes the newest snapshot", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "stage", Value: string(StageRaw)},
			{Key: "version", Value: "2026-01-01T00-00-00-000Z-002"},
			{Key: "count", Value: 1},
			{Key: "payload", Value: `[{"name":"npm"}]`},
		}))

		var got []row
		version, err := newMockRepo(mt).Latest(context.Background(), StageRaw, &got)
		require.NoError(mt, err)
		assert.Equal(mt, "2026-01-01T00-00-00-000Z-002", version)
		assert.Equal(mt, []row{{Name: "npm"}}, got)
	})

	mt.Run("latest without snapshots", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		var got []row
		_, err := newMockRepo(mt).Latest(context.Background(), StageEnriched, &got)
		assert.ErrorIs(mt, err, ErrNoCheckpoint)
	})
}
