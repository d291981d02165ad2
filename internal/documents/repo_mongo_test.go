package documents

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"studydocs-backend/internal/shared/storage/mongodb"
)

func stageNames(p []bson.D) []string {
	out := make([]string, 0, len(p))
	for _, stage := range p {
		out = append(out, stage[0].Key)
	}
	return out
}

func TestListPipelineShape(t *testing.T) {
	p := listPipeline("alice")

	assert.Equal(t, []string{"$match", "$sort", "$project", "$lookup", "$lookup", "$addFields", "$project"}, stageNames(p))
	assert.Equal(t, bson.D{{Key: "userId", Value: "alice"}}, p[0][0].Value)
	assert.Equal(t, bson.D{{Key: "uploadDate", Value: -1}, {Key: "_id", Value: -1}}, p[1][0].Value)
	assert.Equal(t, bson.D{{Key: "extractedText", Value: 0}, {Key: "chunks", Value: 0}}, p[2][0].Value)
}

func TestGetPipelineIsOwnerScoped(t *testing.T) {
	p := getPipeline("alice", "doc-1")

	assert.Equal(t, []string{"$match", "$limit", "$lookup", "$lookup", "$addFields", "$project"}, stageNames(p))
	assert.Equal(t, ownerFilter("alice", "doc-1"), p[0][0].Value)
}

func TestLookupJoinsOnDocumentAndOwner(t *testing.T) {
	stage := lookupByDocument("flashcards", "flashcards")
	lookup, ok := stage[0].Value.(bson.D)
	require.True(t, ok)

	fields := map[string]any{}
	for _, e := range lookup {
		fields[e.Key] = e.Value
	}
	assert.Equal(t, "flashcards", fields["from"])
	assert.Equal(t, "flashcards", fields["as"])
	assert.Equal(t, bson.D{{Key: "docId", Value: "$_id"}, {Key: "ownerId", Value: "$userId"}}, fields["let"])
}

func TestMongoRepoContract(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := mongodb.Connect(ctx, uri, "studydocs_test_"+uuid.NewString()[:8], mongodb.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		mongodb.Disconnect(client)
	})

	repo := NewMongoRepo(db)
	require.NoError(t, repo.EnsureIndexes(ctx))

	runRepoContract(t, repo, seeder{
		flashcard: func(t *testing.T, f Flashcard) {
			_, err := db.Collection(mongodb.FlashcardsCollection).InsertOne(ctx, bson.D{
				{Key: "_id", Value: f.ID}, {Key: "userId", Value: f.UserID}, {Key: "documentId", Value: f.DocumentID},
			})
			require.NoError(t, err)
		},
		quiz: func(t *testing.T, q Quiz) {
			_, err := db.Collection(mongodb.QuizzesCollection).InsertOne(ctx, bson.D{
				{Key: "_id", Value: q.ID}, {Key: "userId", Value: q.UserID}, {Key: "documentId", Value: q.DocumentID},
			})
			require.NoError(t, err)
		},
	})
}
