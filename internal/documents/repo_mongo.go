package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"studydocs-backend/internal/shared/storage/mongodb"
)

// MongoRepo implements Repo on MongoDB. Counts come from $lookup stages
// against the flashcards and quizzes collections.
type MongoRepo struct {
	docs       *mongo.Collection
	flashcards *mongo.Collection
	quizzes    *mongo.Collection
}

// NewMongoRepo binds the repo to db.
func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		docs:       db.Collection(mongodb.DocumentsCollection),
		flashcards: db.Collection(mongodb.FlashcardsCollection),
		quizzes:    db.Collection(mongodb.QuizzesCollection),
	}
}

type mongoDocument struct {
	ID            string    `bson:"_id"`
	UserID        string    `bson:"userId"`
	Title         string    `bson:"title"`
	FileName      string    `bson:"fileName"`
	FilePath      string    `bson:"filePath"`
	StorageKey    string    `bson:"storageKey"`
	FileSize      int64     `bson:"fileSize"`
	Status        string    `bson:"status"`
	ExtractedText *string   `bson:"extractedText,omitempty"`
	Chunks        []string  `bson:"chunks,omitempty"`
	UploadDate    time.Time `bson:"uploadDate"`
	LastAccessed  time.Time `bson:"lastAccessed"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

type mongoDocumentWithCounts struct {
	mongoDocument  `bson:",inline"`
	FlashcardCount int `bson:"flashcardCount"`
	QuizCount      int `bson:"quizCount"`
}

func toMongo(doc Document) mongoDocument {
	return mongoDocument{
		ID:            doc.ID,
		UserID:        doc.UserID,
		Title:         doc.Title,
		FileName:      doc.FileName,
		FilePath:      doc.FilePath,
		StorageKey:    doc.StorageKey,
		FileSize:      doc.FileSize,
		Status:        string(doc.Status),
		ExtractedText: doc.ExtractedText,
		Chunks:        doc.Chunks,
		UploadDate:    doc.UploadDate,
		LastAccessed:  doc.LastAccessed,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func (m mongoDocument) toDocument() Document {
	return Document{
		ID:            m.ID,
		UserID:        m.UserID,
		Title:         m.Title,
		FileName:      m.FileName,
		FilePath:      m.FilePath,
		StorageKey:    m.StorageKey,
		FileSize:      m.FileSize,
		Status:        Status(m.Status),
		ExtractedText: m.ExtractedText,
		Chunks:        m.Chunks,
		UploadDate:    m.UploadDate.UTC(),
		LastAccessed:  m.LastAccessed.UTC(),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

// EnsureIndexes creates the indexes the queries rely on.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.docs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "uploadDate", Value: -1}},
	}); err != nil {
		return fmt.Errorf("documents index: %w", err)
	}
	ref := mongo.IndexModel{Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "userId", Value: 1}}}
	if _, err := r.flashcards.Indexes().CreateOne(ctx, ref); err != nil {
		return fmt.Errorf("flashcards index: %w", err)
	}
	if _, err := r.quizzes.Indexes().CreateOne(ctx, ref); err != nil {
		return fmt.Errorf("quizzes index: %w", err)
	}
	return nil
}

// Create inserts a new document.
func (r *MongoRepo) Create(ctx context.Context, doc Document) error {
	_, err := r.docs.InsertOne(ctx, toMongo(doc))
	return err
}

// GetByID fetches a document by ID for a user.
func (r *MongoRepo) GetByID(ctx context.Context, userID, id string) (Document, error) {
	var m mongoDocument
	err := r.docs.FindOne(ctx, ownerFilter(userID, id)).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return m.toDocument(), nil
}

// GetWithCounts fetches a document joined with its flashcard/quiz counts.
func (r *MongoRepo) GetWithCounts(ctx context.Context, userID, id string) (DocumentWithCounts, error) {
	out, err := r.aggregate(ctx, getPipeline(userID, id))
	if err != nil {
		return DocumentWithCounts{}, err
	}
	if len(out) == 0 {
		return DocumentWithCounts{}, ErrNotFound
	}
	return out[0], nil
}

// ListWithCounts lists a user's documents newest first, without text or chunks.
func (r *MongoRepo) ListWithCounts(ctx context.Context, userID string) ([]DocumentWithCounts, error) {
	return r.aggregate(ctx, listPipeline(userID))
}

func (r *MongoRepo) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]DocumentWithCounts, error) {
	cursor, err := r.docs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []mongoDocumentWithCounts
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]DocumentWithCounts, 0, len(rows))
	for _, row := range rows {
		out = append(out, DocumentWithCounts{
			Document:       row.mongoDocument.toDocument(),
			FlashcardCount: row.FlashcardCount,
			QuizCount:      row.QuizCount,
		})
	}
	return out, nil
}

// CompleteProcessing stores the extraction result and moves the document to ready.
func (r *MongoRepo) CompleteProcessing(ctx context.Context, id, text string, chunks []string) error {
	if chunks == nil {
		chunks = []string{}
	}
	return r.transition(ctx, id, bson.D{
		{Key: "status", Value: string(StatusReady)},
		{Key: "extractedText", Value: text},
		{Key: "chunks", Value: chunks},
		{Key: "updatedAt", Value: time.Now().UTC()},
	})
}

// FailProcessing moves the document to failed.
func (r *MongoRepo) FailProcessing(ctx context.Context, id string) error {
	return r.transition(ctx, id, bson.D{
		{Key: "status", Value: string(StatusFailed)},
		{Key: "updatedAt", Value: time.Now().UTC()},
	})
}

func (r *MongoRepo) transition(ctx context.Context, id string, set bson.D) error {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: string(StatusProcessing)}}
	res, err := r.docs.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.docs.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrNotProcessing
}

// TouchLastAccessed updates lastAccessed for a user's document.
func (r *MongoRepo) TouchLastAccessed(ctx context.Context, userID, id string, at time.Time) error {
	res, err := r.docs.UpdateOne(ctx, ownerFilter(userID, id), bson.D{
		{Key: "$set", Value: bson.D{{Key: "lastAccessed", Value: at}}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user's document. Flashcards and quizzes are not touched.
func (r *MongoRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.docs.DeleteOne(ctx, ownerFilter(userID, id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func ownerFilter(userID, id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "userId", Value: userID}}
}

func getPipeline(userID, id string) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: ownerFilter(userID, id)}},
		{{Key: "$limit", Value: 1}},
	}
	pipeline = append(pipeline, countStages()...)
	return append(pipeline, bson.D{{Key: "$project", Value: bson.D{
		{Key: "flashcards", Value: 0},
		{Key: "quizzes", Value: 0},
	}}})
}

func listPipeline(userID string) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userId", Value: userID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "uploadDate", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "extractedText", Value: 0},
			{Key: "chunks", Value: 0},
		}}},
	}
	pipeline = append(pipeline, countStages()...)
	return append(pipeline, bson.D{{Key: "$project", Value: bson.D{
		{Key: "flashcards", Value: 0},
		{Key: "quizzes", Value: 0},
	}}})
}

// countStages joins flashcards and quizzes owned by the document's user and
// turns the joined arrays into counts.
func countStages() []bson.D {
	return []bson.D{
		lookupByDocument(mongodb.FlashcardsCollection, "flashcards"),
		lookupByDocument(mongodb.QuizzesCollection, "quizzes"),
		{{Key: "$addFields", Value: bson.D{
			{Key: "flashcardCount", Value: bson.D{{Key: "$size", Value: "$flashcards"}}},
			{Key: "quizCount", Value: bson.D{{Key: "$size", Value: "$quizzes"}}},
		}}},
	}
}

func lookupByDocument(from, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: from},
		{Key: "let", Value: bson.D{{Key: "docId", Value: "$_id"}, {Key: "ownerId", Value: "$userId"}}},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$documentId", "$$docId"}}},
				bson.D{{Key: "$eq", Value: bson.A{"$userId", "$$ownerId"}}},
			}}}}}}},
			bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 1}}}},
		}},
		{Key: "as", Value: as},
	}}}
}

var _ Repo = (*MongoRepo)(nil)
