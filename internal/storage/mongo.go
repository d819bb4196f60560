package storage

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shivamkumar9811/NoteRex/internal/domain"
	"github.com/shivamkumar9811/NoteRex/internal/sanitize"
)

const notesCollection = "notes"

type mongoNote struct {
	OID         primitive.ObjectID `bson:"_id,omitempty"`
	domain.Note `bson:",inline"`
}

// MongoStore persists notes in a MongoDB collection. Each note is an
// independent document; concurrent writes never touch the same record.
type MongoStore struct {
	coll     *mongo.Collection
	detector *sanitize.Detector
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		coll:     client.Database(database).Collection(notesCollection),
		detector: sanitize.NewDetector(),
	}, nil
}

func (s *MongoStore) Save(ctx context.Context, note domain.Note) (domain.Note, error) {
	prepareForSave(&note)

	result, err := s.coll.InsertOne(ctx, mongoNote{Note: note})
	if err != nil {
		return domain.Note{}, fmt.Errorf("insert note: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		note.StoreID = oid.Hex()
	}

	return note, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (domain.Note, error) {
	var doc mongoNote
	err := s.coll.FindOne(ctx, idFilter(id)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.Note{}, ErrNoteNotFound
	}
	if err != nil {
		return domain.Note{}, fmt.Errorf("find note: %w", err)
	}

	note := sanitizeForRead(s.detector, doc.Note)
	note.StoreID = doc.OID.Hex()
	return note, nil
}

func (s *MongoStore) List(ctx context.Context, userID, search string) ([]domain.Note, error) {
	filter := bson.M{}
	if userID != "" && userID != domain.AnonymousUser {
		filter["userId"] = userID
	}
	if search != "" {
		filter["searchableText"] = bson.M{
			"$regex":   strings.ToLower(search),
			"$options": "i",
		}
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find notes: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoNote
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}

	notes := make([]domain.Note, 0, len(docs))
	for _, doc := range docs {
		note := sanitizeForRead(s.detector, doc.Note)
		note.StoreID = doc.OID.Hex()
		notes = append(notes, note)
	}

	return notes, nil
}

// Delete accepts either the Mongo ObjectID hex or the note's logical id.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// idFilter matches a record by native ObjectID when the id parses as one,
// and by logical id otherwise.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$or": bson.A{bson.M{"_id": oid}, bson.M{"id": id}}}
	}
	return bson.M{"id": id}
}
