package users

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/kbukum/base-api/errors"
)

const createIndexTimeout = 5 * time.Second

// mongoDuplicateKey is the Mongo server error code for a unique index violation.
const mongoDuplicateKey = 11000

// MongoStore implements Store on a Mongo collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates the store and ensures the unique index on email.
func NewMongoStore(database *mongo.Database) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), createIndexTimeout)
	defer cancel()

	unique := true
	collection := database.Collection(CollectionName)
	if _, err := collection.Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.M{"email": 1},
			Options: &options.IndexOptions{
				Unique: &unique,
			},
		},
	); err != nil {
		return nil, apperrors.Database(err).WithDetail("operation", "create email index")
	}
	return &MongoStore{collection: collection}, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (User, error) {
	user := User{}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user, apperrors.NotFound("user", id)
	}

	res := s.collection.FindOne(ctx, bson.M{"_id": oid})
	if res.Err() == mongo.ErrNoDocuments {
		return user, apperrors.NotFound("user", id)
	}
	if res.Err() != nil {
		return user, apperrors.Database(res.Err())
	}
	if err := res.Decode(&user); err != nil {
		return user, apperrors.Database(err)
	}
	return user, nil
}

func (s *MongoStore) GetByEmail(ctx context.Context, email string) (User, error) {
	user := User{}
	res := s.collection.FindOne(ctx, bson.M{"email": email})
	if res.Err() == mongo.ErrNoDocuments {
		return user, apperrors.NotFound("user", "").WithDetail("email", email)
	}
	if res.Err() != nil {
		return user, apperrors.Database(res.Err())
	}
	if err := res.Decode(&user); err != nil {
		return user, apperrors.Database(err)
	}
	return user, nil
}

func (s *MongoStore) Create(ctx context.Context, user User) (User, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if isDuplicateKey(err) {
			return User{}, apperrors.AlreadyExists("user").WithDetail("email", user.Email)
		}
		return User{}, apperrors.Database(err)
	}
	return user, nil
}

func (s *MongoStore) Update(ctx context.Context, user User) error {
	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{"email": user.Email},
		bson.M{"$set": bson.M{
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"role":       user.Role,
			"org_id":     user.OrgID,
		}},
	)
	if err != nil {
		return apperrors.Database(err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", "").WithDetail("email", user.Email)
	}
	return nil
}

func (s *MongoStore) DeleteByEmail(ctx context.Context, email string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"email": email})
	if err != nil {
		return apperrors.Database(err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("user", "").WithDetail("email", email)
	}
	return nil
}

func isDuplicateKey(err error) bool {
	writeException, ok := err.(mongo.WriteException)
	if !ok {
		return false
	}
	for _, we := range writeException.WriteErrors {
		if we.Code == mongoDuplicateKey {
			return true
		}
	}
	return false
}
