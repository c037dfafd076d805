package mongorepos

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/redland-cl/registro-escolar/core/user"
)

const opTimeout = 5 * time.Second

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

type userRepository struct {
	col *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *mongo.Database) user.Repository {
	return &userRepository{col: db.Collection("users")}
}

func (r *userRepository) CountUsers() (int64, error) {
	ctx, cancel := opCtx()
	defer cancel()
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *userRepository) CreateUser(usr user.User) (user.User, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := r.col.InsertOne(ctx, usr)
	if err != nil {
		return user.User{}, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		usr.ID = id
	}
	return usr, nil
}

func (r *userRepository) GetUserByEmail(email string) (user.User, error) {
	ctx, cancel := opCtx()
	defer cancel()
	return r.getByEmail(ctx, email)
}

func (r *userRepository) getByEmail(ctx context.Context, email string) (user.User, error) {
	var usr user.User
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&usr)
	if err == mongo.ErrNoDocuments {
		return user.User{}, user.ErrNotFound
	}
	return usr, err
}

func (r *userRepository) QueryUsers(limit int64) ([]user.User, error) {
	ctx, cancel := opCtx()
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "email", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	users := make([]user.User, 0)
	if err = cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateUserRole(email, role string, updatedAt time.Time) (user.User, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"role": role, "updated_at": updatedAt}},
	)
	if err != nil {
		return user.User{}, err
	}
	if res.MatchedCount == 0 {
		return user.User{}, user.ErrNotFound
	}
	return r.getByEmail(ctx, email)
}

func (r *userRepository) DeleteUsersByEmail(emails ...string) (int64, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"email": bson.M{"$in": emails}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
