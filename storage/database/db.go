package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/redland-cl/registro-escolar/core"
)

const connectTimeout = 10 * time.Second

// Open connects the process-scoped mongo client and returns a handle on the
// application database. The client is opened once at process start and must
// be released with Close at shutdown.
func Open(conf *core.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.URL))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to document store")
	}
	if err = ping(ctx, client); err != nil {
		return nil, err
	}
	return client.Database(conf.Database.Name), nil
}

// ping waits for the store to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = client.Ping(ctx, readpref.Primary())
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "document store ping timeout")
	}
	return nil
}

func Close(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return db.Client().Disconnect(ctx)
}
