package inmemdb

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redland-cl/registro-escolar/core/registro"
	"github.com/redland-cl/registro-escolar/core/user"
)

// DB is an in-memory stand-in for the document store, used in tests and
// local development.
type (
	DB struct {
		users       *userTable
		activities  *activityTable
		evaluations *evaluationTable
	}

	userTable struct {
		t     map[string]*user.User // by email
		mutex sync.RWMutex
	}

	activityTable struct {
		t     map[primitive.ObjectID]*registro.Activity
		mutex sync.RWMutex
	}

	evaluationTable struct {
		t     map[primitive.ObjectID]*registro.Evaluation
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		users:       &userTable{t: make(map[string]*user.User)},
		activities:  &activityTable{t: make(map[primitive.ObjectID]*registro.Activity)},
		evaluations: &evaluationTable{t: make(map[primitive.ObjectID]*registro.Evaluation)},
	}
}
