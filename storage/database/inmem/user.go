package inmemdb

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redland-cl/registro-escolar/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.users}
}

func (r *userRepository) CountUsers() (int64, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()
	return int64(len(r.db.t)), nil
}

func (r *userRepository) CreateUser(usr user.User) (user.User, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	usr.ID = primitive.NewObjectID()
	r.db.t[usr.Email] = &usr
	return usr, nil
}

func (r *userRepository) GetUserByEmail(email string) (user.User, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if usr, ok := r.db.t[email]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (r *userRepository) QueryUsers(limit int64) ([]user.User, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	res := make([]user.User, 0, len(r.db.t))
	for _, usr := range r.db.t {
		res = append(res, *usr)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Email < res[j].Email })
	if limit > 0 && int64(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *userRepository) UpdateUserRole(email, role string, updatedAt time.Time) (user.User, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	usr, ok := r.db.t[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.Role = role
	usr.UpdatedAt = updatedAt
	return *usr, nil
}

func (r *userRepository) DeleteUsersByEmail(emails ...string) (int64, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	var n int64
	for _, email := range emails {
		if _, ok := r.db.t[email]; ok {
			delete(r.db.t, email)
			n++
		}
	}
	return n, nil
}
