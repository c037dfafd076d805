package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redland-cl/registro-escolar/core"
)

// Roles
const (
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

var AllRoles = []string{RoleEditor, RoleViewer}

func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Email     string             `bson:"email" json:"email"`
	Role      string             `bson:"role" json:"role"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

func (u User) IsEditor() bool { return u.Role == RoleEditor }

// LoginUser contains the information needed to log a user in.
// Login is email-only: membership of the directory is the credential.
type LoginUser struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

func (lu *LoginUser) Validate(validate *validator.Validate) error {
	lu.Email = core.CleanString(lu.Email, true /* lower */)
	return validate.Struct(lu)
}

// UpdateUserRole defines what information may be provided to modify an existing User.
type UpdateUserRole struct {
	Role string `json:"role" form:"role" validate:"required,userrole"`
}

func (ur *UpdateUserRole) Validate(validate *validator.Validate) error {
	ur.Role = core.CleanString(ur.Role, true /* lower */)
	return validate.Struct(ur)
}
