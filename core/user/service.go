package user

import (
	"errors"
	"strings"
	"time"

	"github.com/redland-cl/registro-escolar/core"
)

var (
	// errors
	ErrNotFound         = errors.New("user not found")
	ErrAdminExists      = errors.New("admin already exists, use CSV upload to add more users")
	ErrDomainNotAllowed = errors.New("email domain not allowed")
	ErrAccountDisabled  = errors.New("user account is disabled")
	ErrInvalidRole      = errors.New("role must be 'editor' or 'viewer'")
	ErrSelfDeletion     = errors.New("cannot delete your own account")
)

type (
	Repository interface {
		CountUsers() (int64, error)
		CreateUser(usr User) (User, error)
		GetUserByEmail(email string) (User, error)
		// QueryUsers returns users up to the given limit; 0 means no limit.
		QueryUsers(limit int64) ([]User, error)
		UpdateUserRole(email, role string, updatedAt time.Time) (User, error)
		DeleteUsersByEmail(emails ...string) (int64, error)
	}

	Service struct {
		repo Repository

		// allowedDomain restricts emails on login/bootstrap/import when set;
		// it is empty outside production.
		allowedDomain string
		dataDir       string
	}

	Stats struct {
		Total  int64    `json:"total_users"`
		Sample []string `json:"sample"`
	}
)

const defaultListLimit = 100

func NewService(repo Repository, conf *core.Config) *Service {
	svc := &Service{repo: repo, dataDir: conf.WorkDir}
	if conf.Production() {
		svc.allowedDomain = conf.AllowedEmailDomain
	}
	return svc
}

// AllowedDomain returns the enforced email domain suffix, empty when unrestricted.
func (svc *Service) AllowedDomain() string { return svc.allowedDomain }

func (svc *Service) domainAllowed(email string) bool {
	if svc.allowedDomain == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(email), svc.allowedDomain)
}

func (svc *Service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

// Authenticate checks that the email belongs to an active directory member.
// Membership of the directory is the credential: there are no passwords.
func (svc *Service) Authenticate(email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if !svc.domainAllowed(email) {
		return User{}, ErrDomainNotAllowed
	}
	usr, err := svc.repo.GetUserByEmail(email)
	if err != nil {
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, ErrAccountDisabled
	}
	return usr, nil
}

// BootstrapFirstAdmin creates the first editor. It only works while the
// directory is empty and is therefore safe to leave unauthenticated.
func (svc *Service) BootstrapFirstAdmin(email string) (User, error) {
	count, err := svc.repo.CountUsers()
	if err != nil {
		return User{}, err
	}
	if count > 0 {
		return User{}, ErrAdminExists
	}

	email = core.CleanString(email, true /* lower */)
	if !strings.Contains(email, "@") {
		return User{}, core.NewValidationError(errors.New("malformed email"),
			core.FieldError{Field: "email", Error: "malformed email"})
	}
	if !svc.domainAllowed(email) {
		return User{}, ErrDomainNotAllowed
	}

	now := time.Now().UTC()
	usr := User{
		Email:     email,
		Role:      RoleEditor,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateUser(usr)
}

func (svc *Service) List(limit int64) ([]User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return svc.repo.QueryUsers(limit)
}

func (svc *Service) UpdateRole(email string, ur UpdateUserRole) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if _, err := svc.repo.GetUserByEmail(email); err != nil {
		return User{}, err
	}
	return svc.repo.UpdateUserRole(email, ur.Role, time.Now().UTC())
}

// Delete removes a single user. Self-deletion is always rejected.
func (svc *Service) Delete(selfEmail, email string) error {
	email = core.CleanString(email, true /* lower */)
	if email == core.CleanString(selfEmail, true) {
		return core.NewValidationError(ErrSelfDeletion)
	}
	n, err := svc.repo.DeleteUsersByEmail(email)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDelete removes the given users, silently filtering the caller's own
// email out of the set. An empty resulting set is rejected.
func (svc *Service) BulkDelete(selfEmail string, emails []string) (int64, error) {
	self := core.CleanString(selfEmail, true /* lower */)
	targets := make([]string, 0, len(emails))
	for _, email := range emails {
		if email = core.CleanString(email, true /* lower */); email != "" && email != self {
			targets = append(targets, email)
		}
	}
	if len(targets) == 0 {
		return 0, core.NewValidationError(errors.New("no users to delete"))
	}
	return svc.repo.DeleteUsersByEmail(targets...)
}

// DirectoryStats returns a count and a small email sample for diagnostics.
func (svc *Service) DirectoryStats() (Stats, error) {
	count, err := svc.repo.CountUsers()
	if err != nil {
		return Stats{}, err
	}
	users, err := svc.repo.QueryUsers(5)
	if err != nil {
		return Stats{}, err
	}
	sample := make([]string, 0, len(users))
	for _, usr := range users {
		sample = append(sample, usr.Email)
	}
	return Stats{Total: count, Sample: sample}, nil
}
