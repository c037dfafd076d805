package user

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"

	"github.com/redland-cl/registro-escolar/core"
)

// Bundled CSV loaded by LoadInitialUsers, with a fallback filename.
var initialUsersFiles = []string{
	filepath.Join("data", "usuarios_iniciales.csv"),
	filepath.Join("data", "usuarios.csv"),
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type ImportResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func (r ImportResult) Processed() int { return len(r.Created) + len(r.Updated) }

// decodeCSVBytes decodes raw upload bytes trying a fixed ordered list of text
// encodings, stopping at the first that succeeds.
func decodeCSVBytes(data []byte) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		data = data[len(utf8BOM):]
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, cm := range []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1} {
		if decoded, err := cm.NewDecoder().Bytes(data); err == nil {
			return string(decoded), nil
		}
	}
	return "", core.NewValidationError(errors.New("could not decode CSV file: unknown text encoding"))
}

// ImportCSV upserts users from an `email,role` CSV file. Bad rows are
// accumulated instead of aborting the batch; prior rows stay committed.
func (svc *Service) ImportCSV(data []byte) (ImportResult, error) {
	var res ImportResult

	content, err := decodeCSVBytes(data)
	if err != nil {
		return res, err
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return res, core.NewValidationError(errors.Wrap(err, "parsing CSV"))
	}
	if len(records) == 0 {
		return res, core.NewValidationError(errors.New("CSV file is empty"))
	}

	// normalize column names: trim + lowercase
	header := records[0]
	emailCol, roleCol := -1, -1
	cols := make([]string, 0, len(header))
	for i, name := range header {
		name = core.CleanString(strings.TrimPrefix(name, string(utf8BOM)), true /* lower */)
		cols = append(cols, name)
		switch name {
		case "email":
			emailCol = i
		case "role":
			roleCol = i
		}
	}
	if emailCol < 0 || roleCol < 0 {
		return res, core.NewValidationError(
			fmt.Errorf("CSV must have 'email' and 'role' columns; found: %s", strings.Join(cols, ", ")))
	}

	for i, row := range records[1:] {
		rowNum := i + 2 // header is row 1

		var email, role string
		if emailCol < len(row) {
			email = core.CleanString(row[emailCol], true /* lower */)
		}
		if roleCol < len(row) {
			role = core.CleanString(row[roleCol], true /* lower */)
		}

		if email == "" || role == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("Row %d: missing email or role", rowNum))
			continue
		}
		if !strings.Contains(email, "@") {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s - malformed email", rowNum, email))
			continue
		}
		if !svc.domainAllowed(email) {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s - not a %s email", rowNum, email, svc.allowedDomain))
			continue
		}
		if !ValidRole(role) {
			res.Errors = append(res.Errors,
				fmt.Sprintf("Row %d: %s - invalid role %q, must be 'editor' or 'viewer'", rowNum, email, role))
			continue
		}

		now := time.Now().UTC()
		if _, err := svc.repo.GetUserByEmail(email); err == nil {
			if _, err := svc.repo.UpdateUserRole(email, role, now); err != nil {
				return res, errors.Wrapf(err, "updating user %s", email)
			}
			res.Updated = append(res.Updated, fmt.Sprintf("Updated: %s → %s", email, role))
		} else if err == ErrNotFound {
			usr := User{Email: email, Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
			if _, err := svc.repo.CreateUser(usr); err != nil {
				return res, errors.Wrapf(err, "creating user %s", email)
			}
			res.Created = append(res.Created, fmt.Sprintf("Added: %s → %s", email, role))
		} else {
			return res, errors.Wrapf(err, "looking up user %s", email)
		}
	}

	if res.Processed() == 0 && len(res.Errors) == 0 {
		return res, core.NewValidationError(errors.New("no valid rows found in CSV file"))
	}
	return res, nil
}

// exportLimit caps the users serialized by ExportCSV.
const exportLimit = 1000

// ExportCSV serializes users as `email,role` lines, header included.
// Neither field may contain commas under current validation, so no quoting
// is applied.
func (svc *Service) ExportCSV() ([]byte, error) {
	users, err := svc.repo.QueryUsers(exportLimit)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("email,role\n")
	for _, usr := range users {
		buf.WriteString(usr.Email)
		buf.WriteByte(',')
		buf.WriteString(usr.Role)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// LoadInitialUsers imports the bundled CSV. Like BootstrapFirstAdmin it is
// self-disabling: it only works while the directory is empty.
func (svc *Service) LoadInitialUsers() (ImportResult, error) {
	count, err := svc.repo.CountUsers()
	if err != nil {
		return ImportResult{}, err
	}
	if count > 0 {
		return ImportResult{}, ErrAdminExists
	}

	var data []byte
	for _, rel := range initialUsersFiles {
		if data, err = os.ReadFile(filepath.Join(svc.dataDir, rel)); err == nil {
			break
		}
	}
	if err != nil {
		return ImportResult{}, core.NewValidationError(errors.New("no bundled users file found"))
	}
	return svc.ImportCSV(data)
}
