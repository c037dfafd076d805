package user_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/redland-cl/registro-escolar/core/user"
	"github.com/redland-cl/registro-escolar/storage/database/inmem"
)

func TestService_ImportCSV(t *testing.T) {
	svc, _ := setup(t, false)

	csv := "email,role\n" +
		"a@redland.cl,editor\n" +
		"B@Redland.CL , viewer\n" + // cleaned + lowered
		",editor\n" + // skipped: missing email
		"c@redland.cl,\n" + // skipped: missing role
		"not-an-email,viewer\n" + // error: malformed
		"d@redland.cl,principal\n" // error: unknown role

	res, err := svc.ImportCSV([]byte(csv))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if len(res.Created) != 2 {
		t.Errorf("created = %v; want 2 entries", res.Created)
	}
	if len(res.Updated) != 0 {
		t.Errorf("updated = %v; want none", res.Updated)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("skipped = %v; want 2 entries", res.Skipped)
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v; want 2 entries", res.Errors)
	}
	if res.Processed() != 2 {
		t.Errorf("Processed() = %d; want 2", res.Processed())
	}

	// bad rows never abort the batch: the good ones are committed
	usr, err := svc.GetByEmail("b@redland.cl")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if usr.Role != user.RoleViewer || !usr.IsActive {
		t.Errorf("imported user = %+v; want active viewer", usr)
	}
}

func TestService_ImportCSV_idempotent(t *testing.T) {
	svc, _ := setup(t, false)
	csv := []byte("email,role\na@redland.cl,editor\nb@redland.cl,viewer\n")

	if _, err := svc.ImportCSV(csv); err != nil {
		t.Fatalf("first import error = %v", err)
	}
	res, err := svc.ImportCSV(csv)
	if err != nil {
		t.Fatalf("second import error = %v", err)
	}
	if len(res.Created) != 0 {
		t.Errorf("created = %v; want none on re-import", res.Created)
	}
	if len(res.Updated) != 2 {
		t.Errorf("updated = %v; want both rows upserted", res.Updated)
	}
	if got := res.Updated[0]; !strings.Contains(got, "a@redland.cl") {
		t.Errorf("updated[0] = %q; want the email named", got)
	}

	users, _ := svc.List(0)
	if len(users) != 2 {
		t.Errorf("directory size = %d; want 2 (no duplicates)", len(users))
	}
}

func TestService_ImportCSV_columnVariants(t *testing.T) {
	svc, _ := setup(t, false)

	// extra columns, padding and a BOM on the header are all tolerated
	csv := []byte("\xEF\xBB\xBFEmail , Role ,nombre\na@redland.cl,editor,Ana\n")
	res, err := svc.ImportCSV(csv)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if res.Processed() != 1 {
		t.Errorf("Processed() = %d; want 1", res.Processed())
	}
}

func TestService_ImportCSV_missingColumns(t *testing.T) {
	svc, _ := setup(t, false)

	_, err := svc.ImportCSV([]byte("correo,rol\na@redland.cl,editor\n"))
	if !isValidationError(err) {
		t.Fatalf("error = %v; want a validation error", err)
	}
	// the message names the columns actually found to help fix the file
	if msg := err.Error(); !strings.Contains(msg, "correo, rol") {
		t.Errorf("error = %q; want the found columns named", msg)
	}
}

func TestService_ImportCSV_legacyEncoding(t *testing.T) {
	svc, _ := setup(t, false)

	// "maría@redland.cl" exported by Excel as Windows-1252: í is a lone 0xED
	csv := append([]byte("email,role\nmar"), 0xED)
	csv = append(csv, []byte("a@redland.cl,viewer\n")...)

	res, err := svc.ImportCSV(csv)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if res.Processed() != 1 {
		t.Fatalf("Processed() = %d; want 1", res.Processed())
	}
	if _, err = svc.GetByEmail("maría@redland.cl"); err != nil {
		t.Errorf("decoded email not found; err = %v", err)
	}
}

func TestService_ImportCSV_noValidRows(t *testing.T) {
	svc, _ := setup(t, false)

	tests := []struct {
		name string
		csv  string
	}{
		{name: "empty file", csv: ""},
		{name: "header only", csv: "email,role\n"},
		{name: "all rows skipped", csv: "email,role\n,editor\nc@redland.cl,\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ImportCSV([]byte(tt.csv)); !isValidationError(err) {
				t.Errorf("error = %v; want a validation error", err)
			}
		})
	}
}

func TestService_ImportCSV_domainGate(t *testing.T) {
	svc, _ := setup(t, true)

	res, err := svc.ImportCSV([]byte("email,role\na@redland.cl,editor\nb@gmail.com,viewer\n"))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if res.Processed() != 1 {
		t.Errorf("Processed() = %d; want 1 (foreign domain rejected)", res.Processed())
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "b@gmail.com") {
		t.Errorf("errors = %v; want the rejected email named", res.Errors)
	}
}

func TestService_ExportCSV(t *testing.T) {
	svc, repo := setup(t, false)
	createUser(t, repo, "b@redland.cl", user.RoleViewer, true)
	createUser(t, repo, "a@redland.cl", user.RoleEditor, true)

	data, err := svc.ExportCSV()
	if err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	want := "email,role\na@redland.cl,editor\nb@redland.cl,viewer\n"
	if string(data) != want {
		t.Errorf("ExportCSV() = %q; want %q", data, want)
	}
}

func TestService_LoadInitialUsers(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	csv := []byte("email,role\nadmin@redland.cl,editor\nviewer@redland.cl,viewer\n")
	if err := os.WriteFile(filepath.Join(dir, "data", "usuarios_iniciales.csv"), csv, 0o644); err != nil {
		t.Fatal(err)
	}

	conf := newTestConfig(false)
	conf.WorkDir = dir
	db := inmemdb.Open()
	svc := user.NewService(inmemdb.NewUserRepository(db), conf)

	res, err := svc.LoadInitialUsers()
	if err != nil {
		t.Fatalf("LoadInitialUsers() error = %v", err)
	}
	if res.Processed() != 2 {
		t.Errorf("Processed() = %d; want 2", res.Processed())
	}

	// self-disabling once the directory is populated
	if _, err = svc.LoadInitialUsers(); err != user.ErrAdminExists {
		t.Errorf("second call error = %v; want ErrAdminExists", err)
	}
}

func TestService_LoadInitialUsers_fallbackFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "usuarios.csv"),
		[]byte("email,role\nadmin@redland.cl,editor\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	conf := newTestConfig(false)
	conf.WorkDir = dir
	svc := user.NewService(inmemdb.NewUserRepository(inmemdb.Open()), conf)

	res, err := svc.LoadInitialUsers()
	if err != nil {
		t.Fatalf("LoadInitialUsers() error = %v", err)
	}
	if res.Processed() != 1 {
		t.Errorf("Processed() = %d; want 1", res.Processed())
	}
}

func TestService_LoadInitialUsers_noFile(t *testing.T) {
	conf := newTestConfig(false)
	conf.WorkDir = t.TempDir()
	svc := user.NewService(inmemdb.NewUserRepository(inmemdb.Open()), conf)

	if _, err := svc.LoadInitialUsers(); !isValidationError(err) {
		t.Errorf("error = %v; want a validation error", err)
	}
}
