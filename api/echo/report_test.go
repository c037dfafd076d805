package echoapi

import (
	"net/http"
	"testing"

	"github.com/redland-cl/registro-escolar/core/report"
	"github.com/redland-cl/registro-escolar/core/user"
	emailsvc "github.com/redland-cl/registro-escolar/services/email"
)

func Test_reportApi_sendReport(t *testing.T) {
	emailsvc.ClearSentMessages()
	env := newTestEnv(t)
	viewer := env.createUser(t, "viewer@redland.cl", user.RoleViewer, true)
	token := env.getToken(t, viewer)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/send-report-email")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		}, rec)
	})

	t.Run("pdf part is mandatory", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPost, "/api/send-report-email", token,
			"", "", nil, map[string]string{"to": "director@redland.cl"})
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"pdf": "this field is required"}),
		}, rec)
	})

	t.Run("recipient is mandatory", func(t *testing.T) {
		req, rec := newUploadRequest(t, http.MethodPost, "/api/send-report-email", token,
			"pdf", "reporte.pdf", []byte("%PDF-1.4"), nil)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"to": "this field is required"}),
		}, rec)
	})

	t.Run("demo mode soft success", func(t *testing.T) {
		// the test server runs on the console email backend: sending reports
		// still succeeds but is flagged as demo mode
		fields := map[string]string{
			"to":         "director@redland.cl",
			"subject":    "Reporte de actividades",
			"reportType": "Actividades",
			"section":    "Junior",
			"dateFrom":   "2026-03-01",
			"dateTo":     "2026-03-31",
		}
		req, rec := newUploadRequest(t, http.MethodPost, "/api/send-report-email", token,
			"pdf", "reporte.pdf", []byte("%PDF-1.4"), fields)
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var res report.Result
		decodeBody(t, rec, &res)
		if !res.Success || !res.DemoMode {
			t.Errorf("result = %+v; want a demo-mode success", res)
		}
		// nothing actually left the building
		if n := len(emailsvc.SentMessages); n != 0 {
			t.Errorf("sent = %d messages; want none in demo mode", n)
		}
	})
}

func Test_reportApi_testEmail(t *testing.T) {
	env := newTestEnv(t)

	// unauthenticated diagnostic endpoint
	req, rec := newRequest(http.MethodGet, "/api/test-email")
	env.app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
	}
	var res report.Result
	decodeBody(t, rec, &res)
	if !res.Success || !res.DemoMode {
		t.Errorf("result = %+v; want a demo-mode success", res)
	}
}
