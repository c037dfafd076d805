package echoapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redland-cl/registro-escolar/core"
	"github.com/redland-cl/registro-escolar/core/user"
)

type userApi struct {
	svc      *user.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := &userApi{svc: opts.UserSvc, conf: opts.Conf, validate: opts.Validate}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.GET("/me", api.me, jwt)
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := &userApi{svc: opts.UserSvc, conf: opts.Conf, validate: opts.Validate}

	ug := g.Group("/users")

	// un-authed endpoints: the two setup ones are self-disabling after
	// first use, check-status is a read-only diagnostic
	ug.POST("/add-admin", api.addAdmin)
	ug.POST("/load-initial-users", api.loadInitialUsers)
	ug.GET("/check-status", api.checkStatus)

	// editor-only endpoints
	eg := ug.Group("", jwt, editorMiddleware(api.svc))
	eg.GET("", api.list)
	eg.POST("/upload-csv", api.uploadCSV)
	eg.GET("/export-csv", api.exportCSV)
	eg.POST("/bulk-delete", api.bulkDelete)
	eg.DELETE("/:email", api.destroy)
	eg.PATCH("/:email/role", api.updateRole)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data user.LoginUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(data.Email)
	switch errors.Cause(err) {
	case nil:
	case user.ErrNotFound:
		return echo.NewHTTPError(http.StatusUnauthorized, "Email not authorized. Contact administrator.")
	case user.ErrDomainNotAllowed:
		return echo.NewHTTPError(http.StatusForbidden,
			fmt.Sprintf("Only %s email addresses are allowed", api.svc.AllowedDomain()))
	case user.ErrAccountDisabled:
		return echo.NewHTTPError(http.StatusForbidden, "User account is disabled")
	default:
		return errors.Wrap(err, "authenticating")
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        usr,
	})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: usr})
}

func (api *userApi) addAdmin(ctx echo.Context) error {
	var data user.LoginUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.BootstrapFirstAdmin(data.Email)
	switch errors.Cause(err) {
	case nil:
	case user.ErrAdminExists:
		return echo.NewHTTPError(http.StatusForbidden, "Admin already exists. Use CSV upload to add more users.")
	case user.ErrDomainNotAllowed:
		return echo.NewHTTPError(http.StatusForbidden,
			fmt.Sprintf("Only %s email addresses are allowed", api.svc.AllowedDomain()))
	default:
		return err
	}

	return ctx.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": fmt.Sprintf("First admin user created: %s", usr.Email),
		"email":   usr.Email,
	})
}

func (api *userApi) loadInitialUsers(ctx echo.Context) error {
	res, err := api.svc.LoadInitialUsers()
	if errors.Cause(err) == user.ErrAdminExists {
		return echo.NewHTTPError(http.StatusForbidden, "Users already loaded. Use CSV upload to add more users.")
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ImportResponse{
		Success:      true,
		Message:      fmt.Sprintf("Processed %d users", res.Processed()),
		ImportResult: res,
	})
}

func (api *userApi) checkStatus(ctx echo.Context) error {
	stats, err := api.svc.DirectoryStats()
	if err != nil {
		return errors.Wrap(err, "querying directory stats")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"status":      "ok",
		"total_users": stats.Total,
		"sample":      stats.Sample,
	})
}

func (api *userApi) uploadCSV(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(errors.New("CSV file is required"),
			core.FieldError{Field: "file", Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded CSV")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "reading uploaded CSV")
	}

	res, err := api.svc.ImportCSV(data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ImportResponse{
		Success:      true,
		Message:      fmt.Sprintf("Processed %d users", res.Processed()),
		ImportResult: res,
	})
}

func (api *userApi) list(ctx echo.Context) error {
	users, err := api.svc.List(0)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"users": users})
}

func (api *userApi) exportCSV(ctx echo.Context) error {
	data, err := api.svc.ExportCSV()
	if err != nil {
		return errors.Wrap(err, "exporting users")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="usuarios.csv"`)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (api *userApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	email := ctx.Param("email")
	if err := api.svc.Delete(ctxUsr.Email, email); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": fmt.Sprintf("User %s deleted successfully", email),
	})
}

func (api *userApi) bulkDelete(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var data BulkDeleteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkDeleteRequest")
	}

	deleted, err := api.svc.BulkDelete(ctxUsr.Email, data.Emails)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"success": true,
		"deleted": deleted,
	})
}

func (api *userApi) updateRole(ctx echo.Context) error {
	var data user.UpdateUserRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUserRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.UpdateRole(ctx.Param("email"), data)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    usr,
	})
}

type (
	LoginResponse struct {
		AccessToken string    `json:"access_token"`
		TokenType   string    `json:"token_type"`
		User        user.User `json:"user"`
	}

	UserResponse struct {
		User user.User `json:"user"`
	}

	BulkDeleteRequest struct {
		Emails []string `json:"emails"`
	}

	ImportResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		user.ImportResult
	}
)
