package registro

import (
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redland-cl/registro-escolar/core"
)

// School sections
const (
	SeccionJunior = "Junior"
	SeccionMiddle = "Middle"
	SeccionSenior = "Senior"

	// SeccionAll is a creation-time pseudo-value on activities: it fans out
	// into three independent records and is never stored.
	SeccionAll = "ALL"
)

var Secciones = []string{SeccionJunior, SeccionMiddle, SeccionSenior}

func ValidSeccion(s string) bool {
	for _, sec := range Secciones {
		if sec == s {
			return true
		}
	}
	return false
}

const (
	minCursos = 1
	maxCursos = 3
)

type Activity struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Seccion     string             `bson:"seccion" json:"seccion"`
	Actividad   string             `bson:"actividad" json:"actividad"`
	Fecha       string             `bson:"fecha" json:"fecha"` // YYYY-MM-DD
	FechaFin    string             `bson:"fechaFin,omitempty" json:"fechaFin,omitempty"`
	Hora        string             `bson:"hora" json:"hora"`
	Lugar       string             `bson:"lugar,omitempty" json:"lugar,omitempty"`
	Responsable string             `bson:"responsable,omitempty" json:"responsable,omitempty"`
	Importante  bool               `bson:"importante" json:"importante"`
	Cursos      []string           `bson:"cursos,omitempty" json:"cursos,omitempty"`
	CreatedBy   string             `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedBy   string             `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	UpdatedAt   *time.Time         `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

type Evaluation struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Seccion    string             `bson:"seccion" json:"seccion"`
	Asignatura string             `bson:"asignatura" json:"asignatura"`
	Tema       string             `bson:"tema,omitempty" json:"tema,omitempty"`
	Cursos     []string           `bson:"cursos,omitempty" json:"cursos"`
	Fecha      string             `bson:"fecha" json:"fecha"` // YYYY-MM-DD
	Hora       string             `bson:"hora,omitempty" json:"hora,omitempty"`
	CreatedBy  string             `bson:"created_by" json:"created_by"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedBy  string             `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	UpdatedAt  *time.Time         `bson:"updated_at,omitempty" json:"updated_at,omitempty"`

	// LegacyCurso holds the singular `curso` field (string or list) still
	// present on old documents. It is folded into Cursos on read and never
	// serialized back out.
	LegacyCurso interface{} `bson:"curso,omitempty" json:"-"`
}

// Normalize folds the legacy singular `curso` field into Cursos.
// It is the single schema-on-read adapter: every repository applies it to
// each Evaluation it returns.
func (e *Evaluation) Normalize() {
	if len(e.Cursos) == 0 && e.LegacyCurso != nil {
		switch v := e.LegacyCurso.(type) {
		case string:
			if v != "" {
				e.Cursos = []string{v}
			}
		case []string:
			e.Cursos = v
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					e.Cursos = append(e.Cursos, s)
				}
			}
		case primitive.A:
			for _, item := range v {
				if s, ok := item.(string); ok {
					e.Cursos = append(e.Cursos, s)
				}
			}
		}
	}
	if e.Cursos == nil {
		e.Cursos = []string{}
	}
	e.LegacyCurso = nil
}

type NewActivity struct {
	Seccion     string   `json:"seccion" validate:"required"`
	Actividad   string   `json:"actividad" validate:"required"`
	Fecha       string   `json:"fecha" validate:"required"`
	FechaFin    string   `json:"fechaFin"`
	Hora        string   `json:"hora" validate:"required"`
	Lugar       string   `json:"lugar"`
	Responsable string   `json:"responsable"`
	Importante  bool     `json:"importante"`
	Cursos      []string `json:"cursos"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.Seccion = core.CleanString(na.Seccion)
	na.Actividad = core.CleanString(na.Actividad)
	na.Fecha = core.CleanString(na.Fecha)
	na.Hora = core.CleanString(na.Hora)

	if err := validate.Struct(na); err != nil {
		return err
	}
	if !ValidSeccion(na.Seccion) && na.Seccion != SeccionAll {
		return core.NewValidationError(ErrInvalidSeccion,
			core.FieldError{Field: "seccion", Error: ErrInvalidSeccion.Error()})
	}
	return nil
}

// UpdateActivity defines a partial update: zero-valued fields are left
// untouched, including a nil Cursos.
type UpdateActivity struct {
	Seccion     string   `json:"seccion" validate:"omitempty,seccion"`
	Actividad   string   `json:"actividad"`
	Fecha       string   `json:"fecha"`
	FechaFin    string   `json:"fechaFin"`
	Hora        string   `json:"hora"`
	Lugar       string   `json:"lugar"`
	Responsable string   `json:"responsable"`
	Importante  *bool    `json:"importante"`
	Cursos      []string `json:"cursos"`
}

func (ua *UpdateActivity) Validate(validate *validator.Validate) error {
	ua.Seccion = core.CleanString(ua.Seccion)
	return validate.Struct(ua)
}

type NewEvaluation struct {
	Seccion    string   `json:"seccion" validate:"required,seccion"`
	Asignatura string   `json:"asignatura" validate:"required"`
	Tema       string   `json:"tema"`
	Cursos     []string `json:"cursos"`
	Fecha      string   `json:"fecha" validate:"required"`
	Hora       string   `json:"hora"`
}

func (ne *NewEvaluation) Validate(validate *validator.Validate) error {
	ne.Seccion = core.CleanString(ne.Seccion)
	ne.Asignatura = core.CleanString(ne.Asignatura)
	ne.Fecha = core.CleanString(ne.Fecha)

	if err := validate.Struct(ne); err != nil {
		return err
	}
	return validateCursos(ne.Cursos)
}

type UpdateEvaluation struct {
	Seccion    string   `json:"seccion" validate:"omitempty,seccion"`
	Asignatura string   `json:"asignatura"`
	Tema       string   `json:"tema"`
	Cursos     []string `json:"cursos"`
	Fecha      string   `json:"fecha"`
	Hora       string   `json:"hora"`
}

func (ue *UpdateEvaluation) Validate(validate *validator.Validate) error {
	ue.Seccion = core.CleanString(ue.Seccion)
	if err := validate.Struct(ue); err != nil {
		return err
	}
	if ue.Cursos != nil {
		return validateCursos(ue.Cursos)
	}
	return nil
}

func validateCursos(cursos []string) error {
	if len(cursos) < minCursos || len(cursos) > maxCursos {
		return core.NewValidationError(ErrInvalidCursos,
			core.FieldError{Field: "cursos", Error: ErrInvalidCursos.Error()})
	}
	for _, c := range cursos {
		if core.CleanString(c) == "" {
			return core.NewValidationError(ErrInvalidCursos,
				core.FieldError{Field: "cursos", Error: "course labels must be non-empty strings"})
		}
	}
	return nil
}
