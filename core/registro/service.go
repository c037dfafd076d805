package registro

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redland-cl/registro-escolar/core"
)

var (
	// errors
	ErrNotFound       = errors.New("record not found")
	ErrInvalidID      = errors.New("malformed record id")
	ErrInvalidSeccion = errors.New("seccion must be one of Junior, Middle or Senior")
	ErrInvalidCursos  = errors.New("cursos must contain between 1 and 3 course labels")
)

type (
	// Filter narrows listings by inclusive ISO date bounds and section.
	// Dates compare lexicographically, so they must be zero-padded.
	Filter struct {
		DateFrom string `query:"date_from"`
		DateTo   string `query:"date_to"`
		Seccion  string `query:"seccion"`
	}

	ActivityRepository interface {
		CreateActivity(act Activity) (Activity, error)
		// FilterActivities returns matches sorted ascending by fecha.
		FilterActivities(f Filter) ([]Activity, error)
		GetActivityByID(id primitive.ObjectID) (Activity, error)
		// ReplaceActivity overwrites the whole stored document.
		ReplaceActivity(act Activity) (Activity, error)
		DeleteActivity(id primitive.ObjectID) error
	}

	EvaluationRepository interface {
		CreateEvaluation(ev Evaluation) (Evaluation, error)
		// FilterEvaluations returns matches sorted ascending by fecha,
		// normalized through Evaluation.Normalize.
		FilterEvaluations(f Filter) ([]Evaluation, error)
		GetEvaluationByID(id primitive.ObjectID) (Evaluation, error)
		// ReplaceEvaluation overwrites the whole stored document; replacing
		// drops any legacy singular `curso` field (migration on touch).
		ReplaceEvaluation(ev Evaluation) (Evaluation, error)
		DeleteEvaluation(id primitive.ObjectID) error
	}

	Service struct {
		activities  ActivityRepository
		evaluations EvaluationRepository
	}
)

func NewService(activities ActivityRepository, evaluations EvaluationRepository) *Service {
	return &Service{activities: activities, evaluations: evaluations}
}

func (f *Filter) Clean() error {
	f.DateFrom = core.CleanString(f.DateFrom)
	f.DateTo = core.CleanString(f.DateTo)
	f.Seccion = core.CleanString(f.Seccion)
	if f.Seccion != "" && !ValidSeccion(f.Seccion) {
		return core.NewValidationError(ErrInvalidSeccion,
			core.FieldError{Field: "seccion", Error: ErrInvalidSeccion.Error()})
	}
	return nil
}

// Matches reports whether a record with the given fecha/seccion falls within
// the filter. Date bounds are inclusive string comparisons.
func (f Filter) Matches(fecha, seccion string) bool {
	if f.DateFrom != "" && fecha < f.DateFrom {
		return false
	}
	if f.DateTo != "" && fecha > f.DateTo {
		return false
	}
	if f.Seccion != "" && seccion != f.Seccion {
		return false
	}
	return true
}

func parseID(idHex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(core.CleanString(idHex))
	if err != nil {
		return primitive.NilObjectID, core.NewValidationError(ErrInvalidID)
	}
	return id, nil
}

// Activities

// CreateActivity inserts the activity; SeccionAll fans out into one
// independent record per concrete section. It returns the insertion count
// only: callers needing the created records must list again.
func (svc *Service) CreateActivity(validate *validator.Validate, data NewActivity, createdBy string) (int, error) {
	if err := data.Validate(validate); err != nil {
		return 0, err
	}

	secciones := []string{data.Seccion}
	if data.Seccion == SeccionAll {
		secciones = Secciones
	}

	now := time.Now().UTC()
	for _, seccion := range secciones {
		act := Activity{
			Seccion:     seccion,
			Actividad:   data.Actividad,
			Fecha:       data.Fecha,
			FechaFin:    data.FechaFin,
			Hora:        data.Hora,
			Lugar:       data.Lugar,
			Responsable: data.Responsable,
			Importante:  data.Importante,
			Cursos:      data.Cursos,
			CreatedBy:   createdBy,
			CreatedAt:   now,
		}
		if _, err := svc.activities.CreateActivity(act); err != nil {
			return 0, err
		}
	}
	return len(secciones), nil
}

// ListActivities returns matches grouped by exact date then by section.
// The source query sorts ascending by fecha; grouping does not re-sort.
func (svc *Service) ListActivities(f Filter) (map[string]map[string][]Activity, int, error) {
	if err := f.Clean(); err != nil {
		return nil, 0, err
	}
	acts, err := svc.activities.FilterActivities(f)
	if err != nil {
		return nil, 0, err
	}

	grouped := make(map[string]map[string][]Activity)
	for _, act := range acts {
		byDate, ok := grouped[act.Fecha]
		if !ok {
			byDate = make(map[string][]Activity)
			grouped[act.Fecha] = byDate
		}
		byDate[act.Seccion] = append(byDate[act.Seccion], act)
	}
	return grouped, len(acts), nil
}

func (svc *Service) UpdateActivity(validate *validator.Validate, idHex string, data UpdateActivity, updatedBy string) (Activity, error) {
	id, err := parseID(idHex)
	if err != nil {
		return Activity{}, err
	}
	if err := data.Validate(validate); err != nil {
		return Activity{}, err
	}

	act, err := svc.activities.GetActivityByID(id)
	if err != nil {
		return Activity{}, err
	}

	if data.Seccion != "" {
		act.Seccion = data.Seccion
	}
	if data.Actividad != "" {
		act.Actividad = core.CleanString(data.Actividad)
	}
	if data.Fecha != "" {
		act.Fecha = core.CleanString(data.Fecha)
	}
	if data.FechaFin != "" {
		act.FechaFin = core.CleanString(data.FechaFin)
	}
	if data.Hora != "" {
		act.Hora = core.CleanString(data.Hora)
	}
	if data.Lugar != "" {
		act.Lugar = core.CleanString(data.Lugar)
	}
	if data.Responsable != "" {
		act.Responsable = core.CleanString(data.Responsable)
	}
	if data.Importante != nil {
		act.Importante = *data.Importante
	}
	if data.Cursos != nil { // nil leaves the stored cursos untouched
		act.Cursos = data.Cursos
	}

	now := time.Now().UTC()
	act.UpdatedBy = updatedBy
	act.UpdatedAt = &now
	return svc.activities.ReplaceActivity(act)
}

func (svc *Service) DeleteActivity(idHex string) error {
	id, err := parseID(idHex)
	if err != nil {
		return err
	}
	return svc.activities.DeleteActivity(id)
}

// Evaluations

func (svc *Service) CreateEvaluation(validate *validator.Validate, data NewEvaluation, createdBy string) (Evaluation, error) {
	if err := data.Validate(validate); err != nil {
		return Evaluation{}, err
	}

	now := time.Now().UTC()
	ev := Evaluation{
		Seccion:    data.Seccion,
		Asignatura: data.Asignatura,
		Tema:       data.Tema,
		Cursos:     data.Cursos,
		Fecha:      data.Fecha,
		Hora:       data.Hora,
		CreatedBy:  createdBy,
		CreatedAt:  now,
	}
	return svc.evaluations.CreateEvaluation(ev)
}

func (svc *Service) ListEvaluations(f Filter) (map[string]map[string][]Evaluation, int, error) {
	if err := f.Clean(); err != nil {
		return nil, 0, err
	}
	evals, err := svc.evaluations.FilterEvaluations(f)
	if err != nil {
		return nil, 0, err
	}

	grouped := make(map[string]map[string][]Evaluation)
	for _, ev := range evals {
		byDate, ok := grouped[ev.Fecha]
		if !ok {
			byDate = make(map[string][]Evaluation)
			grouped[ev.Fecha] = byDate
		}
		byDate[ev.Seccion] = append(byDate[ev.Seccion], ev)
	}
	return grouped, len(evals), nil
}

func (svc *Service) UpdateEvaluation(validate *validator.Validate, idHex string, data UpdateEvaluation, updatedBy string) (Evaluation, error) {
	id, err := parseID(idHex)
	if err != nil {
		return Evaluation{}, err
	}
	if err := data.Validate(validate); err != nil {
		return Evaluation{}, err
	}

	ev, err := svc.evaluations.GetEvaluationByID(id)
	if err != nil {
		return Evaluation{}, err
	}

	if data.Seccion != "" {
		ev.Seccion = data.Seccion
	}
	if data.Asignatura != "" {
		ev.Asignatura = core.CleanString(data.Asignatura)
	}
	if data.Tema != "" {
		ev.Tema = core.CleanString(data.Tema)
	}
	if data.Cursos != nil {
		ev.Cursos = data.Cursos
	}
	if data.Fecha != "" {
		ev.Fecha = core.CleanString(data.Fecha)
	}
	if data.Hora != "" {
		ev.Hora = core.CleanString(data.Hora)
	}

	now := time.Now().UTC()
	ev.UpdatedBy = updatedBy
	ev.UpdatedAt = &now
	ev.LegacyCurso = nil // replacing the document drops the legacy field
	return svc.evaluations.ReplaceEvaluation(ev)
}

func (svc *Service) DeleteEvaluation(idHex string) error {
	id, err := parseID(idHex)
	if err != nil {
		return err
	}
	return svc.evaluations.DeleteEvaluation(id)
}
