package inmemdb

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redland-cl/registro-escolar/core/registro"
)

type activityRepository struct {
	db *activityTable
}

var _ registro.ActivityRepository = (*activityRepository)(nil)

func NewActivityRepository(db *DB) registro.ActivityRepository {
	return &activityRepository{db: db.activities}
}

func (r *activityRepository) CreateActivity(act registro.Activity) (registro.Activity, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	act.ID = primitive.NewObjectID()
	r.db.t[act.ID] = &act
	return act, nil
}

func (r *activityRepository) FilterActivities(f registro.Filter) ([]registro.Activity, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	res := make([]registro.Activity, 0)
	for _, act := range r.db.t {
		if f.Matches(act.Fecha, act.Seccion) {
			res = append(res, *act)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Fecha < res[j].Fecha })
	return res, nil
}

func (r *activityRepository) GetActivityByID(id primitive.ObjectID) (registro.Activity, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if act, ok := r.db.t[id]; ok {
		return *act, nil
	}
	return registro.Activity{}, registro.ErrNotFound
}

func (r *activityRepository) ReplaceActivity(act registro.Activity) (registro.Activity, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.t[act.ID]; !ok {
		return registro.Activity{}, registro.ErrNotFound
	}
	r.db.t[act.ID] = &act
	return act, nil
}

func (r *activityRepository) DeleteActivity(id primitive.ObjectID) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.t[id]; !ok {
		return registro.ErrNotFound
	}
	delete(r.db.t, id)
	return nil
}

type evaluationRepository struct {
	db *evaluationTable
}

var _ registro.EvaluationRepository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *DB) registro.EvaluationRepository {
	return &evaluationRepository{db: db.evaluations}
}

// SeedLegacyEvaluation inserts a raw document bypassing validation, for
// exercising the legacy `curso` read path.
func SeedLegacyEvaluation(db *DB, ev registro.Evaluation) registro.Evaluation {
	db.evaluations.mutex.Lock()
	defer db.evaluations.mutex.Unlock()

	if ev.ID.IsZero() {
		ev.ID = primitive.NewObjectID()
	}
	db.evaluations.t[ev.ID] = &ev
	return ev
}

func (r *evaluationRepository) CreateEvaluation(ev registro.Evaluation) (registro.Evaluation, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	ev.ID = primitive.NewObjectID()
	stored := ev
	r.db.t[ev.ID] = &stored
	ev.Normalize()
	return ev, nil
}

func (r *evaluationRepository) FilterEvaluations(f registro.Filter) ([]registro.Evaluation, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	res := make([]registro.Evaluation, 0)
	for _, ev := range r.db.t {
		if f.Matches(ev.Fecha, ev.Seccion) {
			cp := *ev
			cp.Normalize()
			res = append(res, cp)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Fecha < res[j].Fecha })
	return res, nil
}

func (r *evaluationRepository) GetEvaluationByID(id primitive.ObjectID) (registro.Evaluation, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if ev, ok := r.db.t[id]; ok {
		cp := *ev
		cp.Normalize()
		return cp, nil
	}
	return registro.Evaluation{}, registro.ErrNotFound
}

func (r *evaluationRepository) ReplaceEvaluation(ev registro.Evaluation) (registro.Evaluation, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.t[ev.ID]; !ok {
		return registro.Evaluation{}, registro.ErrNotFound
	}
	stored := ev
	stored.LegacyCurso = nil // full replace drops the legacy field
	r.db.t[ev.ID] = &stored
	ev.Normalize()
	return ev, nil
}

func (r *evaluationRepository) DeleteEvaluation(id primitive.ObjectID) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.t[id]; !ok {
		return registro.ErrNotFound
	}
	delete(r.db.t, id)
	return nil
}
