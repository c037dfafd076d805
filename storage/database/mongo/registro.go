package mongorepos

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/redland-cl/registro-escolar/core/registro"
)

// filterQuery builds the store query for list endpoints. Date bounds are
// inclusive lexicographic comparisons on the ISO `fecha` string.
func filterQuery(f registro.Filter) bson.M {
	q := bson.M{}
	if f.DateFrom != "" || f.DateTo != "" {
		dateQ := bson.M{}
		if f.DateFrom != "" {
			dateQ["$gte"] = f.DateFrom
		}
		if f.DateTo != "" {
			dateQ["$lte"] = f.DateTo
		}
		q["fecha"] = dateQ
	}
	if f.Seccion != "" {
		q["seccion"] = f.Seccion
	}
	return q
}

var fechaAsc = options.Find().SetSort(bson.D{{Key: "fecha", Value: 1}})

type activityRepository struct {
	col *mongo.Collection
}

var _ registro.ActivityRepository = (*activityRepository)(nil)

func NewActivityRepository(db *mongo.Database) registro.ActivityRepository {
	return &activityRepository{col: db.Collection("registro_activities")}
}

func (r *activityRepository) CreateActivity(act registro.Activity) (registro.Activity, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := r.col.InsertOne(ctx, act)
	if err != nil {
		return registro.Activity{}, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		act.ID = id
	}
	return act, nil
}

func (r *activityRepository) FilterActivities(f registro.Filter) ([]registro.Activity, error) {
	ctx, cancel := opCtx()
	defer cancel()

	cur, err := r.col.Find(ctx, filterQuery(f), fechaAsc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	acts := make([]registro.Activity, 0)
	if err = cur.All(ctx, &acts); err != nil {
		return nil, err
	}
	return acts, nil
}

func (r *activityRepository) GetActivityByID(id primitive.ObjectID) (registro.Activity, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var act registro.Activity
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&act)
	if err == mongo.ErrNoDocuments {
		return registro.Activity{}, registro.ErrNotFound
	}
	return act, err
}

func (r *activityRepository) ReplaceActivity(act registro.Activity) (registro.Activity, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": act.ID}, act)
	if err != nil {
		return registro.Activity{}, err
	}
	if res.MatchedCount == 0 {
		return registro.Activity{}, registro.ErrNotFound
	}
	return act, nil
}

func (r *activityRepository) DeleteActivity(id primitive.ObjectID) error {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return registro.ErrNotFound
	}
	return nil
}

type evaluationRepository struct {
	col *mongo.Collection
}

var _ registro.EvaluationRepository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *mongo.Database) registro.EvaluationRepository {
	return &evaluationRepository{col: db.Collection("registro_evaluations")}
}

func (r *evaluationRepository) CreateEvaluation(ev registro.Evaluation) (registro.Evaluation, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := r.col.InsertOne(ctx, ev)
	if err != nil {
		return registro.Evaluation{}, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		ev.ID = id
	}
	ev.Normalize()
	return ev, nil
}

func (r *evaluationRepository) FilterEvaluations(f registro.Filter) ([]registro.Evaluation, error) {
	ctx, cancel := opCtx()
	defer cancel()

	cur, err := r.col.Find(ctx, filterQuery(f), fechaAsc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	evals := make([]registro.Evaluation, 0)
	if err = cur.All(ctx, &evals); err != nil {
		return nil, err
	}
	for i := range evals {
		evals[i].Normalize()
	}
	return evals, nil
}

func (r *evaluationRepository) GetEvaluationByID(id primitive.ObjectID) (registro.Evaluation, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var ev registro.Evaluation
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return registro.Evaluation{}, registro.ErrNotFound
	}
	if err != nil {
		return registro.Evaluation{}, err
	}
	ev.Normalize()
	return ev, nil
}

func (r *evaluationRepository) ReplaceEvaluation(ev registro.Evaluation) (registro.Evaluation, error) {
	ctx, cancel := opCtx()
	defer cancel()

	// ReplaceOne writes the whole document, so a legacy `curso` field on the
	// stored document disappears here.
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": ev.ID}, ev)
	if err != nil {
		return registro.Evaluation{}, err
	}
	if res.MatchedCount == 0 {
		return registro.Evaluation{}, registro.ErrNotFound
	}
	ev.Normalize()
	return ev, nil
}

func (r *evaluationRepository) DeleteEvaluation(id primitive.ObjectID) error {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return registro.ErrNotFound
	}
	return nil
}
