package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

const collectionBugs = "bugs"

type BugRepository struct {
	col *mongo.Collection
}

func NewBugRepository(db *mongo.Database) *BugRepository {
	return &BugRepository{col: db.Collection(collectionBugs)}
}

// bugDocument is the stored shape. User references are kept as ObjectIDs and
// resolved to names on read.
type bugDocument struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"`
	Title       string              `bson:"title"`
	Description string              `bson:"description"`
	Status      string              `bson:"status"`
	Priority    string              `bson:"priority"`
	Project     string              `bson:"project"`
	Steps       string              `bson:"steps,omitempty"`
	ReportedBy  primitive.ObjectID  `bson:"reported_by"`
	AssignedTo  *primitive.ObjectID `bson:"assigned_to,omitempty"`
	CreatedAt   time.Time           `bson:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at"`
}

type userRefDocument struct {
	ID   primitive.ObjectID `bson:"_id"`
	Name string             `bson:"name"`
}

// bugView is a bugDocument after the user lookups. The document is a named
// inline field: the codec skips embedded fields of unexported types.
type bugView struct {
	Doc      bugDocument       `bson:",inline"`
	Reporter []userRefDocument `bson:"reporter"`
	Assignee []userRefDocument `bson:"assignee"`
}

func (v bugView) toDomain() *domain.Bug {
	d := v.Doc
	b := &domain.Bug{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Status:      domain.BugStatus(d.Status),
		Priority:    domain.BugPriority(d.Priority),
		Project:     d.Project,
		Steps:       d.Steps,
		ReportedBy:  domain.UserRef{ID: d.ReportedBy.Hex()},
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if len(v.Reporter) > 0 {
		b.ReportedBy.Name = v.Reporter[0].Name
	}
	if d.AssignedTo != nil {
		ref := &domain.UserRef{ID: d.AssignedTo.Hex()}
		if len(v.Assignee) > 0 {
			ref.Name = v.Assignee[0].Name
		}
		b.AssignedTo = ref
	}
	return b
}

// Create inserts a new bug document and sets b.ID.
func (r *BugRepository) Create(ctx context.Context, b *domain.Bug) error {
	reporter, ok := objectID(b.ReportedBy.ID)
	if !ok {
		return fmt.Errorf("insert bug: invalid reporter id %q", b.ReportedBy.ID)
	}
	doc := bugDocument{
		Title:       b.Title,
		Description: b.Description,
		Status:      string(b.Status),
		Priority:    string(b.Priority),
		Project:     b.Project,
		Steps:       b.Steps,
		ReportedBy:  reporter,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if b.AssignedTo != nil {
		assignee, ok := objectID(b.AssignedTo.ID)
		if !ok {
			return fmt.Errorf("insert bug: invalid assignee id %q", b.AssignedTo.ID)
		}
		doc.AssignedTo = &assignee
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert bug: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("insert bug: unexpected id type %T", res.InsertedID)
	}
	b.ID = oid.Hex()
	return nil
}

// FindByID retrieves a bug with its user references resolved. A malformed id
// is reported as not found.
func (r *BugRepository) FindByID(ctx context.Context, id string) (*domain.Bug, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrBugNotFound
	}

	bugs, err := r.aggregate(ctx, bson.M{"_id": oid}, 1)
	if err != nil {
		return nil, err
	}
	if len(bugs) == 0 {
		return nil, domain.ErrBugNotFound
	}
	return bugs[0], nil
}

// List returns the bugs matching f ordered by creation time, newest first.
func (r *BugRepository) List(ctx context.Context, f ports.BugFilter) ([]*domain.Bug, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Priority != "" {
		filter["priority"] = string(f.Priority)
	}
	if f.Project != "" {
		filter["project"] = f.Project
	}
	if f.ReportedBy != "" {
		oid, ok := objectID(f.ReportedBy)
		if !ok {
			return []*domain.Bug{}, nil
		}
		filter["reported_by"] = oid
	}
	if f.AssignedTo != "" {
		oid, ok := objectID(f.AssignedTo)
		if !ok {
			return []*domain.Bug{}, nil
		}
		filter["assigned_to"] = oid
	}

	return r.aggregate(ctx, filter, 0)
}

// Update writes the mutable fields of b with a single update. reported_by and
// created_at are never part of the update document.
func (r *BugRepository) Update(ctx context.Context, b *domain.Bug) error {
	oid, ok := objectID(b.ID)
	if !ok {
		return domain.ErrBugNotFound
	}

	set := bson.M{
		"title":       b.Title,
		"description": b.Description,
		"status":      string(b.Status),
		"priority":    string(b.Priority),
		"project":     b.Project,
		"steps":       b.Steps,
		"updated_at":  b.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if b.AssignedTo != nil {
		assignee, ok := objectID(b.AssignedTo.ID)
		if !ok {
			return fmt.Errorf("update bug: invalid assignee id %q", b.AssignedTo.ID)
		}
		set["assigned_to"] = assignee
	} else {
		update["$unset"] = bson.M{"assigned_to": ""}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update bug: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrBugNotFound
	}
	return nil
}

func (r *BugRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrBugNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete bug: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrBugNotFound
	}
	return nil
}

// EnsureIndexes creates the indexes backing the list filters and ordering.
func (r *BugRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "reported_by", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "project", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *BugRepository) aggregate(ctx context.Context, match bson.M, limit int64) ([]*domain.Bug, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	pipeline = append(pipeline,
		lookupUser("reported_by", "reporter"),
		lookupUser("assigned_to", "assignee"),
	)

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate bugs: %w", err)
	}
	defer cur.Close(ctx)

	bugs := []*domain.Bug{}
	for cur.Next(ctx) {
		var v bugView
		if err := cur.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode bug: %w", err)
		}
		bugs = append(bugs, v.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate bugs: %w", err)
	}
	return bugs, nil
}

// lookupUser joins the users collection on field, keeping only id and name.
func lookupUser(field, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: collectionUsers},
		{Key: "let", Value: bson.D{{Key: "uid", Value: "$" + field}}},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$eq", Value: bson.A{"$_id", "$$uid"}}}}}}},
			bson.D{{Key: "$project", Value: bson.D{{Key: "name", Value: 1}}}},
		}},
		{Key: "as", Value: as},
	}}}
}
