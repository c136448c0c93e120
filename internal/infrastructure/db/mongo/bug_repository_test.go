package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/policy"
	"github.com/99minutos/bug-tracker/internal/core/ports"
	"github.com/99minutos/bug-tracker/internal/core/service"
)

const bugsNS = "test.bugs"

func bugDoc(id, reporter primitive.ObjectID, title string, extra ...bson.E) bson.D {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	d := bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: title},
		{Key: "description", Value: "desc"},
		{Key: "status", Value: "open"},
		{Key: "priority", Value: "high"},
		{Key: "project", Value: "Web"},
		{Key: "reported_by", Value: reporter},
		{Key: "created_at", Value: now},
		{Key: "updated_at", Value: now},
		{Key: "reporter", Value: bson.A{bson.D{{Key: "_id", Value: reporter}, {Key: "name", Value: "Alice"}}}},
	}
	return append(d, extra...)
}

func TestBugRepository_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("resolves reporter and assignee", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		id, reporter, assignee := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, bugsNS, mtest.FirstBatch, bugDoc(id, reporter, "Login fails",
			bson.E{Key: "assigned_to", Value: assignee},
			bson.E{Key: "assignee", Value: bson.A{bson.D{{Key: "_id", Value: assignee}, {Key: "name", Value: "Bob"}}}},
		)))

		b, err := repo.FindByID(context.Background(), id.Hex())
		if err != nil {
			mt.Fatalf("FindByID returned error: %v", err)
		}
		if b.ID != id.Hex() || b.Title != "Login fails" || b.Description != "desc" ||
			b.Status != domain.StatusOpen || b.Priority != domain.PriorityHigh || b.Project != "Web" {
			mt.Fatalf("unexpected bug: %+v", b)
		}
		if b.ReportedBy.ID != reporter.Hex() || b.ReportedBy.Name != "Alice" {
			mt.Fatalf("unexpected reporter: %+v", b.ReportedBy)
		}
		if b.AssignedTo == nil || b.AssignedTo.ID != assignee.Hex() || b.AssignedTo.Name != "Bob" {
			mt.Fatalf("unexpected assignee: %+v", b.AssignedTo)
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, bugsNS, mtest.FirstBatch))

		if _, err := repo.FindByID(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, domain.ErrBugNotFound) {
			mt.Fatalf("expected ErrBugNotFound, got %v", err)
		}
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)

		if _, err := repo.FindByID(context.Background(), "not-an-id"); !errors.Is(err, domain.ErrBugNotFound) {
			mt.Fatalf("expected ErrBugNotFound, got %v", err)
		}
	})
}

func TestBugRepository_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns every document", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		reporter := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, bugsNS, mtest.FirstBatch,
			bugDoc(primitive.NewObjectID(), reporter, "newer"),
			bugDoc(primitive.NewObjectID(), reporter, "older"),
		))

		bugs, err := repo.List(context.Background(), ports.BugFilter{Status: domain.StatusOpen, ReportedBy: reporter.Hex()})
		if err != nil {
			mt.Fatalf("List returned error: %v", err)
		}
		if len(bugs) != 2 || bugs[0].Title != "newer" {
			mt.Fatalf("unexpected bugs: %+v", bugs)
		}

		evt := mt.GetStartedEvent()
		if evt == nil || evt.CommandName != "aggregate" {
			mt.Fatalf("expected aggregate command, got %+v", evt)
		}
		match := evt.Command.Lookup("pipeline", "0", "$match")
		if v, err := match.Document().LookupErr("status"); err != nil || v.StringValue() != "open" {
			mt.Fatalf("expected status filter in $match, got %v", match)
		}
	})

	mt.Run("empty collection", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, bugsNS, mtest.FirstBatch))

		bugs, err := repo.List(context.Background(), ports.BugFilter{})
		if err != nil {
			mt.Fatalf("List returned error: %v", err)
		}
		if bugs == nil || len(bugs) != 0 {
			mt.Fatalf("expected empty non-nil slice, got %#v", bugs)
		}
	})

	mt.Run("malformed user filter matches nothing", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)

		bugs, err := repo.List(context.Background(), ports.BugFilter{AssignedTo: "bob"})
		if err != nil || len(bugs) != 0 {
			mt.Fatalf("expected no bugs, got %v, %v", bugs, err)
		}
	})
}

func TestBugRepository_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sets id", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		b := &domain.Bug{
			Title: "T", Description: "D", Status: domain.StatusOpen, Priority: domain.PriorityLow, Project: "P",
			ReportedBy: domain.UserRef{ID: primitive.NewObjectID().Hex()},
		}
		if err := repo.Create(context.Background(), b); err != nil {
			mt.Fatalf("Create returned error: %v", err)
		}
		if _, err := primitive.ObjectIDFromHex(b.ID); err != nil {
			mt.Fatalf("expected hex object id, got %q", b.ID)
		}
	})

	mt.Run("rejects malformed reporter", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)

		if err := repo.Create(context.Background(), &domain.Bug{ReportedBy: domain.UserRef{ID: "alice"}}); err == nil {
			mt.Fatalf("expected error for malformed reporter id")
		}
	})
}

func TestBugRepository_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("single write without reporter", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		b := &domain.Bug{
			ID: primitive.NewObjectID().Hex(), Title: "T", Description: "D",
			Status: domain.StatusResolved, Priority: domain.PriorityLow, Project: "P",
			ReportedBy: domain.UserRef{ID: primitive.NewObjectID().Hex()},
			UpdatedAt:  time.Now().UTC(),
		}
		if err := repo.Update(context.Background(), b); err != nil {
			mt.Fatalf("Update returned error: %v", err)
		}

		evt := mt.GetStartedEvent()
		if evt == nil || evt.CommandName != "update" {
			mt.Fatalf("expected update command, got %+v", evt)
		}
		u := evt.Command.Lookup("updates", "0", "u").Document()
		if _, err := u.LookupErr("$set", "reported_by"); err == nil {
			mt.Fatalf("update must not write reported_by")
		}
		if _, err := u.LookupErr("$set", "created_at"); err == nil {
			mt.Fatalf("update must not write created_at")
		}
		if _, err := u.LookupErr("$unset", "assigned_to"); err != nil {
			mt.Fatalf("expected assigned_to to be unset when no assignee")
		}
		if v, err := u.LookupErr("$set", "status"); err != nil || v.StringValue() != "resolved" {
			mt.Fatalf("expected status in $set")
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.Update(context.Background(), &domain.Bug{ID: primitive.NewObjectID().Hex()})
		if !errors.Is(err, domain.ErrBugNotFound) {
			mt.Fatalf("expected ErrBugNotFound, got %v", err)
		}
	})
}

func TestBugRepository_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		if err := repo.Delete(context.Background(), primitive.NewObjectID().Hex()); err != nil {
			mt.Fatalf("Delete returned error: %v", err)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		repo := NewBugRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		if err := repo.Delete(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, domain.ErrBugNotFound) {
			mt.Fatalf("expected ErrBugNotFound, got %v", err)
		}
	})
}

func newStoredBugService(mt *mtest.T) *service.BugService {
	mt.Helper()
	authz, err := policy.NewRegoAuthorizer(context.Background())
	if err != nil {
		mt.Fatalf("compile policy: %v", err)
	}
	return service.NewBugService(NewBugRepository(mt.DB), NewUserRepository(mt.DB), authz, zerolog.Nop())
}

// The stored reporter must survive decoding, or ownership checks deny the
// reporter their own bug.
func TestBugService_StoredBugOwnership(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("reporter updates own bug", func(mt *mtest.T) {
		svc := newStoredBugService(mt)
		id, reporter := primitive.NewObjectID(), primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, bugsNS, mtest.FirstBatch, bugDoc(id, reporter, "Login fails on Safari")),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(0, bugsNS, mtest.FirstBatch, bugDoc(id, reporter, "Login fails on Safari")),
		)

		resolved := domain.StatusResolved
		b, err := svc.UpdateBug(context.Background(), id.Hex(),
			domain.Actor{ID: reporter.Hex(), Role: domain.RoleUser}, ports.BugPatch{Status: &resolved})
		if err != nil {
			mt.Fatalf("UpdateBug returned error: %v", err)
		}
		if b.ID != id.Hex() || b.ReportedBy.ID != reporter.Hex() {
			mt.Fatalf("unexpected bug: %+v", b)
		}

		if evt := mt.GetStartedEvent(); evt == nil || evt.CommandName != "aggregate" {
			mt.Fatalf("expected aggregate first, got %+v", evt)
		}
		evt := mt.GetStartedEvent()
		if evt == nil || evt.CommandName != "update" {
			mt.Fatalf("expected update command, got %+v", evt)
		}
		q := evt.Command.Lookup("updates", "0", "q", "_id")
		if got, ok := q.ObjectIDOK(); !ok || got != id {
			mt.Fatalf("update targeted %v, want %s", q, id.Hex())
		}
		u := evt.Command.Lookup("updates", "0", "u").Document()
		if v, err := u.LookupErr("$set", "title"); err != nil || v.StringValue() != "Login fails on Safari" {
			mt.Fatalf("stored title not carried into the update: %v", v)
		}
	})

	mt.Run("reporter deletes own bug", func(mt *mtest.T) {
		svc := newStoredBugService(mt)
		id, reporter := primitive.NewObjectID(), primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, bugsNS, mtest.FirstBatch, bugDoc(id, reporter, "Crash on save")),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		got, err := svc.DeleteBug(context.Background(), id.Hex(), domain.Actor{ID: reporter.Hex(), Role: domain.RoleUser})
		if err != nil || got != id.Hex() {
			mt.Fatalf("DeleteBug = %q, %v", got, err)
		}
	})

	mt.Run("other user is forbidden", func(mt *mtest.T) {
		svc := newStoredBugService(mt)
		id, reporter := primitive.NewObjectID(), primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, bugsNS, mtest.FirstBatch, bugDoc(id, reporter, "Crash on save")))

		title := "hijacked"
		_, err := svc.UpdateBug(context.Background(), id.Hex(),
			domain.Actor{ID: primitive.NewObjectID().Hex(), Role: domain.RoleUser}, ports.BugPatch{Title: &title})
		if !errors.Is(err, domain.ErrForbidden) {
			mt.Fatalf("expected ErrForbidden, got %v", err)
		}
		mt.GetStartedEvent()
		if evt := mt.GetStartedEvent(); evt != nil {
			mt.Fatalf("no write expected after a denial, got %s", evt.CommandName)
		}
	})
}
