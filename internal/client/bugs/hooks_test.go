package bugs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/99minutos/bug-tracker/internal/client/api"
)

// stubSource serves bugs from memory. When gate is set, writes block until
// it is closed.
type stubSource struct {
	mu       sync.Mutex
	bugs     []api.Bug
	listErr  error
	getErr   error
	writeErr error
	gate     chan struct{}
	started  chan struct{}
	writes   int
}

func (s *stubSource) wait() {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
}

func (s *stubSource) ListBugs(context.Context, api.BugFilter) ([]api.Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]api.Bug(nil), s.bugs...), nil
}

func (s *stubSource) GetBug(_ context.Context, id string) (*api.Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, b := range s.bugs {
		if b.ID == id {
			c := b
			return &c, nil
		}
	}
	return nil, &api.Error{Status: 404, Message: "Bug not found"}
}

func (s *stubSource) CreateBug(_ context.Context, in api.NewBug) (*api.Bug, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	b := api.Bug{ID: "new", Title: in.Title, Status: "open", Priority: "medium"}
	s.bugs = append([]api.Bug{b}, s.bugs...)
	return &b, nil
}

func (s *stubSource) UpdateBug(_ context.Context, id string, p api.BugPatch) (*api.Bug, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	for i := range s.bugs {
		if s.bugs[i].ID == id {
			if p.Status != nil {
				s.bugs[i].Status = *p.Status
			}
			if p.Title != nil {
				s.bugs[i].Title = *p.Title
			}
			c := s.bugs[i]
			return &c, nil
		}
	}
	return nil, &api.Error{Status: 404, Message: "Bug not found"}
}

func (s *stubSource) DeleteBug(_ context.Context, id string) (string, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writeErr != nil {
		return "", s.writeErr
	}
	for i := range s.bugs {
		if s.bugs[i].ID == id {
			s.bugs = append(s.bugs[:i], s.bugs[i+1:]...)
			return id, nil
		}
	}
	return "", &api.Error{Status: 404, Message: "Bug not found"}
}

func seed() *stubSource {
	return &stubSource{bugs: []api.Bug{
		{ID: "b1", Title: "Crash on save", Status: "open", Priority: "high"},
		{ID: "b2", Title: "Typo", Status: "resolved", Priority: "low"},
		{ID: "b3", Title: "Slow list", Status: "in-progress", Priority: "medium"},
	}}
}

func ids(bugs []api.Bug) []string {
	out := make([]string, len(bugs))
	for i, b := range bugs {
		out[i] = b.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestList_LoadAndFilter(t *testing.T) {
	l := NewList(seed())
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ids(l.Bugs()); !equal(got, []string{"b1", "b2", "b3"}) {
		t.Errorf("all = %v", got)
	}

	if err := l.SetFilter("resolved"); err != nil {
		t.Fatal(err)
	}
	if got := ids(l.Bugs()); !equal(got, []string{"b2"}) {
		t.Errorf("resolved = %v", got)
	}
	if err := l.SetFilter("done"); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("expected ErrUnknownFilter, got %v", err)
	}
	if l.Filter() != "resolved" {
		t.Errorf("filter changed on bad input: %q", l.Filter())
	}
}

func TestList_LoadErrorKeepsPriorState(t *testing.T) {
	src := seed()
	l := NewList(src)
	_ = l.Load(context.Background())

	src.listErr = errors.New("connection reset")
	if err := l.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(l.All()) != 3 {
		t.Errorf("prior bugs lost: %v", ids(l.All()))
	}
	if l.Err() != "Failed to fetch bugs" {
		t.Errorf("err = %q", l.Err())
	}
}

func TestList_CreatePrepends(t *testing.T) {
	l := NewList(seed())
	_ = l.Load(context.Background())

	b, err := l.Create(context.Background(), api.NewBug{Title: "New one", Description: "d", Project: "p"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != "new" {
		t.Errorf("got %+v", b)
	}
	if got := ids(l.All()); !equal(got, []string{"new", "b1", "b2", "b3"}) {
		t.Errorf("order = %v", got)
	}
}

func TestList_CreateFailureSetsInlineError(t *testing.T) {
	src := seed()
	src.writeErr = &api.Error{Status: 400, Message: "Title is required"}
	l := NewList(src)
	_ = l.Load(context.Background())

	if _, err := l.Create(context.Background(), api.NewBug{}); err == nil {
		t.Fatal("expected error")
	}
	if l.Err() != "Title is required" {
		t.Errorf("err = %q", l.Err())
	}
	if len(l.All()) != 3 || l.Pending() {
		t.Errorf("state changed: %v pending=%v", ids(l.All()), l.Pending())
	}
}

func TestDetail_UpdateReconcilesList(t *testing.T) {
	src := seed()
	l := NewList(src)
	_ = l.Load(context.Background())
	d := NewDetail(src, "b1", l)
	if err := d.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := d.UpdateStatus(context.Background(), "in-progress"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if d.Bug().Status != "in-progress" {
		t.Errorf("detail = %+v", d.Bug())
	}
	if l.All()[0].Status != "in-progress" || l.All()[0].ID != "b1" {
		t.Errorf("list not reconciled in place: %+v", l.All()[0])
	}

	title := "Crash on save (Safari)"
	if _, err := d.Update(context.Background(), api.BugPatch{Title: &title}); err != nil {
		t.Fatal(err)
	}
	if d.Bug().Title != title || d.Bug().Status != "in-progress" {
		t.Errorf("detail = %+v", d.Bug())
	}
}

func TestDetail_UpdateFailureLeavesStateIntact(t *testing.T) {
	src := seed()
	d := NewDetail(src, "b1", nil)
	_ = d.Load(context.Background())

	src.writeErr = &api.Error{Status: 403, Message: "Not authorized to update this bug"}
	if _, err := d.UpdateStatus(context.Background(), "closed"); api.KindOf(err) != api.KindForbidden {
		t.Fatalf("got %v", err)
	}
	if d.Bug().Status != "open" {
		t.Errorf("no optimistic update expected, got %q", d.Bug().Status)
	}
	if d.Err() != "Not authorized to update this bug" {
		t.Errorf("err = %q", d.Err())
	}

	src.writeErr = errors.New("timeout")
	_, _ = d.UpdateStatus(context.Background(), "closed")
	if d.Err() != "Failed to update bug status" {
		t.Errorf("err = %q", d.Err())
	}
}

func TestDetail_DeleteRemovesFromList(t *testing.T) {
	src := seed()
	l := NewList(src)
	_ = l.Load(context.Background())
	d := NewDetail(src, "b2", l)
	_ = d.Load(context.Background())

	if err := d.Delete(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !d.Deleted() || d.Bug() != nil {
		t.Errorf("detail after delete: deleted=%v bug=%v", d.Deleted(), d.Bug())
	}
	if got := ids(l.All()); !equal(got, []string{"b1", "b3"}) {
		t.Errorf("list = %v", got)
	}
}

func TestDetail_LoadNotFound(t *testing.T) {
	d := NewDetail(seed(), "missing", nil)
	err := d.Load(context.Background())
	if api.KindOf(err) != api.KindNotFound || d.Err() != "Bug not found" {
		t.Fatalf("got %v / %q", err, d.Err())
	}
}

func TestDetail_SecondMutationFailsFast(t *testing.T) {
	src := seed()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	d := NewDetail(src, "b1", nil)

	done := make(chan error, 1)
	go func() {
		_, err := d.UpdateStatus(context.Background(), "resolved")
		done <- err
	}()
	<-src.started

	if !d.Pending() {
		t.Error("expected pending while the first write is in flight")
	}
	if _, err := d.UpdateStatus(context.Background(), "closed"); !errors.Is(err, ErrMutationPending) {
		t.Errorf("expected ErrMutationPending, got %v", err)
	}
	if err := d.Delete(context.Background()); !errors.Is(err, ErrMutationPending) {
		t.Errorf("expected ErrMutationPending, got %v", err)
	}

	close(src.gate)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first update: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first update did not finish")
	}
	if d.Pending() || src.writes != 1 {
		t.Errorf("pending=%v writes=%d", d.Pending(), src.writes)
	}
}

func TestDetail_ResultsAfterCloseAreIgnored(t *testing.T) {
	src := seed()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	l := NewList(src)
	_ = l.Load(context.Background())
	d := NewDetail(src, "b1", l)
	_ = d.Load(context.Background())

	done := make(chan struct{})
	go func() {
		_, _ = d.UpdateStatus(context.Background(), "closed")
		close(done)
	}()
	<-src.started
	d.Close()
	close(src.gate)
	<-done

	if d.Bug().Status != "open" {
		t.Errorf("closed hook changed state: %q", d.Bug().Status)
	}
	if l.All()[0].Status != "open" {
		t.Errorf("closed hook reconciled list: %q", l.All()[0].Status)
	}
}
