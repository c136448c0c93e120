// Package bugs holds client-side bug state: a filtered list, a single bug
// being viewed or edited, and the dashboard summary.
//
// State changes only after the server confirms a write. A hook allows one
// outstanding mutation at a time.
package bugs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/99minutos/bug-tracker/internal/client/api"
)

const FilterAll = "all"

var (
	ErrMutationPending = errors.New("bugs: another change is still being saved")
	ErrUnknownFilter   = errors.New("bugs: unknown status filter")
)

// Statuses lists the filterable statuses in display order.
var Statuses = []string{"open", "in-progress", "resolved", "closed"}

const (
	msgFetchList    = "Failed to fetch bugs"
	msgFetchDetail  = "Failed to fetch bug details"
	msgSave         = "Failed to save bug. Please try again."
	msgUpdateStatus = "Failed to update bug status"
	msgDelete       = "Failed to delete bug"
)

// Source is the part of the API the hooks read from and write to.
type Source interface {
	ListBugs(ctx context.Context, f api.BugFilter) ([]api.Bug, error)
	GetBug(ctx context.Context, id string) (*api.Bug, error)
	CreateBug(ctx context.Context, in api.NewBug) (*api.Bug, error)
	UpdateBug(ctx context.Context, id string, patch api.BugPatch) (*api.Bug, error)
	DeleteBug(ctx context.Context, id string) (string, error)
}

// mutation tracks the single write a hook may have in flight.
type mutation struct {
	pending bool
	closed  bool
}

func (m *mutation) begin() error {
	if m.pending {
		return ErrMutationPending
	}
	m.pending = true
	return nil
}

// List is every bug the user can see, narrowed client-side by status.
type List struct {
	src Source

	mu      sync.Mutex
	mut     mutation
	loaded  bool
	loading bool
	bugs    []api.Bug
	filter  string
	errMsg  string
}

func NewList(src Source) *List {
	return &List{src: src, filter: FilterAll}
}

// Load fetches all bugs. On failure the previous bugs are kept.
func (l *List) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.mut.closed {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	l.mu.Unlock()

	bugs, err := l.src.ListBugs(ctx, api.BugFilter{})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if l.mut.closed {
		return nil
	}
	if err != nil {
		l.errMsg = api.UserMessage(err, msgFetchList)
		return err
	}
	l.bugs = bugs
	l.loaded = true
	l.errMsg = ""
	return nil
}

func (l *List) SetFilter(status string) error {
	if status != FilterAll && !validStatus(status) {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, status)
	}
	l.mu.Lock()
	l.filter = status
	l.mu.Unlock()
	return nil
}

func (l *List) Filter() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter
}

// Bugs returns the bugs passing the current filter, newest first.
func (l *List) Bugs() []api.Bug {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]api.Bug, 0, len(l.bugs))
	for _, b := range l.bugs {
		if l.filter == FilterAll || b.Status == l.filter {
			out = append(out, b)
		}
	}
	return out
}

// All returns every loaded bug regardless of filter.
func (l *List) All() []api.Bug {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]api.Bug(nil), l.bugs...)
}

func (l *List) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

func (l *List) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Err is the inline message of the last failed call, or "".
func (l *List) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errMsg
}

func (l *List) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mut.pending
}

// Create reports a new bug and prepends it once the server confirms.
func (l *List) Create(ctx context.Context, in api.NewBug) (*api.Bug, error) {
	l.mu.Lock()
	if err := l.mut.begin(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.mu.Unlock()

	bug, err := l.src.CreateBug(ctx, in)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.mut.pending = false
	if err != nil {
		if !l.mut.closed {
			l.errMsg = api.UserMessage(err, msgSave)
		}
		return nil, err
	}
	if !l.mut.closed {
		l.bugs = append([]api.Bug{*bug}, l.bugs...)
		l.errMsg = ""
	}
	return bug, nil
}

// replace swaps in b where a bug with the same id is held.
func (l *List) replace(b api.Bug) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mut.closed {
		return
	}
	for i := range l.bugs {
		if l.bugs[i].ID == b.ID {
			l.bugs[i] = b
			return
		}
	}
}

func (l *List) remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mut.closed {
		return
	}
	for i := range l.bugs {
		if l.bugs[i].ID == id {
			l.bugs = append(l.bugs[:i], l.bugs[i+1:]...)
			return
		}
	}
}

// Close stops the list from taking in further results.
func (l *List) Close() {
	l.mu.Lock()
	l.mut.closed = true
	l.mu.Unlock()
}

// Detail is one bug being viewed or edited. Confirmed writes are reflected
// in the linked List, if any.
type Detail struct {
	src  Source
	id   string
	list *List

	mu      sync.Mutex
	mut     mutation
	bug     *api.Bug
	deleted bool
	errMsg  string
}

// NewDetail returns a hook for bug id. list may be nil.
func NewDetail(src Source, id string, list *List) *Detail {
	return &Detail{src: src, id: id, list: list}
}

func (d *Detail) ID() string { return d.id }

func (d *Detail) Load(ctx context.Context) error {
	bug, err := d.src.GetBug(ctx, d.id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mut.closed {
		return nil
	}
	if err != nil {
		d.errMsg = api.UserMessage(err, msgFetchDetail)
		return err
	}
	d.bug = bug
	d.errMsg = ""
	return nil
}

// Bug returns a copy of the loaded bug, or nil.
func (d *Detail) Bug() *api.Bug {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bug == nil {
		return nil
	}
	b := *d.bug
	return &b
}

func (d *Detail) Deleted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleted
}

func (d *Detail) Err() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errMsg
}

func (d *Detail) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mut.pending
}

func (d *Detail) UpdateStatus(ctx context.Context, status string) (*api.Bug, error) {
	return d.update(ctx, api.BugPatch{Status: &status}, msgUpdateStatus)
}

// Update sends patch as a partial update.
func (d *Detail) Update(ctx context.Context, patch api.BugPatch) (*api.Bug, error) {
	return d.update(ctx, patch, msgSave)
}

func (d *Detail) update(ctx context.Context, patch api.BugPatch, fallback string) (*api.Bug, error) {
	d.mu.Lock()
	if err := d.mut.begin(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.mu.Unlock()

	bug, err := d.src.UpdateBug(ctx, d.id, patch)

	d.mu.Lock()
	d.mut.pending = false
	closed := d.mut.closed
	if err != nil {
		if !closed {
			d.errMsg = api.UserMessage(err, fallback)
		}
		d.mu.Unlock()
		return nil, err
	}
	if !closed {
		b := *bug
		d.bug = &b
		d.errMsg = ""
	}
	d.mu.Unlock()

	if !closed && d.list != nil {
		d.list.replace(*bug)
	}
	return bug, nil
}

func (d *Detail) Delete(ctx context.Context) error {
	d.mu.Lock()
	if err := d.mut.begin(); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	_, err := d.src.DeleteBug(ctx, d.id)

	d.mu.Lock()
	d.mut.pending = false
	closed := d.mut.closed
	if err != nil {
		if !closed {
			d.errMsg = api.UserMessage(err, msgDelete)
		}
		d.mu.Unlock()
		return err
	}
	if !closed {
		d.bug = nil
		d.deleted = true
		d.errMsg = ""
	}
	d.mu.Unlock()

	if !closed && d.list != nil {
		d.list.remove(d.id)
	}
	return nil
}

func (d *Detail) Close() {
	d.mu.Lock()
	d.mut.closed = true
	d.mu.Unlock()
}

func validStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}
