package main

import (
	"context"
	"fmt"

	"github.com/99minutos/bug-tracker/internal/client/api"
	"github.com/99minutos/bug-tracker/internal/client/bugs"
)

var bugCommands = map[string]func(ctx context.Context, a *app, args []string) error{
	"list":   runBugsList,
	"show":   runBugsShow,
	"create": runBugsCreate,
	"update": runBugsUpdate,
	"status": runBugsStatus,
	"delete": runBugsDelete,
}

func runBugs(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: bugctl bugs <list|show|create|update|status|delete> [flags]")
	}
	fn, ok := bugCommands[args[0]]
	if !ok {
		return fmt.Errorf("unknown bugs command %q", args[0])
	}
	return fn(ctx, a, args[1:])
}

func runBugsList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("bugs list")
	status := fs.String("status", bugs.FilterAll, "show only bugs in this status (all, open, in-progress, resolved, closed)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	return a.listBugs(ctx, *status)
}

func (a *app) listBugs(ctx context.Context, status string) error {
	return a.guarded("/bugs", func() error {
		list := bugs.NewList(a.client)
		defer list.Close()
		if err := list.SetFilter(status); err != nil {
			return err
		}
		if err := list.Load(ctx); err != nil {
			return inline(list.Err(), err)
		}
		return a.out.bugList(list.Bugs())
	})
}

func runBugsShow(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlagSet("bugs show"), args)
	if err != nil {
		return err
	}
	if err := exactArgs("bugs show", rest, 1, "<id>"); err != nil {
		return err
	}
	return a.showBug(ctx, rest[0])
}

func (a *app) showBug(ctx context.Context, id string) error {
	return a.guarded("/bugs/"+id, func() error {
		d := bugs.NewDetail(a.client, id, nil)
		defer d.Close()
		if err := d.Load(ctx); err != nil {
			return inline(d.Err(), err)
		}
		return a.out.bug(d.Bug())
	})
}

func runBugsCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("bugs create")
	var in api.NewBug
	fs.StringVar(&in.Title, "title", "", "short summary (required, at most 100 characters)")
	fs.StringVar(&in.Description, "description", "", "what goes wrong (required)")
	fs.StringVar(&in.Project, "project", "", "affected project (required)")
	fs.StringVar(&in.Status, "status", "", "initial status (default open)")
	fs.StringVar(&in.Priority, "priority", "", "low, medium, high or critical (default medium)")
	fs.StringVar(&in.Steps, "steps", "", "steps to reproduce")
	fs.StringVar(&in.AssignedTo, "assign", "", "id of the user to assign")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	return a.guarded("/bugs/new", func() error {
		list := bugs.NewList(a.client)
		defer list.Close()
		bug, err := list.Create(ctx, in)
		if err != nil {
			return inline(list.Err(), err)
		}
		return a.out.bug(bug)
	})
}

func runBugsUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("bugs update")
	title := fs.String("title", "", "new title")
	description := fs.String("description", "", "new description")
	project := fs.String("project", "", "new project")
	status := fs.String("status", "", "new status")
	priority := fs.String("priority", "", "new priority")
	steps := fs.String("steps", "", "new steps to reproduce")
	assign := fs.String("assign", "", "id of the user to assign")
	unassign := fs.Bool("unassign", false, "remove the assignee")
	rest, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := exactArgs("bugs update", rest, 1, "<id> [flags]"); err != nil {
		return err
	}
	if *unassign && fs.Changed("assign") {
		return fmt.Errorf("--assign and --unassign cannot be combined")
	}

	var patch api.BugPatch
	set := func(flag string, dst **string, v *string) {
		if fs.Changed(flag) {
			*dst = v
		}
	}
	set("title", &patch.Title, title)
	set("description", &patch.Description, description)
	set("project", &patch.Project, project)
	set("status", &patch.Status, status)
	set("priority", &patch.Priority, priority)
	set("steps", &patch.Steps, steps)
	set("assign", &patch.AssignedTo, assign)
	if *unassign {
		empty := ""
		patch.AssignedTo = &empty
	}

	id := rest[0]
	return a.guarded("/bugs/edit/"+id, func() error {
		d := bugs.NewDetail(a.client, id, nil)
		defer d.Close()
		bug, err := d.Update(ctx, patch)
		if err != nil {
			return inline(d.Err(), err)
		}
		return a.out.bug(bug)
	})
}

func runBugsStatus(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlagSet("bugs status"), args)
	if err != nil {
		return err
	}
	if err := exactArgs("bugs status", rest, 2, "<id> <status>"); err != nil {
		return err
	}

	id, status := rest[0], rest[1]
	return a.guarded("/bugs/"+id, func() error {
		d := bugs.NewDetail(a.client, id, nil)
		defer d.Close()
		bug, err := d.UpdateStatus(ctx, status)
		if err != nil {
			return inline(d.Err(), err)
		}
		return a.out.message("Bug %s is now %s", bug.ID, bug.Status)
	})
}

func runBugsDelete(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlagSet("bugs delete"), args)
	if err != nil {
		return err
	}
	if err := exactArgs("bugs delete", rest, 1, "<id>"); err != nil {
		return err
	}

	id := rest[0]
	return a.guarded("/bugs/"+id, func() error {
		d := bugs.NewDetail(a.client, id, nil)
		defer d.Close()
		if err := d.Delete(ctx); err != nil {
			return inline(d.Err(), err)
		}
		return a.out.message("Deleted bug %s", id)
	})
}
