package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/99minutos/bug-tracker/internal/client/api"
	"github.com/99minutos/bug-tracker/internal/client/bugs"
	"github.com/99minutos/bug-tracker/internal/client/session"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type printer struct {
	w      io.Writer
	format string
}

// structured writes v as JSON or YAML. It reports false for table output.
func (p printer) structured(v any) (bool, error) {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	}
	return false, nil
}

func (p printer) bugList(list []api.Bug) error {
	if list == nil {
		list = []api.Bug{}
	}
	if done, err := p.structured(list); done {
		return err
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(p.w, "No bugs found.")
		return err
	}

	tw := tabwriter.NewWriter(p.w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tPROJECT\tTITLE\tREPORTED BY\tASSIGNED TO")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Status, b.Priority, b.Project, b.Title, b.ReportedBy.Name, assignee(b))
	}
	return tw.Flush()
}

func (p printer) bug(b *api.Bug) error {
	if done, err := p.structured(b); done {
		return err
	}
	tw := tabwriter.NewWriter(p.w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", b.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", b.Title)
	fmt.Fprintf(tw, "Status:\t%s\n", b.Status)
	fmt.Fprintf(tw, "Priority:\t%s\n", b.Priority)
	fmt.Fprintf(tw, "Project:\t%s\n", b.Project)
	fmt.Fprintf(tw, "Reported by:\t%s\n", b.ReportedBy.Name)
	fmt.Fprintf(tw, "Assigned to:\t%s\n", assignee(*b))
	fmt.Fprintf(tw, "Created:\t%s\n", b.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "Updated:\t%s\n", b.UpdatedAt.Format("2006-01-02 15:04"))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(p.w, "\n%s\n", b.Description)
	if b.Steps != "" {
		fmt.Fprintf(p.w, "\nSteps to reproduce:\n%s\n", b.Steps)
	}
	return nil
}

func (p printer) user(u any, name, email, role string) error {
	if done, err := p.structured(u); done {
		return err
	}
	tw := tabwriter.NewWriter(p.w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", name)
	fmt.Fprintf(tw, "Email:\t%s\n", email)
	fmt.Fprintf(tw, "Role:\t%s\n", role)
	return tw.Flush()
}

func (p printer) apiUser(u *api.User) error {
	return p.user(u, u.Name, u.Email, u.Role)
}

func (p printer) sessionUser(u *session.User) error {
	return p.user(u, u.Name, u.Email, u.Role)
}

func (p printer) summary(s bugs.Summary, name string) error {
	if done, err := p.structured(s); done {
		return err
	}
	if name == "" {
		name = "User"
	}
	fmt.Fprintf(p.w, "Welcome back, %s!\n\n", name)

	tw := tabwriter.NewWriter(p.w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Total bugs:\t%d\n", s.Total)
	for _, st := range bugs.Statuses {
		fmt.Fprintf(tw, "%s:\t%d\t(%d%%)\n", st, s.ByStatus[st], s.Share(st))
	}
	fmt.Fprintf(tw, "High priority:\t%d\n", s.HighPriority)
	fmt.Fprintf(tw, "Reported by you:\t%d\n", s.ReportedByMe)
	fmt.Fprintf(tw, "Resolution rate:\t%d%%\n", s.ResolutionRate)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(p.w, "\nRecent bugs:")
	return p.bugList(s.Recent)
}

func (p printer) message(format string, args ...any) error {
	if done, err := p.structured(map[string]string{"message": fmt.Sprintf(format, args...)}); done {
		return err
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}

func assignee(b api.Bug) string {
	if b.AssignedTo == nil {
		return "-"
	}
	return b.AssignedTo.Name
}
