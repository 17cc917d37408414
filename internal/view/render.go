package view

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Render draws p for a terminal.
func Render(w io.Writer, p Projection) error {
	switch {
	case p.ShowAuthLoader:
		_, err := fmt.Fprintln(w, "Loading TaskMaster...")
		return err
	case p.ShowTaskLoader:
		_, err := fmt.Fprintln(w, "Loading tasks...")
		return err
	}

	if p.UserName != "" {
		if _, err := fmt.Fprintf(w, "%s's tasks\n", p.UserName); err != nil {
			return err
		}
	}
	if p.ShowEmptyState {
		_, err := fmt.Fprintln(w, "Your to-do list is empty!\nAdd a new task to get started.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, t := range p.OrderedTasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", checkbox(t.Completed), t.Text, t.Id)
	}
	return tw.Flush()
}
