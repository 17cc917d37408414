package cli

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/Novip1906/taskmaster/internal/tasksync"
	"github.com/Novip1906/taskmaster/internal/view"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/spf13/cobra"
)

func newAddCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.tasks.Add(strings.Join(args, " ")); err != nil {
				return e.fail(appErrors.OpAdd, err)
			}
			e.tasks.Wait()
			return nil
		},
	}
}

func newToggleCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark a task done or not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := e.waitTasks(cmd.Context(), appErrors.OpToggle); err != nil {
				return err
			}
			if err := e.tasks.Toggle(args[0]); err != nil {
				return e.fail(appErrors.OpToggle, err)
			}
			e.tasks.Wait()
			return nil
		},
	}
}

func newRemoveCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := e.waitTasks(cmd.Context(), appErrors.OpRemove); err != nil {
				return err
			}
			if err := e.tasks.Remove(args[0]); err != nil {
				return e.fail(appErrors.OpRemove, err)
			}
			e.tasks.Wait()
			return nil
		},
	}
}

func newListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show your tasks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := e.waitTasks(cmd.Context(), appErrors.OpLoad)
			if err != nil {
				return err
			}
			return e.render(v)
		},
	}
}

func newWatchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show your tasks and follow changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.requireSignedIn(appErrors.OpLoad); err != nil {
				return err
			}

			unsubscribe := e.tasks.Subscribe(func(v tasksync.View) {
				if v.State == tasksync.Closed {
					return
				}
				e.printf("--- %s\n", time.Now().Format(time.TimeOnly))
				if err := e.render(v); err != nil {
					e.log.Warn("render tasks", logging.Err(err))
				}
			})
			defer unsubscribe()

			<-cmd.Context().Done()
			return nil
		},
	}
}

func newExportCommand(e *env) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write your tasks to " + view.ExportFileName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := e.waitTasks(cmd.Context(), appErrors.OpExport)
			if err != nil {
				return err
			}

			path, err := view.WriteExport(dir, v.Tasks)
			if errors.Is(err, appErrors.ErrNothingToExport) {
				e.notify(appErrors.Describe(appErrors.OpExport, err))
				return nil
			}
			if err != nil {
				return e.fail(appErrors.OpExport, err)
			}
			e.log.Debug("exported", slog.String("path", path))
			e.notify(view.NoticeExported)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", e.cfg.ExportDir, "directory to write the export file to")
	return cmd
}

func newSearchCommand(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search your tasks by text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.requireSignedIn(appErrors.OpSearch); err != nil {
				return err
			}

			hits, err := e.docs.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return e.fail(appErrors.OpSearch, err)
			}
			if len(hits) == 0 {
				e.printf("No matching tasks.\n")
				return nil
			}
			for _, h := range hits {
				box := "[ ]"
				if h.Completed {
					box = "[x]"
				}
				e.printf("%s %s  %s\n", box, h.Text, h.Id)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}
