// Package cli is the taskmaster command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Novip1906/taskmaster/internal/client"
	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/internal/credentials"
	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/internal/session"
	"github.com/Novip1906/taskmaster/internal/tasksync"
	"github.com/Novip1906/taskmaster/internal/view"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

// ErrReported is returned by commands that already told the user what went
// wrong.
var ErrReported = errors.New("reported")

// IsReported tells whether err has already been shown to the user.
func IsReported(err error) bool {
	return errors.Is(err, ErrReported)
}

const (
	restoreTimeout = 5 * time.Second
	loadTimeout    = 10 * time.Second
)

type Dialer func(address string) (*grpc.ClientConn, error)

type env struct {
	cfg *config.Client
	out io.Writer
	log *slog.Logger

	conn     *grpc.ClientConn
	provider *client.AuthProvider
	docs     *client.DocumentStore
	session  *session.Store
	tasks    *tasksync.Sync
	gateway  *credentials.Gateway

	// route is the last navigation requested by the session store.
	routeMu sync.Mutex
	route   session.Navigation

	outMu sync.Mutex
}

// Run executes the command line args. dial defaults to client.Dial.
func Run(ctx context.Context, cfg *config.Client, dial Dialer, out io.Writer, args []string) error {
	if dial == nil {
		dial = func(address string) (*grpc.ClientConn, error) { return client.Dial(address) }
	}
	e := &env{cfg: cfg, out: out}
	defer e.close()

	root := newRootCommand(e, dial)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(e *env, dial Dialer) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskmaster",
		Short:         "TaskMaster keeps your to-do list in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open(cmd.Context(), dial)
		},
	}
	root.SetOut(e.out)

	root.AddCommand(
		newSignUpCommand(e),
		newSignInCommand(e),
		newSignOutCommand(e),
		newWhoAmICommand(e),
		newAddCommand(e),
		newToggleCommand(e),
		newRemoveCommand(e),
		newListCommand(e),
		newWatchCommand(e),
		newExportCommand(e),
		newSearchCommand(e),
	)
	return root
}

func (e *env) open(ctx context.Context, dial Dialer) error {
	e.log = logging.NewLogger(os.Stderr, logging.ParseLevel(e.cfg.LogLevel))

	conn, err := dial(e.cfg.Address)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", e.cfg.Address, err)
	}
	e.conn = conn
	e.provider = client.NewAuthProvider(conn, e.cfg.CredentialsPath, e.log)
	e.docs = client.NewDocumentStore(conn, e.provider, e.log)
	e.session = session.New(e.provider, e.log, session.WithNavigator(e.navigate))
	e.tasks = tasksync.New(e.docs, e.log, e.notify)
	e.gateway = credentials.NewGateway(e.provider, e.docs, e.log)

	e.session.Start()
	e.tasks.Bind(e.session)

	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()
	if err := e.provider.Restore(ctx); err != nil {
		e.log.Warn("restore session", logging.Err(err))
		e.notify(appErrors.Describe(appErrors.OpInitialize, err))
	}
	return nil
}

func (e *env) navigate(n session.Navigation) {
	e.log.Debug("navigate", slog.String("to", n.String()))
	e.routeMu.Lock()
	e.route = n
	e.routeMu.Unlock()
}

func (e *env) close() {
	if e.tasks != nil {
		e.tasks.Close()
	}
	if e.session != nil {
		e.session.Close()
	}
	if e.conn != nil {
		e.conn.Close()
	}
}

func (e *env) notify(n models.Notice) {
	e.printf("%s: %s\n", n.Title, n.Description)
}

func (e *env) printf(format string, args ...any) {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	fmt.Fprintf(e.out, format, args...)
}

// fail reports err as the notice for op.
func (e *env) fail(op appErrors.Op, err error) error {
	e.log.Debug("command failed", slog.String("op", string(op)), logging.Err(err))
	e.notify(appErrors.Describe(op, err))
	return ErrReported
}

// requireSignedIn reports ErrNotAuthenticated for op when nobody is signed in.
func (e *env) requireSignedIn(op appErrors.Op) error {
	if e.session.Value().State != session.SignedIn {
		return e.fail(op, appErrors.ErrNotAuthenticated)
	}
	return nil
}

// waitTasks blocks until the task subscription delivered its first snapshot.
func (e *env) waitTasks(ctx context.Context, op appErrors.Op) (tasksync.View, error) {
	if err := e.requireSignedIn(op); err != nil {
		return tasksync.View{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	views := make(chan tasksync.View, 1)
	unsubscribe := e.tasks.Subscribe(func(v tasksync.View) {
		select {
		case <-views:
		default:
		}
		views <- v
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return tasksync.View{}, e.fail(appErrors.OpLoad, ctx.Err())
		case v := <-views:
			switch {
			case v.State == tasksync.Live:
				return v, nil
			case v.State == tasksync.Closed:
				return v, e.fail(op, appErrors.ErrNotAuthenticated)
			case !v.Loading:
				// the load failure notice has been printed
				return v, ErrReported
			}
		}
	}
}

func (e *env) projection(v tasksync.View) view.Projection {
	e.routeMu.Lock()
	route := e.route
	e.routeMu.Unlock()

	return view.Project(view.Input{
		Session:           e.session.Value(),
		Tasks:             v.Tasks,
		Loading:           v.Loading,
		NavigationPending: route != session.NavigateMain,
	})
}

func (e *env) render(v tasksync.View) error {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	return view.Render(e.out, e.projection(v))
}
