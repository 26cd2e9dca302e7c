package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blackwell-systems/memprune/internal/config"
	"github.com/blackwell-systems/memprune/internal/engine"
	"github.com/blackwell-systems/memprune/internal/logging"
	"github.com/blackwell-systems/memprune/internal/pkginfo"
	"github.com/blackwell-systems/memprune/internal/shell"
	"github.com/blackwell-systems/memprune/internal/store"
)

// privilegeWait bounds the blocking root probe done by batch commands.
const privilegeWait = time.Second

// openStore opens the database at the configured path and ensures the
// schema exists.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// loadSettings reads the settings file. A malformed file is reported on
// stderr and the defaults are used.
func loadSettings() (config.Settings, *config.FileSource, error) {
	path, err := getConfigPath()
	if err != nil {
		return config.Defaults(), nil, err
	}
	src := config.NewFileSource(path)
	s := src.Current()
	if err := src.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
	}
	return s, src, nil
}

// newBroker builds the root-first channel list from settings.
func newBroker(s config.Settings) (*shell.Broker, error) {
	root, err := shell.NewRootChannel(s.RootCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid root_command: %w", err)
	}
	brokered, err := shell.NewBrokeredChannel(s.BrokerCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid broker_command: %w", err)
	}
	return shell.NewBroker(root, brokered), nil
}

// runtime bundles the collaborators most commands need.
type runtime struct {
	settings config.Settings
	source   *config.FileSource
	store    *store.Store
	broker   *shell.Broker
	packages *pkginfo.ShellResolver
	labels   *config.Labels
	log      *logging.Logger
}

func newRuntime() (*runtime, error) {
	settings, src, err := loadSettings()
	if err != nil {
		return nil, err
	}

	st, err := openStore()
	if err != nil {
		return nil, err
	}

	broker, err := newBroker(settings)
	if err != nil {
		st.Close()
		return nil, err
	}

	labels := &config.Labels{Names: map[string]string{}}
	if dir, err := config.Dir(); err == nil {
		if l, err := config.LoadLabels(dir); err == nil {
			labels = l
		}
	}

	return &runtime{
		settings: settings,
		source:   src,
		store:    st,
		broker:   broker,
		packages: pkginfo.NewShellResolver(broker),
		labels:   labels,
		log:      logging.Default(),
	}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// engine builds a reclamation engine reporting through notifier.
func (r *runtime) engine(notifier engine.Notifier) *engine.Engine {
	return engine.New(engine.Config{
		Broker:      r.broker,
		Policy:      r.store,
		Stats:       r.store,
		Packages:    r.packages,
		Labels:      r.labels,
		Notifier:    notifier,
		SettleDelay: r.settings.SettleDelay,
		Logger:      r.log,
	})
}

// requirePrivilege waits briefly for the root probe and fails if no
// channel is usable.
func (r *runtime) requirePrivilege(ctx context.Context) error {
	ok, err := r.broker.WaitForPrivilege(ctx, privilegeWait)
	if err != nil {
		return err
	}
	if !ok {
		return errNoPrivilege
	}
	return nil
}

var errNoPrivilege = fmt.Errorf("%w: grant root or start the broker, then run 'memprune doctor'", shell.ErrNoPrivilege)

// statusNotifier returns the notifiers used by cycles started from the CLI
// or daemon: the log plus the shared status file.
func statusNotifier(log *logging.Logger) engine.Notifier {
	ns := engine.Notifiers{engine.LogNotifier{Log: log}}
	if path, err := getStatusFile(); err == nil {
		ns = append(ns, engine.NewStatusFile(path))
	}
	return ns
}
