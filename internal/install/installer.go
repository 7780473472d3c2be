// Package install orchestrates the lifecycle of packages: install,
// update, upgrade, remove and prune. Every mutating operation takes a
// per-package lock, builds a plan, asks the confirmer, and only then
// touches the filesystem.
package install

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/chaifeng/ghri/internal/config"
	"github.com/chaifeng/ghri/internal/fetch"
	"github.com/chaifeng/ghri/internal/links"
	"github.com/chaifeng/ghri/internal/meta"
	"github.com/chaifeng/ghri/internal/pkgdir"
	"github.com/chaifeng/ghri/internal/platform"
	"github.com/chaifeng/ghri/internal/transaction"
)

// Confirmer gates mutating operations. Implementations may prompt the
// user; the orchestrator only cares about the boolean outcome.
type Confirmer interface {
	Confirm(plan *Plan) (bool, error)
}

// AutoApprove is the Confirmer used with --yes.
type AutoApprove struct{}

func (AutoApprove) Confirm(*Plan) (bool, error) { return true, nil }

// Plan describes what a mutating operation is about to do, for display
// before confirmation.
type Plan struct {
	Operation string   // install, remove, prune
	Package   string   // owner/repo
	Version   string   // resolved version, if any
	Asset     string   // asset chosen for download, if any
	Actions   []string // human-readable steps in order
}

// ErrAborted reports that the confirmer declined the plan.
var ErrAborted = fmt.Errorf("aborted by user")

// Installer wires the collaborators behind the package lifecycle.
type Installer struct {
	settings config.Settings
	layout   *pkgdir.Layout
	store    *meta.Store
	registry *links.Registry
	platform *platform.Info
	confirm  Confirmer
	progress bool
	log      *zap.Logger

	mu      sync.Mutex
	clients map[string]*fetch.Client
}

// New creates an installer. confirm may be nil, which auto-approves.
func New(settings config.Settings, info *platform.Info, confirm Confirmer, progress bool, log *zap.Logger) *Installer {
	if confirm == nil {
		confirm = AutoApprove{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	layout := pkgdir.NewLayout(settings.Root)
	store := meta.NewStore()
	return &Installer{
		settings: settings,
		layout:   layout,
		store:    store,
		registry: links.NewRegistry(layout, store, log),
		platform: info,
		confirm:  confirm,
		progress: progress,
		log:      log,
		clients:  map[string]*fetch.Client{},
	}
}

// Layout exposes the path layout for commands that format output.
func (ins *Installer) Layout() *pkgdir.Layout { return ins.layout }

// Registry exposes the link registry for the link commands.
func (ins *Installer) Registry() *links.Registry { return ins.registry }

// clientFor returns an API client for a base URL. Descriptors remember
// which API they came from, so an enterprise package keeps talking to its
// own host.
func (ins *Installer) clientFor(apiURL string) *fetch.Client {
	if apiURL == "" {
		apiURL = ins.settings.APIURL
	}
	if apiURL == "" {
		apiURL = meta.DefaultAPIURL
	}
	ins.mu.Lock()
	defer ins.mu.Unlock()
	if c, ok := ins.clients[apiURL]; ok {
		return c
	}
	c := fetch.NewClient(apiURL, ins.settings.Token).WithLogger(ins.log)
	ins.clients[apiURL] = c
	return c
}

// lock serializes mutations of one package directory.
func (ins *Installer) lock(pkg pkgdir.Package) (*transaction.Lock, error) {
	lock, err := transaction.AcquireLock(ins.layout.LockPath(pkg.Owner, pkg.Repo))
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", pkg, err)
	}
	return lock, nil
}
