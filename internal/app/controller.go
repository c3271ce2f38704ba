package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"placemap/internal/adapters/observability"
	"placemap/internal/domain"
	"placemap/internal/geodatabase"
	"placemap/internal/geometry"
	"placemap/internal/mapview"
	"placemap/internal/ui"
)

const (
	MsgSuccess            = "Feature successfully added"
	MsgCannotAdd          = "Cannot add a feature to this feature table"
	TitleApplyEditsFailed = "Exception applying edits on server"
	TitleEditRejected     = "Feature was not added"
	TitleLoadFailed       = "Unable to load feature service"
	TitleInvalidFeature   = "Invalid feature"
)

var (
	ErrBusy         = errors.New("a submission is already in progress")
	ErrKeyRejected  = errors.New("ArcGIS API key rejected")
	ErrClickIgnored = errors.New("click ignored")
	ErrNoDialog     = errors.New("no open dialog")
)

// State of the single feature submission the controller drives.
type State int

const (
	Idle State = iota
	PointCaptured
	DialogOpen
	Validating
	EditsPending
)

func (s State) String() string {
	switch s {
	case PointCaptured:
		return "point_captured"
	case DialogOpen:
		return "dialog_open"
	case Validating:
		return "validating"
	case EditsPending:
		return "edits_pending"
	}
	return "idle"
}

type MouseButton int

const (
	Primary MouseButton = iota
	Secondary
	Middle
)

// Click is a mouse release on the map.
type Click struct {
	X, Y            float64
	Button          MouseButton
	StillSincePress bool // false when the press turned into a drag
}

// DialogInput is what the user typed into the place dialog.
type DialogInput struct {
	Name        string
	Description string
	Category    string
}

type Options struct {
	EditTimeout time.Duration
	LoadTimeout time.Duration
}

// Controller is the application: it owns the map, the feature table, the
// open dialog and the submission state. Every field below is read and
// written only on the UI loop; exported methods hop onto it.
type Controller struct {
	loop      *ui.Loop
	mapView   *mapview.MapView
	gdb       *geodatabase.ServiceGeodatabase
	presenter domain.Presenter
	opts      Options

	ctx      context.Context
	table    *geodatabase.Table
	dialog   *ui.PlaceDialog
	state    State
	captured orb.Point

	// held from a captured click (or AddPlace) until the outcome is shown
	// or the dialog is cancelled
	busy *semaphore.Weighted

	loadDone chan struct{}
	loadErr  error
}

func NewController(loop *ui.Loop, mv *mapview.MapView, gdb *geodatabase.ServiceGeodatabase, p domain.Presenter, opts Options) *Controller {
	if opts.EditTimeout <= 0 {
		opts.EditTimeout = 30 * time.Second
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Controller{
		loop:      loop,
		mapView:   mv,
		gdb:       gdb,
		presenter: p,
		opts:      opts,
		ctx:       context.Background(),
		busy:      semaphore.NewWeighted(1),
		loadDone:  make(chan struct{}),
	}
}

// Start loads the service geodatabase in the background and attaches its
// first table to the map once it is ready. ctx bounds all background work.
func (c *Controller) Start(ctx context.Context) error {
	return c.loop.Call(ctx, func() {
		c.ctx = ctx
		ui.Async(ctx, c.loop,
			func(ctx context.Context) (*geodatabase.Table, error) {
				ctx, cancel := context.WithTimeout(ctx, c.opts.LoadTimeout)
				defer cancel()
				if err := c.gdb.Load(ctx); err != nil {
					return nil, err
				}
				return c.gdb.Table(0)
			},
			c.onLoaded)
	})
}

func (c *Controller) onLoaded(t *geodatabase.Table, err error) {
	defer close(c.loadDone)
	if err != nil {
		c.loadErr = err
		log.Error().Err(err).Str("service", c.gdb.ServiceURL()).Msg("feature service load failed")
		c.displayMessage(TitleLoadFailed, err.Error())
		return
	}
	c.table = t
	if err := c.mapView.AddLayer(mapview.NewFeatureLayer(t)); err != nil {
		log.Warn().Err(err).Msg("attach layer failed")
		return
	}
	log.Info().Str("layer", t.Name()).Bool("can_add", t.CanAdd()).Msg("feature layer attached")
}

// WaitLoaded blocks until the initial load finished and returns its error.
func (c *Controller) WaitLoaded(ctx context.Context) error {
	select {
	case <-c.loadDone:
		return c.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequireCredentials waits for the initial load and fails only when the
// service rejected the API key. Any other load failure has already been
// shown as an alert and leaves the app running.
func (c *Controller) RequireCredentials(ctx context.Context) error {
	err := c.WaitLoaded(ctx)
	if errors.Is(err, domain.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", ErrKeyRejected, err)
	}
	return nil
}

// Click handles a mouse click on the map: a still primary click while idle
// captures the point and opens the dialog.
func (c *Controller) Click(ctx context.Context, ev Click) (Snapshot, error) {
	return c.do(ctx, func() error { return c.onClick(ev) })
}

func (c *Controller) onClick(ev Click) error {
	if ev.Button != Primary || !ev.StillSincePress {
		return ErrClickIgnored
	}
	if c.table == nil {
		return domain.ErrNotLoaded
	}
	if !c.busy.TryAcquire(1) {
		return ErrBusy
	}
	p, err := c.mapView.ScreenToLocation(ev.X, ev.Y)
	if err != nil {
		c.busy.Release(1)
		return err
	}
	c.capture(p)
	return nil
}

func (c *Controller) capture(p orb.Point) {
	c.captured = geometry.NormalizeCentralMeridian(p)
	c.state = PointCaptured
	log.Debug().Float64("lon", p.Lon()).Float64("lat", p.Lat()).
		Float64("norm_lon", c.captured.Lon()).Msg("point captured")

	c.dialog = ui.NewPlaceDialog(c.captured)
	c.state = DialogOpen
}

// Submit fills the dialog with in and submits it. A disabled submit keeps
// the dialog open.
func (c *Controller) Submit(ctx context.Context, in DialogInput) (Snapshot, error) {
	return c.do(ctx, func() error {
		if c.state != DialogOpen || c.dialog == nil {
			return ErrNoDialog
		}
		c.dialog.SetName(in.Name)
		c.dialog.SetDescription(in.Description)
		if in.Category != "" {
			cat, err := domain.ParseCategory(in.Category)
			if err != nil {
				return err
			}
			if err := c.dialog.SetCategory(cat); err != nil {
				return err
			}
		}
		place, err := c.dialog.Submit()
		if err != nil {
			return err
		}
		c.dialog = nil
		c.state = Validating
		return c.addFeature(place)
	})
}

// Cancel closes the dialog; nothing is submitted.
func (c *Controller) Cancel(ctx context.Context) (Snapshot, error) {
	return c.do(ctx, func() error {
		if c.state != DialogOpen || c.dialog == nil {
			return ErrNoDialog
		}
		c.dialog.Cancel()
		c.dialog = nil
		c.state = Idle
		c.busy.Release(1)
		observability.ObserveSubmission("cancelled")
		return nil
	})
}

// AddPlace submits a place without going through a click and the dialog.
func (c *Controller) AddPlace(ctx context.Context, p domain.Place) error {
	_, err := c.do(ctx, func() error {
		if c.table == nil {
			return domain.ErrNotLoaded
		}
		if !p.Category.Valid() {
			return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, string(p.Category))
		}
		if !c.busy.TryAcquire(1) {
			return ErrBusy
		}
		p.Location = geometry.NormalizeCentralMeridian(p.Location)
		c.captured = p.Location
		c.state = Validating
		return c.addFeature(p)
	})
	return err
}

// addFeature runs on the loop with the busy permit held. Rejections and
// failures end up as alerts, not as returned errors.
func (c *Controller) addFeature(p domain.Place) error {
	f, err := c.table.CreateFeature(p.Attributes(), p.Location)
	if err != nil {
		c.finish("error")
		c.displayMessage(TitleInvalidFeature, err.Error())
		return nil
	}

	if !c.table.CanAdd() {
		c.finish("rejected")
		c.displayMessage("", MsgCannotAdd)
		return nil
	}
	if err := c.table.AddFeature(f); err != nil {
		c.finish("rejected")
		c.displayMessage("", MsgCannotAdd)
		return nil
	}

	c.state = EditsPending
	log.Info().Str("local_id", f.LocalID).Str("name", p.Name).Str("category", p.Category.String()).
		Float64("lon", p.Location.Lon()).Float64("lat", p.Location.Lat()).Msg("feature staged")

	ui.Async(c.ctx, c.loop,
		func(ctx context.Context) ([]domain.TableEditResult, error) {
			ctx, cancel := context.WithTimeout(ctx, c.opts.EditTimeout)
			defer cancel()
			return c.gdb.ApplyEdits(ctx)
		},
		c.onEditsApplied)
	return nil
}

func (c *Controller) onEditsApplied(results []domain.TableEditResult, err error) {
	out := InterpretEditResults(results, err)
	c.finish(out.Status)

	if err != nil {
		// the user is told the submission failed; it must not ride along
		// with the next one
		n := c.gdb.UndoLocalEdits()
		log.Error().Err(err).Int("dropped", n).Msg("apply edits failed")
	}
	for _, f := range out.Ignored {
		log.Warn().Str("local_id", f.LocalID).Str("error", f.Err.Error()).Msg("additional edit failed")
	}
	if out.Show {
		c.displayMessage(out.Title, out.Message)
	}
}

func (c *Controller) finish(outcome string) {
	c.state = Idle
	c.busy.Release(1)
	observability.ObserveSubmission(outcome)
}

// displayMessage shows an alert after the current loop task completes.
func (c *Controller) displayMessage(title, message string) {
	c.loop.Post(func() { c.presenter.Alert(title, message) })
}

// Layer returns the i-th operational layer.
func (c *Controller) Layer(ctx context.Context, i int) (*mapview.FeatureLayer, error) {
	var (
		l   *mapview.FeatureLayer
		err error
	)
	if cerr := c.loop.Call(ctx, func() {
		layers := c.mapView.Layers()
		if i < 0 || i >= len(layers) {
			err = domain.ErrNotFound
			return
		}
		l = layers[i]
	}); cerr != nil {
		return nil, cerr
	}
	return l, err
}

// UpdateViewport replaces the viewport with fn applied to it.
func (c *Controller) UpdateViewport(ctx context.Context, fn func(mapview.Viewport) mapview.Viewport) (Snapshot, error) {
	return c.do(ctx, func() error {
		c.mapView.SetViewport(fn(c.mapView.Viewport()))
		return nil
	})
}

func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	return c.do(ctx, func() error { return nil })
}

// Dispose releases the map view and stops the loop. It returns once both
// are done.
func (c *Controller) Dispose() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.loop.Call(ctx, c.mapView.Dispose); err != nil {
		// loop is gone, nothing else can touch the map
		c.mapView.Dispose()
	}
	c.loop.Stop()
}

// do runs fn on the loop and snapshots the state it left behind.
func (c *Controller) do(ctx context.Context, fn func() error) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if cerr := c.loop.Call(ctx, func() {
		err = fn()
		snap = c.snapshot()
	}); cerr != nil {
		return Snapshot{}, cerr
	}
	return snap, err
}
