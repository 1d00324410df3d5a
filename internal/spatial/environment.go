package spatial

import (
	"sync"
	"sync/atomic"
	"time"

	"nvgtcore/internal/metrics"
)

// Material is an acoustic surface description: absorption and
// transmission coefficients per low/mid/high band plus a scattering
// coefficient, used by the reflection simulator to decide how much
// energy a box's walls reflect, absorb and let through. The built-in
// set below is recovered verbatim from original_source's
// sound_environment constructor.
type Material struct {
	AbsorptionLow, AbsorptionMid, AbsorptionHigh float64
	Scattering                                   float64
	TransmissionLow, TransmissionMid, TransmissionHigh float64
}

func builtinMaterials() map[string]Material {
	return map[string]Material{
		"air":      {0, 0, 0, 0, 1, 1, 1},
		"generic":  {0.10, 0.20, 0.30, 0.05, 0.100, 0.050, 0.030},
		"brick":    {0.03, 0.04, 0.07, 0.05, 0.015, 0.015, 0.015},
		"concrete": {0.05, 0.07, 0.08, 0.05, 0.015, 0.002, 0.001},
		"ceramic":  {0.01, 0.02, 0.02, 0.05, 0.060, 0.044, 0.011},
		"gravel":   {0.60, 0.70, 0.80, 0.05, 0.031, 0.012, 0.008},
		"carpet":   {0.24, 0.69, 0.73, 0.05, 0.020, 0.005, 0.003},
		"glass":    {0.06, 0.03, 0.02, 0.05, 0.060, 0.044, 0.011},
		"plaster":  {0.12, 0.06, 0.04, 0.05, 0.056, 0.056, 0.004},
		"wood":     {0.11, 0.07, 0.06, 0.05, 0.070, 0.014, 0.005},
		"metal":    {0.20, 0.07, 0.06, 0.05, 0.200, 0.025, 0.010},
		"rock":     {0.13, 0.20, 0.24, 0.05, 0.015, 0.002, 0.001},
	}
}

// Vertex is a single point of box geometry added to a scene.
type Vertex struct{ X, Y, Z float64 }

// Triangle indexes three of a Box's eight vertices.
type Triangle [3]int

// Box is one cuboid of static scene geometry: 8 vertices, 12 triangles
// (floor, back/right/front/left walls, roof), all sharing one
// material, matching original_source's add_box layout.
type Box struct {
	Material  string
	Vertices  [8]Vertex
	Triangles [12]Triangle
}

func newBox(material string, minX, maxX, minY, maxY, minZ, maxZ float64) Box {
	return Box{
		Material: material,
		Vertices: [8]Vertex{
			{minX, minY, minZ}, {maxX, minY, minZ}, {maxX, maxY, minZ}, {minX, maxY, minZ},
			{minX, minY, maxZ}, {maxX, minY, maxZ}, {maxX, maxY, maxZ}, {minX, maxY, maxZ},
		},
		Triangles: [12]Triangle{
			{0, 1, 2}, {0, 2, 3}, // floor
			{0, 1, 5}, {0, 5, 4}, // back wall
			{1, 5, 6}, {1, 6, 2}, // right wall
			{2, 6, 7}, {2, 7, 3}, // front wall
			{3, 7, 0}, {3, 0, 4}, // left wall
			{4, 5, 6}, {4, 6, 7}, // roof
		},
	}
}

// Attachment is the handle a caller holds for one source's membership
// in an Environment. It is returned by Environment.Attach and consumed
// by Environment.Detach.
type Attachment struct {
	env        *Environment
	x, y, z    float64
	mu         sync.Mutex
	detachDone chan struct{}
}

// Position reports the attachment's last position set via SetPosition,
// used by the background thread to drive reflection simulation.
func (a *Attachment) Position() (x, y, z float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.x, a.y, a.z
}

// SetPosition updates the attachment's position for the next
// background simulation tick.
func (a *Attachment) SetPosition(x, y, z float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.x, a.y, a.z = x, y, z
}

// Environment is the reflection/occlusion simulation scene a set of
// sources and mixers can be attached to, modeled on original_source's
// sound_environment: a material table, a box-built mesh, a listener
// pose, and a background thread that periodically re-runs the
// simulation and drains pending detaches. Geometry and listener pose
// are recorded faithfully; the actual ray/reflection solve is left to
// an external simulator (spec.md §4.7 names Steam Audio/phonon as the
// out-of-scope collaborator) — background_update's bookkeeping (scene
// commit, listener push, detach drain) is what this type reproduces.
type Environment struct {
	mu        sync.Mutex
	materials map[string]Material
	boxes     []Box

	attached        map[*Attachment]struct{}
	pendingDetaches []*Attachment

	sceneNeedsCommit bool
	listenerModified bool
	listener         Listener

	refCount atomic.Int32

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewEnvironment creates a scene pre-populated with the twelve
// built-in materials and starts its background simulation thread,
// ticking at tickRate (original_source ties this to the audio
// frame callback; here it's an explicit caller-chosen cadence).
func NewEnvironment(tickRate time.Duration) *Environment {
	if tickRate <= 0 {
		tickRate = 10 * time.Millisecond
	}
	e := &Environment{
		materials: builtinMaterials(),
		attached:  make(map[*Attachment]struct{}),
		stopCh:    make(chan struct{}),
	}
	e.refCount.Store(1)
	e.ticker = time.NewTicker(tickRate)
	go e.backgroundLoop()
	return e
}

func (e *Environment) backgroundLoop() {
	for {
		select {
		case <-e.ticker.C:
			e.backgroundUpdate()
			metrics.RecordEnvironmentReflectionTick()
		case <-e.stopCh:
			e.ticker.Stop()
			e.detachAll()
			return
		}
	}
}

// TriggerUpdate runs one background-update pass immediately, outside the
// normal tick cadence, for callers (e.g. a diagnostics endpoint) that
// need the commit/detach bookkeeping to happen on demand.
func (e *Environment) TriggerUpdate() {
	e.backgroundUpdate()
	metrics.RecordEnvironmentReflectionTick()
}

// backgroundUpdate drains pending detaches and clears the scene-commit
// and listener-modified flags. With no external simulator attached, no
// geometry is committed and no listener pose is pushed anywhere.
func (e *Environment) backgroundUpdate() {
	e.mu.Lock()
	pending := e.pendingDetaches
	e.pendingDetaches = nil
	needsCommit := e.sceneNeedsCommit
	e.sceneNeedsCommit = false
	listenerModified := e.listenerModified
	e.listenerModified = false
	e.mu.Unlock()

	for _, a := range pending {
		e.finishDetach(a)
	}
	_ = needsCommit       // scene geometry is already visible to readers; no external commit step
	_ = listenerModified  // listener pose is read directly by callers via Listener()
}

func (e *Environment) detachAll() {
	e.mu.Lock()
	all := make([]*Attachment, 0, len(e.attached))
	for a := range e.attached {
		all = append(all, a)
	}
	e.mu.Unlock()
	for _, a := range all {
		e.finishDetach(a)
	}
}

func (e *Environment) finishDetach(a *Attachment) {
	e.mu.Lock()
	delete(e.attached, a)
	e.mu.Unlock()
	close(a.detachDone)
}

// AddMaterial registers a named material. If replaceIfExisting is
// false and name is already registered, it is left unchanged and
// AddMaterial returns false.
func (e *Environment) AddMaterial(name string, absorptionLow, absorptionMid, absorptionHigh, scattering, transmissionLow, transmissionMid, transmissionHigh float64, replaceIfExisting bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !replaceIfExisting {
		if _, exists := e.materials[name]; exists {
			return false
		}
	}
	e.materials[name] = Material{
		AbsorptionLow: absorptionLow, AbsorptionMid: absorptionMid, AbsorptionHigh: absorptionHigh,
		Scattering:      scattering,
		TransmissionLow: transmissionLow, TransmissionMid: transmissionMid, TransmissionHigh: transmissionHigh,
	}
	return true
}

// Material looks up a registered material by name.
func (e *Environment) Material(name string) (Material, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.materials[name]
	return m, ok
}

// AddBox adds one cuboid of static geometry with the named material.
// It fails if the material hasn't been registered.
func (e *Environment) AddBox(material string, minX, maxX, minY, maxY, minZ, maxZ float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.materials[material]; !ok {
		return false
	}
	e.boxes = append(e.boxes, newBox(material, minX, maxX, minY, maxY, minZ, maxZ))
	e.sceneNeedsCommit = true
	return true
}

// Boxes returns a snapshot of the scene's static geometry.
func (e *Environment) Boxes() []Box {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Box, len(e.boxes))
	copy(out, e.boxes)
	return out
}

// SetListener updates the listener pose and marks it modified; the next
// background tick only clears that mark.
func (e *Environment) SetListener(l Listener) {
	e.mu.Lock()
	e.listener = l
	e.listenerModified = true
	e.mu.Unlock()
}

// Listener reports the last pose set via SetListener.
func (e *Environment) Listener() Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listener
}

// Attach joins a source or mixer to the environment, adding a
// reference on the environment that Detach later releases.
func (e *Environment) Attach() *Attachment {
	e.AddRef()
	a := &Attachment{env: e, detachDone: make(chan struct{})}
	e.mu.Lock()
	e.attached[a] = struct{}{}
	e.mu.Unlock()
	return a
}

// Detach queues a (possibly still-in-use) attachment for removal and
// blocks until the background thread has processed it, matching
// original_source's synchronous detach-then-wait-on-event semantics.
func (e *Environment) Detach(a *Attachment) {
	e.mu.Lock()
	e.pendingDetaches = append(e.pendingDetaches, a)
	e.mu.Unlock()
	<-a.detachDone
	e.Release()
}

// AddRef increments the environment's reference count.
func (e *Environment) AddRef() {
	e.refCount.Add(1)
}

// Release decrements the environment's reference count, stopping its
// background thread and detaching everything still attached once it
// reaches zero.
func (e *Environment) Release() {
	if e.refCount.Add(-1) < 1 {
		e.stopOnce.Do(func() { close(e.stopCh) })
	}
}
