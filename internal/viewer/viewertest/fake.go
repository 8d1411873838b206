package viewertest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nki-radiology/SegmentationReview/internal/fileutil"
	"github.com/nki-radiology/SegmentationReview/internal/viewer"
)

// Volume records a scalar volume loaded into the fake scene.
type Volume struct {
	ID        string
	Path      string
	Presented bool
	Released  bool
}

// Region records one region of a fake segmentation node.
type Region struct {
	ID      string
	Name    string
	Visible bool
	Style   *viewer.RegionStyle
}

// Segmentation records a segmentation node in the fake scene.
type Segmentation struct {
	ID          string
	Name        string
	SourcePath  string
	OutlineOnly bool
	Released    bool
	Regions     []*Region
	SavedTo     []string
}

// StatusUpdate records one SetStatus call.
type StatusUpdate struct {
	Position  string
	PatientID string
}

// Binding records one BindEditor call.
type Binding struct {
	SegmentationID string
	VolumeID       string
}

// Fake implements viewer.Viewer entirely in memory.
type Fake struct {
	mu sync.Mutex

	nextID        int
	volumes       map[string]*Volume
	segmentations map[string]*Segmentation
	stubRegions   map[string][]string

	editorConfig   viewer.EditorConfig
	configureCalls int
	bindings       []Binding

	messages []string
	statuses []StatusUpdate
	released []string

	failures map[string]error

	nextSub int
	subs    map[int]chan viewer.Event
}

var _ viewer.Viewer = (*Fake)(nil)

// New returns an empty fake scene.
func New() *Fake {
	return &Fake{
		volumes:       make(map[string]*Volume),
		segmentations: make(map[string]*Segmentation),
		stubRegions:   make(map[string][]string),
		failures:      make(map[string]error),
		subs:          make(map[int]chan viewer.Event),
	}
}

// Fail arranges for the next call to the named method to return err.
// The failure is consumed by that call.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
}

// StubSegmentation declares the region names a later LoadSegmentation
// of path will report. Without a stub a loaded node has no regions.
func (f *Fake) StubSegmentation(path string, regionNames ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stubRegions[path] = append([]string(nil), regionNames...)
}

func (f *Fake) takeFailure(method string) error {
	if err, ok := f.failures[method]; ok {
		delete(f.failures, method)
		return err
	}
	return nil
}

func (f *Fake) allocID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// LoadVolume implements viewer.Volumes.
func (f *Fake) LoadVolume(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("LoadVolume"); err != nil {
		return "", err
	}
	vol := &Volume{ID: f.allocID("vol"), Path: path}
	f.volumes[vol.ID] = vol
	return vol.ID, nil
}

// PresentVolume implements viewer.Volumes.
func (f *Fake) PresentVolume(_ context.Context, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("PresentVolume"); err != nil {
		return err
	}
	vol, ok := f.volumes[nodeID]
	if !ok || vol.Released {
		return viewer.ErrNodeAbsent
	}
	vol.Presented = true
	return nil
}

// LoadSegmentation implements viewer.Segmentations.
func (f *Fake) LoadSegmentation(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("LoadSegmentation"); err != nil {
		return "", err
	}
	seg := &Segmentation{
		ID:         f.allocID("seg"),
		Name:       strings.TrimSuffix(filepath.Base(path), ".seg.nrrd"),
		SourcePath: path,
	}
	for _, name := range f.stubRegions[path] {
		seg.Regions = append(seg.Regions, &Region{ID: f.allocID("region"), Name: name, Visible: true})
	}
	f.segmentations[seg.ID] = seg
	return seg.ID, nil
}

// CreateSegmentation implements viewer.Segmentations.
func (f *Fake) CreateSegmentation(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("CreateSegmentation"); err != nil {
		return "", err
	}
	seg := &Segmentation{ID: f.allocID("seg"), Name: name}
	f.segmentations[seg.ID] = seg
	return seg.ID, nil
}

// SaveSegmentation implements viewer.Segmentations. The node is
// serialized to path as a plain-text stand-in for the native format.
func (f *Fake) SaveSegmentation(_ context.Context, nodeID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SaveSegmentation"); err != nil {
		return err
	}
	seg, ok := f.segmentations[nodeID]
	if !ok || seg.Released {
		return viewer.ErrNodeAbsent
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "fake segmentation %s\n", seg.Name)
	for _, region := range seg.Regions {
		fmt.Fprintf(&sb, "region %s\n", region.Name)
	}
	if err := fileutil.WriteFileAtomic(path, []byte(sb.String()), 0o644); err != nil {
		return err
	}
	seg.SavedTo = append(seg.SavedTo, path)
	return nil
}

// SetOutlineDisplay implements viewer.Segmentations.
func (f *Fake) SetOutlineDisplay(_ context.Context, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SetOutlineDisplay"); err != nil {
		return err
	}
	seg, ok := f.segmentations[nodeID]
	if !ok || seg.Released {
		return viewer.ErrNodeAbsent
	}
	seg.OutlineOnly = true
	return nil
}

// Regions implements viewer.Segmentations.
func (f *Fake) Regions(_ context.Context, nodeID string) ([]viewer.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("Regions"); err != nil {
		return nil, err
	}
	seg, ok := f.segmentations[nodeID]
	if !ok || seg.Released {
		return nil, viewer.ErrNodeAbsent
	}
	regions := make([]viewer.Region, 0, len(seg.Regions))
	for _, region := range seg.Regions {
		regions = append(regions, viewer.Region{ID: region.ID, Name: region.Name})
	}
	return regions, nil
}

// CreateRegion implements viewer.Segmentations.
func (f *Fake) CreateRegion(_ context.Context, nodeID, name string, style *viewer.RegionStyle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("CreateRegion"); err != nil {
		return "", err
	}
	seg, ok := f.segmentations[nodeID]
	if !ok || seg.Released {
		return "", viewer.ErrNodeAbsent
	}
	region := &Region{ID: f.allocID("region"), Name: name, Visible: true}
	if style != nil {
		copied := *style
		region.Style = &copied
	}
	seg.Regions = append(seg.Regions, region)
	return region.ID, nil
}

// SetRegionVisible implements viewer.Segmentations.
func (f *Fake) SetRegionVisible(_ context.Context, nodeID, regionID string, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SetRegionVisible"); err != nil {
		return err
	}
	seg, ok := f.segmentations[nodeID]
	if !ok || seg.Released {
		return viewer.ErrNodeAbsent
	}
	for _, region := range seg.Regions {
		if region.ID == regionID {
			region.Visible = visible
			return nil
		}
	}
	return viewer.ErrNodeAbsent
}

// NodePresent implements viewer.Scene.
func (f *Fake) NodePresent(_ context.Context, nodeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("NodePresent"); err != nil {
		return false, err
	}
	if vol, ok := f.volumes[nodeID]; ok {
		return !vol.Released, nil
	}
	if seg, ok := f.segmentations[nodeID]; ok {
		return !seg.Released, nil
	}
	return false, nil
}

// ReleaseNode implements viewer.Scene.
func (f *Fake) ReleaseNode(_ context.Context, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ReleaseNode"); err != nil {
		return err
	}
	if vol, ok := f.volumes[nodeID]; ok && !vol.Released {
		vol.Released = true
		f.released = append(f.released, nodeID)
		return nil
	}
	if seg, ok := f.segmentations[nodeID]; ok && !seg.Released {
		seg.Released = true
		f.released = append(f.released, nodeID)
		return nil
	}
	return viewer.ErrNodeAbsent
}

// ConfigureEditor implements viewer.Editor.
func (f *Fake) ConfigureEditor(_ context.Context, cfg viewer.EditorConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ConfigureEditor"); err != nil {
		return err
	}
	f.editorConfig = viewer.EditorConfig{
		Effects:   append([]string(nil), cfg.Effects...),
		UndoDepth: cfg.UndoDepth,
	}
	f.configureCalls++
	return nil
}

// BindEditor implements viewer.Editor.
func (f *Fake) BindEditor(_ context.Context, segmentationID, volumeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("BindEditor"); err != nil {
		return err
	}
	seg, ok := f.segmentations[segmentationID]
	if !ok || seg.Released {
		return viewer.ErrNodeAbsent
	}
	vol, ok := f.volumes[volumeID]
	if !ok || vol.Released {
		return viewer.ErrNodeAbsent
	}
	f.bindings = append(f.bindings, Binding{SegmentationID: segmentationID, VolumeID: volumeID})
	return nil
}

// ShowMessage implements viewer.Console.
func (f *Fake) ShowMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ShowMessage"); err != nil {
		return err
	}
	f.messages = append(f.messages, text)
	return nil
}

// SetStatus implements viewer.Console.
func (f *Fake) SetStatus(_ context.Context, position, patientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SetStatus"); err != nil {
		return err
	}
	f.statuses = append(f.statuses, StatusUpdate{Position: position, PatientID: patientID})
	return nil
}

// Subscribe implements viewer.Events.
func (f *Fake) Subscribe(ctx context.Context) (<-chan viewer.Event, error) {
	f.mu.Lock()
	if err := f.takeFailure("Subscribe"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.nextSub++
	id := f.nextSub
	ch := make(chan viewer.Event, 8)
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if existing, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(existing)
		}
		f.mu.Unlock()
	}()
	return ch, nil
}

// EmitSceneCleared wipes every node and notifies subscribers, matching
// a viewer-side scene close.
func (f *Fake) EmitSceneCleared() {
	f.mu.Lock()
	for _, vol := range f.volumes {
		vol.Released = true
	}
	for _, seg := range f.segmentations {
		seg.Released = true
	}
	f.mu.Unlock()
	f.emit(viewer.Event{Kind: viewer.EventSceneCleared})
}

// EmitShutdown notifies subscribers that the viewer is going away.
func (f *Fake) EmitShutdown() {
	f.emit(viewer.Event{Kind: viewer.EventShutdown})
}

func (f *Fake) emit(event viewer.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Volume returns the recorded volume node, or nil.
func (f *Fake) Volume(nodeID string) *Volume {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volumes[nodeID]
}

// Segmentation returns the recorded segmentation node, or nil.
func (f *Fake) Segmentation(nodeID string) *Segmentation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.segmentations[nodeID]
}

// Messages returns every ShowMessage call in order.
func (f *Fake) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

// Statuses returns every SetStatus call in order.
func (f *Fake) Statuses() []StatusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StatusUpdate(nil), f.statuses...)
}

// LastStatus returns the most recent SetStatus call, or a zero value.
func (f *Fake) LastStatus() StatusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return StatusUpdate{}
	}
	return f.statuses[len(f.statuses)-1]
}

// Released returns node IDs in release order.
func (f *Fake) Released() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

// Bindings returns every BindEditor call in order.
func (f *Fake) Bindings() []Binding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Binding(nil), f.bindings...)
}

// EditorConfig returns the applied editor configuration and whether
// ConfigureEditor was called.
func (f *Fake) EditorConfig() (viewer.EditorConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editorConfig, f.configureCalls > 0
}

// ConfigureCalls counts ConfigureEditor invocations.
func (f *Fake) ConfigureCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configureCalls
}
