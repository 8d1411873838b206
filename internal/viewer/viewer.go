package viewer

import "context"

// Volumes loads scalar volumes into the viewer scene.
type Volumes interface {
	// LoadVolume loads the image at path and returns its node ID.
	LoadVolume(ctx context.Context, path string) (string, error)
	// PresentVolume routes the volume into the slice views as the
	// active background.
	PresentVolume(ctx context.Context, nodeID string) error
}

// Segmentations manages segmentation nodes and the regions inside them.
type Segmentations interface {
	// LoadSegmentation loads the labelmap at path as a segmentation
	// node and returns its node ID.
	LoadSegmentation(ctx context.Context, path string) (string, error)
	// CreateSegmentation creates an empty segmentation node with the
	// given display name and returns its node ID.
	CreateSegmentation(ctx context.Context, name string) (string, error)
	// SaveSegmentation writes the node to path in the viewer's native
	// segmentation format.
	SaveSegmentation(ctx context.Context, nodeID, path string) error
	// SetOutlineDisplay switches the node's 2D rendering to outlines
	// without fill and makes the node visible.
	SetOutlineDisplay(ctx context.Context, nodeID string) error
	// Regions lists the regions of the segmentation node in creation
	// order.
	Regions(ctx context.Context, nodeID string) ([]Region, error)
	// CreateRegion appends an empty region named name to the node and
	// returns the region ID. A nil style leaves the viewer defaults in
	// place.
	CreateRegion(ctx context.Context, nodeID, name string, style *RegionStyle) (string, error)
	// SetRegionVisible toggles 3D/2D visibility of a single region.
	SetRegionVisible(ctx context.Context, nodeID, regionID string, visible bool) error
}

// Scene exposes node lifetime operations on the viewer scene.
type Scene interface {
	// NodePresent reports whether the node still exists in the scene.
	NodePresent(ctx context.Context, nodeID string) (bool, error)
	// ReleaseNode removes the node from the scene. Releasing a node
	// that is already gone returns ErrNodeAbsent.
	ReleaseNode(ctx context.Context, nodeID string) error
}

// Editor controls the segment editor attached to the active case.
type Editor interface {
	// ConfigureEditor applies the effect palette and undo depth. It is
	// called once per review session before the first binding.
	ConfigureEditor(ctx context.Context, cfg EditorConfig) error
	// BindEditor points the editor at the segmentation node and its
	// source volume.
	BindEditor(ctx context.Context, segmentationID, volumeID string) error
}

// Console is the operator-facing message and status surface.
type Console interface {
	// ShowMessage displays text to the operator and returns once it is
	// acknowledged or queued.
	ShowMessage(ctx context.Context, text string) error
	// SetStatus updates the position readout and the patient label.
	// Either value may be empty to clear it.
	SetStatus(ctx context.Context, position, patientID string) error
}

// Events delivers viewer lifecycle notifications.
type Events interface {
	// Subscribe returns a channel of scene events. The channel closes
	// when ctx is canceled or the viewer goes away.
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Viewer aggregates every capability the review session consumes.
type Viewer interface {
	Volumes
	Segmentations
	Scene
	Editor
	Console
	Events
}
