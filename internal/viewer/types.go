package viewer

import "fmt"

// Region identifies one labeled region inside a segmentation node.
type Region struct {
	ID   string
	Name string
}

// RegionStyle carries display properties applied when a region is
// created. Color components and opacity are in [0, 1].
type RegionStyle struct {
	Color   [3]float64
	Opacity float64
}

// EditorConfig selects the effect palette and undo depth for the
// segment editor.
type EditorConfig struct {
	Effects   []string
	UndoDepth int
}

// EventKind enumerates viewer lifecycle events.
type EventKind int

const (
	// EventSceneCleared fires when the viewer scene is closed or
	// cleared, invalidating every node ID handed out before it.
	EventSceneCleared EventKind = iota + 1
	// EventShutdown fires when the viewer is going away entirely.
	EventShutdown
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSceneCleared:
		return "scene-cleared"
	case EventShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// ParseEventKind maps a wire name back to its EventKind. Unknown names
// yield zero.
func ParseEventKind(name string) EventKind {
	switch name {
	case "scene-cleared":
		return EventSceneCleared
	case "shutdown":
		return EventShutdown
	default:
		return 0
	}
}

// Event is a single viewer lifecycle notification.
type Event struct {
	Kind EventKind
}
