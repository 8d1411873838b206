package viewerrpc

// LoadVolumeRequest loads a scalar volume from disk.
type LoadVolumeRequest struct {
	Path string `json:"path"`
}

// LoadVolumeResponse carries the new volume node ID.
type LoadVolumeResponse struct {
	NodeID string `json:"node_id"`
}

// PresentVolumeRequest routes a volume into the slice views.
type PresentVolumeRequest struct {
	NodeID string `json:"node_id"`
}

// PresentVolumeResponse reports presentation outcome.
type PresentVolumeResponse struct {
	Missing bool `json:"missing"`
}

// LoadSegmentationRequest loads a segmentation from disk.
type LoadSegmentationRequest struct {
	Path string `json:"path"`
}

// LoadSegmentationResponse carries the new segmentation node ID.
type LoadSegmentationResponse struct {
	NodeID string `json:"node_id"`
}

// CreateSegmentationRequest creates an empty segmentation node.
type CreateSegmentationRequest struct {
	Name string `json:"name"`
}

// CreateSegmentationResponse carries the new segmentation node ID.
type CreateSegmentationResponse struct {
	NodeID string `json:"node_id"`
}

// SaveSegmentationRequest writes a segmentation node to disk.
type SaveSegmentationRequest struct {
	NodeID string `json:"node_id"`
	Path   string `json:"path"`
}

// SaveSegmentationResponse reports save outcome.
type SaveSegmentationResponse struct {
	Missing bool `json:"missing"`
}

// SetOutlineDisplayRequest switches 2D rendering to outlines only.
type SetOutlineDisplayRequest struct {
	NodeID string `json:"node_id"`
}

// SetOutlineDisplayResponse reports display outcome.
type SetOutlineDisplayResponse struct {
	Missing bool `json:"missing"`
}

// RegionsRequest lists regions of a segmentation node.
type RegionsRequest struct {
	NodeID string `json:"node_id"`
}

// RegionDTO is one region on the wire.
type RegionDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RegionsResponse carries the node's regions in creation order.
type RegionsResponse struct {
	Missing bool        `json:"missing"`
	Regions []RegionDTO `json:"regions"`
}

// CreateRegionRequest appends an empty region to a segmentation node.
type CreateRegionRequest struct {
	NodeID   string     `json:"node_id"`
	Name     string     `json:"name"`
	HasStyle bool       `json:"has_style"`
	Color    [3]float64 `json:"color"`
	Opacity  float64    `json:"opacity"`
}

// CreateRegionResponse carries the new region ID.
type CreateRegionResponse struct {
	Missing  bool   `json:"missing"`
	RegionID string `json:"region_id"`
}

// SetRegionVisibleRequest toggles visibility of one region.
type SetRegionVisibleRequest struct {
	NodeID   string `json:"node_id"`
	RegionID string `json:"region_id"`
	Visible  bool   `json:"visible"`
}

// SetRegionVisibleResponse reports visibility outcome.
type SetRegionVisibleResponse struct {
	Missing bool `json:"missing"`
}

// NodePresentRequest probes for a node in the scene.
type NodePresentRequest struct {
	NodeID string `json:"node_id"`
}

// NodePresentResponse reports node presence.
type NodePresentResponse struct {
	Present bool `json:"present"`
}

// ReleaseNodeRequest removes a node from the scene.
type ReleaseNodeRequest struct {
	NodeID string `json:"node_id"`
}

// ReleaseNodeResponse reports release outcome.
type ReleaseNodeResponse struct {
	Missing bool `json:"missing"`
}

// ConfigureEditorRequest applies the effect palette and undo depth.
type ConfigureEditorRequest struct {
	Effects   []string `json:"effects"`
	UndoDepth int      `json:"undo_depth"`
}

// ConfigureEditorResponse acknowledges editor configuration.
type ConfigureEditorResponse struct{}

// BindEditorRequest points the editor at a segmentation and volume.
type BindEditorRequest struct {
	SegmentationID string `json:"segmentation_id"`
	VolumeID       string `json:"volume_id"`
}

// BindEditorResponse reports binding outcome.
type BindEditorResponse struct {
	Missing bool `json:"missing"`
}

// ShowMessageRequest displays a message to the operator.
type ShowMessageRequest struct {
	Text string `json:"text"`
}

// ShowMessageResponse acknowledges the message.
type ShowMessageResponse struct{}

// SetStatusRequest updates the position readout and patient label.
type SetStatusRequest struct {
	Position  string `json:"position"`
	PatientID string `json:"patient_id"`
}

// SetStatusResponse acknowledges the status update.
type SetStatusResponse struct{}

// NextEventRequest long-polls for the next scene event. WaitMillis
// bounds how long the viewer may hold the request open.
type NextEventRequest struct {
	WaitMillis int `json:"wait_millis"`
}

// NextEventResponse carries one event kind, or empty when the poll
// window elapsed without an event.
type NextEventResponse struct {
	Kind string `json:"kind"`
}
