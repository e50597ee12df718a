// Package wire defines the daemon<->child message protocol: the shared
// data model, the internally-tagged JSON encoding, and the length-prefixed
// frame envelope the messages travel in.
package wire

// ProtocolVersion is the handshake version this build of the daemon speaks.
// A child replying with any other version fails the session with
// VersionMismatch.
const ProtocolVersion = 1

// IconKind classifies the backing path of an icon.
type IconKind string

const (
	KindFile       IconKind = "File"
	KindDirectory  IconKind = "Directory"
	KindSymlink    IconKind = "Symlink"
	KindExecutable IconKind = "Executable"
	KindImage      IconKind = "Image"
	KindDocument   IconKind = "Document"
	KindArchive    IconKind = "Archive"
	KindVideo      IconKind = "Video"
	KindAudio      IconKind = "Audio"
	KindUnknown    IconKind = "Unknown"
)

// Metadata is sent to the child on every render request.
type Metadata struct {
	Path        string   `json:"path"`
	DisplayName string   `json:"displayName"`
	MimeGuess   string   `json:"mimeGuess,omitempty"`
	IsDirectory bool     `json:"isDirectory"`
	Size        *uint64  `json:"size,omitempty"`
	Width       uint32   `json:"width"`
	Height      uint32   `json:"height"`
	Kind        IconKind `json:"kind"`
	Selected    bool     `json:"selected"`
	Hovered     bool     `json:"hovered"`
}

// RenderContext carries the canvas the child should draw into.
type RenderContext struct {
	CanvasWidth       uint32  `json:"canvasWidth"`
	CanvasHeight      uint32  `json:"canvasHeight"`
	DevicePixelRatio  float32 `json:"devicePixelRatio"`
}

// PositionInput is the input to a grid-position computation.
type PositionInput struct {
	ScreenWidth  uint32  `json:"screenWidth"`
	ScreenHeight uint32  `json:"screenHeight"`
	IconCount    uint32  `json:"iconCount"`
	IconIndex    uint32  `json:"iconIndex"`
	CellWidth    *uint32 `json:"cellWidth,omitempty"`
	CellHeight   *uint32 `json:"cellHeight,omitempty"`
}

// Position is a screen-pixel coordinate.
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// EventAction is returned by a child in response to an Event it chose to
// handle.
type EventAction struct {
	Action  string  `json:"action"`
	Payload *string `json:"payload,omitempty"`
}
