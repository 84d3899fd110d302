package gpu

import "fmt"

// nilIndex marks a handle that refers to nothing.
const nilIndex = ^uint32(0)

// handle is the raw identity issued by a slot pool: a slot index plus the
// generation the slot had when the payload was added. A handle is only
// valid while the slot is live at the same generation; once the slot is
// deleted and reused, old handles are rejected on every access.
type handle struct {
	index      uint32
	generation uint32
}

func (h handle) isNil() bool {
	return h.index == nilIndex
}

func (h handle) String() string {
	if h.isNil() {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.index, h.generation)
}

// Per-category identity types. A BufferID cannot be passed where an
// ImageID is expected; the compiler enforces what the original raw
// integer handles left to convention.

type BufferID struct{ handle }

type ImageID struct{ handle }

type ImageViewID struct{ handle }

type SamplerID struct{ handle }

type PipelineID struct{ handle }

func NilBufferID() BufferID       { return BufferID{handle{index: nilIndex}} }
func NilImageID() ImageID         { return ImageID{handle{index: nilIndex}} }
func NilImageViewID() ImageViewID { return ImageViewID{handle{index: nilIndex}} }
func NilSamplerID() SamplerID     { return SamplerID{handle{index: nilIndex}} }
func NilPipelineID() PipelineID   { return PipelineID{handle{index: nilIndex}} }

func (id BufferID) IsNil() bool    { return id.isNil() }
func (id ImageID) IsNil() bool     { return id.isNil() }
func (id ImageViewID) IsNil() bool { return id.isNil() }
func (id SamplerID) IsNil() bool   { return id.isNil() }
func (id PipelineID) IsNil() bool  { return id.isNil() }
