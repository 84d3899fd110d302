package gpu

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/containers"
)

// poolPageSize is the number of slots appended per growth step. Growth
// never reallocates an existing page, so payload pointers returned by
// get stay valid until the slot is deleted.
const poolPageSize = 64

type slot[T any] struct {
	payload    T
	generation uint32
	live       bool
}

// pool is a generational arena. It owns each live payload exclusively
// until delete hands ownership back to the caller. Freed indices are
// reused LIFO before a new page is appended.
//
// Invalid access is a corrupted identity, never expected input, so get
// and delete panic instead of offering a fallible variant.
type pool[T any] struct {
	category string
	pages    [][]slot[T]
	free     *containers.Stack[uint32]
	liveLen  uint32
}

func newPool[T any](category string) *pool[T] {
	return &pool[T]{
		category: category,
		free:     containers.NewStack[uint32](),
	}
}

func (p *pool[T]) slotAt(index uint32) *slot[T] {
	return &p.pages[index/poolPageSize][index%poolPageSize]
}

func (p *pool[T]) add(payload T) handle {
	var index uint32
	if !p.free.IsEmpty() {
		index = p.free.Pop()
	} else {
		if p.liveLen%poolPageSize == 0 {
			p.pages = append(p.pages, make([]slot[T], poolPageSize))
		}
		index = p.liveLen
		p.liveLen++
	}

	s := p.slotAt(index)
	s.payload = payload
	s.live = true

	return handle{index: index, generation: s.generation}
}

// get returns a pointer to the live payload for h. The pointer stays
// valid until the slot is deleted.
func (p *pool[T]) get(h handle) *T {
	s := p.check(h, "get")
	return &s.payload
}

// delete frees the slot and returns ownership of the payload to the
// caller for disposal. The slot's generation is bumped so every
// outstanding handle to it becomes stale.
func (p *pool[T]) delete(h handle) T {
	s := p.check(h, "delete")

	payload := s.payload
	var zero T
	s.payload = zero
	s.live = false
	s.generation++
	p.free.Push(h.index)

	return payload
}

func (p *pool[T]) check(h handle, op string) *slot[T] {
	if h.isNil() || h.index >= p.liveLen {
		panic(fmt.Sprintf("gpu: %s of out-of-range %s id %s", op, p.category, h))
	}
	s := p.slotAt(h.index)
	if !s.live {
		panic(fmt.Sprintf("gpu: %s of freed %s id %s", op, p.category, h))
	}
	if s.generation != h.generation {
		panic(fmt.Sprintf("gpu: %s of stale %s id %s (slot generation %d)", op, p.category, h, s.generation))
	}
	return s
}

// liveCount reports how many slots are currently occupied.
func (p *pool[T]) liveCount() int {
	return int(p.liveLen) - p.free.Len()
}
