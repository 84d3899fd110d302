package containers

// Stack is a LIFO stack backed by a slice.
type Stack[T any] struct {
	data []T
}

func NewStack[T any]() *Stack[T] {
	return &Stack[T]{}
}

func (s *Stack[T]) Push(value T) {
	s.data = append(s.data, value)
}

// Pop removes and returns the most recently pushed element. Popping an
// empty stack is a programmer error.
func (s *Stack[T]) Pop() T {
	if len(s.data) == 0 {
		panic("containers: pop from empty stack")
	}
	value := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return value
}

func (s *Stack[T]) IsEmpty() bool {
	return len(s.data) == 0
}

func (s *Stack[T]) Len() int {
	return len(s.data)
}
