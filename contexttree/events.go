package contexttree

import "sync"

// EventOp identifies the kind of structural change.
type EventOp string

const (
	OpInsert EventOp = "insert"
	OpMove   EventOp = "move"
	OpRemove EventOp = "remove"
	OpRename EventOp = "rename"
)

// Event describes one committed structural mutation. For moves and
// renames TargetPath carries the destination; all paths are normalized.
type Event struct {
	Op         EventOp
	Path       string
	TargetPath string
}

// Subscribe registers fn to be called synchronously after every committed
// mutation. The returned function cancels the subscription.
func (t *Tree) Subscribe(fn func(Event)) (cancel func()) {
	return t.subs.add(fn)
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) notify(e Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
