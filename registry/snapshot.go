package registry

import (
	"maps"
	"slices"
	"sync"

	"github.com/drblury/operatorhost/operator"
)

// snapshot is an immutable registry state. Only the lazily built list caches
// are written after publication, under their own synchronisation.
type snapshot struct {
	operators  map[string]*operator.Registered
	order      []string
	endpoints  map[string]Endpoint
	categories []string
	loadErrors int

	allOnce sync.Once
	allList []*operator.Registered

	catMu    sync.Mutex
	catLists map[string][]*operator.Registered
}

func newSnapshot() *snapshot {
	return &snapshot{
		operators: make(map[string]*operator.Registered),
		endpoints: make(map[string]Endpoint),
	}
}

func (s *snapshot) clone() *snapshot {
	return &snapshot{
		operators:  maps.Clone(s.operators),
		order:      slices.Clone(s.order),
		endpoints:  maps.Clone(s.endpoints),
		categories: slices.Clone(s.categories),
		loadErrors: s.loadErrors,
	}
}

func (s *snapshot) all() []*operator.Registered {
	s.allOnce.Do(func() {
		list := make([]*operator.Registered, 0, len(s.order))
		for _, id := range s.order {
			list = append(list, s.operators[id])
		}
		s.allList = list
	})
	return s.allList
}

func (s *snapshot) byCategory(category string) []*operator.Registered {
	s.catMu.Lock()
	defer s.catMu.Unlock()

	if list, ok := s.catLists[category]; ok {
		return list
	}
	list := make([]*operator.Registered, 0)
	for _, op := range s.all() {
		if op.Category() == category {
			list = append(list, op)
		}
	}
	if s.catLists == nil {
		s.catLists = make(map[string][]*operator.Registered)
	}
	s.catLists[category] = list
	return list
}
