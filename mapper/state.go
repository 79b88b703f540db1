package mapper

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

const (
	// Pool limits to prevent memory bloat
	poolMaxPath  = 64
	poolInitPath = 8
)

// state carries the per-call context of one encode or decode.
type state struct {
	ctx      context.Context
	services docmap.Services
	mapper   *Mapper
	diag     *errors.Diagnostics
	aborted  error
	path     []string
	phase    errors.Phase
	depth    int
}

var statePool = sync.Pool{
	New: func() any {
		return &state{path: make([]string, 0, poolInitPath)}
	},
}

func (m *Mapper) acquire(ctx context.Context, phase errors.Phase, services docmap.Services) *state {
	s := statePool.Get().(*state)
	s.ctx = ctx
	s.services = services
	s.mapper = m
	s.phase = phase
	s.diag = &errors.Diagnostics{}
	return s
}

func release(s *state) {
	if s == nil || cap(s.path) > poolMaxPath {
		return // reject oversized
	}
	s.ctx = nil
	s.services = nil
	s.mapper = nil
	s.diag = nil
	s.aborted = nil
	s.depth = 0
	clear(s.path[:cap(s.path)])
	s.path = s.path[:0]
	statePool.Put(s)
}

func (s *state) push(key string) {
	s.path = append(s.path, key)
}

func (s *state) pushIndex(i int) {
	s.path = append(s.path, "["+strconv.Itoa(i)+"]")
}

func (s *state) pop() {
	s.path = s.path[:len(s.path)-1]
}

func (s *state) pathCopy() []string {
	return append([]string(nil), s.path...)
}

// fail records a per-field failure. It returns nil when the call may go on,
// or the error that aborts it in strict mode.
func (s *state) fail(err error) error {
	if err == nil {
		return nil
	}
	if s.aborted != nil {
		return s.aborted
	}

	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = errors.FieldAccess(s.phase, s.pathCopy(), err)
	} else if len(e.Path) == 0 {
		cp := *e
		cp.Path = s.pathCopy()
		e = &cp
	}

	s.diag.Add(e)
	s.mapper.logger.Debug("field skipped",
		zap.String("phase", string(s.phase)),
		zap.String("field", e.Field()),
		zap.Error(e))

	if s.mapper.strict {
		s.aborted = e
		return e
	}
	return nil
}
