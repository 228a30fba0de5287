package parallel

import "fmt"

// Map binds a Pool to a range that is partitioned once, at construction.
// Every Run reuses the same partition and the same workers.
type Map struct {
	begin, end int
	spans      []Span
	pool       *Pool
}

// NewMap partitions [begin, end) over n workers (n == 0 uses DefaultWorkers)
// and starts them.
func NewMap(begin, end, n int, opts ...Option) (*Map, error) {
	if err := checkRange(begin, end); err != nil {
		return nil, err
	}
	p, err := NewPool(n, opts...)
	if err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}
	return &Map{
		begin: begin,
		end:   end,
		spans: Partition(begin, end, p.Workers()),
		pool:  p,
	}, nil
}

// Run calls work for every index of the mapped range.
func (m *Map) Run(work Work) error {
	return m.pool.dispatch(work, m.begin, m.end, m.spans)
}

// Spans returns a copy of the partition fixed at construction.
func (m *Map) Spans() []Span {
	out := make([]Span, len(m.spans))
	copy(out, m.spans)
	return out
}

func (m *Map) Workers() int { return m.pool.Workers() }

func (m *Map) Stats() Stats { return m.pool.Stats() }

// Close stops the workers. Run after Close returns ErrLifecycle.
func (m *Map) Close() error {
	m.pool.Kill()
	return nil
}
