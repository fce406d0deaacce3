// Package parallel provides the collective operations shared by the ranks of
// an in-process decomposed run: barrier, global sum and neighbour exchange.
//
// Every collective must be entered by all ranks in the same order. A rank that
// skips one leaves the others blocked until Abort is called.
package parallel

import (
	"fmt"
	"sync"
)

// AbortError is returned from a collective after the world has been aborted.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("parallel run aborted: %v", e.Cause)
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// World is a group of ranks that take part in the same collectives.
type World struct {
	size int

	mu         sync.Mutex
	cond       *sync.Cond
	arrived    int
	generation uint64
	aborted    *AbortError

	sums  []float64
	boxes [][][]float64 // boxes[from][to]
}

// NewWorld creates a world of size ranks.
func NewWorld(size int) (*World, error) {
	if size < 1 {
		return nil, fmt.Errorf("world size must be positive, got %d", size)
	}
	w := &World{
		size:  size,
		sums:  make([]float64, size),
		boxes: make([][][]float64, size),
	}
	for i := range w.boxes {
		w.boxes[i] = make([][]float64, size)
	}
	w.cond = sync.NewCond(&w.mu)
	return w, nil
}

// Size returns the number of ranks.
func (w *World) Size() int {
	return w.size
}

// Comm returns the communicator for rank.
func (w *World) Comm(rank int) *Comm {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("parallel: rank %d out of range [0, %d)", rank, w.size))
	}
	return &Comm{world: w, rank: rank}
}

// Abort releases every rank blocked in a collective and makes all further
// collectives fail with an *AbortError wrapping cause. Only the first cause
// is kept.
func (w *World) Abort(cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted == nil {
		w.aborted = &AbortError{Cause: cause}
	}
	w.cond.Broadcast()
}

// Err returns the abort error, if any.
func (w *World) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted == nil {
		return nil
	}
	return w.aborted
}

func (w *World) barrier() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.aborted != nil {
		return w.aborted
	}
	gen := w.generation
	w.arrived++
	if w.arrived == w.size {
		w.arrived = 0
		w.generation++
		w.cond.Broadcast()
		return nil
	}
	for gen == w.generation && w.aborted == nil {
		w.cond.Wait()
	}
	if gen == w.generation {
		return w.aborted
	}
	return nil
}

// Comm is one rank's view of a World.
type Comm struct {
	world *World
	rank  int
}

// Rank returns this communicator's rank.
func (c *Comm) Rank() int {
	return c.rank
}

// Size returns the number of ranks in the world.
func (c *Comm) Size() int {
	return c.world.size
}

// Master reports whether this is rank 0, the rank that owns shared output.
func (c *Comm) Master() bool {
	return c.rank == 0
}

// Parallel reports whether more than one rank takes part.
func (c *Comm) Parallel() bool {
	return c.world.size > 1
}

// Abort aborts the whole world.
func (c *Comm) Abort(cause error) {
	c.world.Abort(cause)
}

// Barrier blocks until every rank has reached it.
func (c *Comm) Barrier() error {
	if c.world.size == 1 {
		return c.world.Err()
	}
	return c.world.barrier()
}

// SumAll returns the sum of local over all ranks. Contributions are added in
// rank order, so every rank receives the identical value.
func (c *Comm) SumAll(local float64) (float64, error) {
	w := c.world
	if w.size == 1 {
		if err := w.Err(); err != nil {
			return 0, err
		}
		return local, nil
	}

	w.mu.Lock()
	w.sums[c.rank] = local
	w.mu.Unlock()

	if err := w.barrier(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	var total float64
	for _, v := range w.sums {
		total += v
	}
	w.mu.Unlock()

	// second barrier so the slots are not overwritten by the next call
	if err := w.barrier(); err != nil {
		return 0, err
	}
	return total, nil
}

// Exchange sends values to neighbouring ranks and returns what each of them
// sent to this rank. Every rank must call Exchange, even with nothing to send.
func (c *Comm) Exchange(send map[int][]float64) (map[int][]float64, error) {
	w := c.world
	for to := range send {
		if to < 0 || to >= w.size || to == c.rank {
			return nil, fmt.Errorf("rank %d cannot send to rank %d", c.rank, to)
		}
	}
	if w.size == 1 {
		if err := w.Err(); err != nil {
			return nil, err
		}
		return map[int][]float64{}, nil
	}

	w.mu.Lock()
	for to, vals := range send {
		buf := make([]float64, len(vals))
		copy(buf, vals)
		w.boxes[c.rank][to] = buf
	}
	w.mu.Unlock()

	if err := w.barrier(); err != nil {
		return nil, err
	}

	recv := make(map[int][]float64)
	w.mu.Lock()
	for from := 0; from < w.size; from++ {
		if vals := w.boxes[from][c.rank]; vals != nil {
			recv[from] = vals
		}
	}
	w.mu.Unlock()

	if err := w.barrier(); err != nil {
		return nil, err
	}

	// clear our outgoing boxes once everyone has read them
	w.mu.Lock()
	for to := range w.boxes[c.rank] {
		w.boxes[c.rank][to] = nil
	}
	w.mu.Unlock()

	return recv, nil
}
