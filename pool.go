package guidedrefine

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/swdee/go-guidedrefine/mask"
	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned when a pipeline is requested from a closed Pool
var ErrPoolClosed = errors.New("pool is closed")

// Pool is a simple pipeline pool used to refine the masks of multiple images
// concurrently, each image is processed by its own Pipeline
type Pool struct {
	// pool of pipelines
	pipelines chan *Pipeline
	// size of pool
	size int
	// done is closed by Close to release callers waiting in Get
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewPool creates a new pipeline pool of the given size where every
// Pipeline shares the same configuration
func NewPool(size int, cfg Config) (*Pool, error) {

	if size <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "pool size must be positive, got %d", size)
	}

	p := &Pool{
		pipelines: make(chan *Pipeline, size),
		size:      size,
		done:      make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		pl, err := New(cfg)

		if err != nil {
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(pl)
	}

	return p, nil
}

// Size returns the number of pipelines in the pool
func (p *Pool) Size() int {
	return p.size
}

// Get a pipeline from the pool, blocks until one is available.  Returns
// ErrPoolClosed once the pool has been closed
func (p *Pool) Get() (*Pipeline, error) {
	return p.get(context.Background())
}

// Return a pipeline to the pool.  Pipelines returned to a full or closed
// pool are dropped
func (p *Pool) Return(pl *Pipeline) {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	select {
	case p.pipelines <- pl:
	default:
	}
}

// Close the pool.  Pipelines still in use by Process are dropped when they
// are returned
func (p *Pool) Close() {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.done)

	// drain
	for {
		select {
		case <-p.pipelines:
		default:
			return
		}
	}
}

// Process runs every buffer through a pipeline from the pool.  Results are
// returned in the same order as bufs.  The first error cancels scheduling of
// the remaining images and is returned wrapped with the image index
func (p *Pool) Process(ctx context.Context, bufs []*mask.Buffer) ([]*Result, error) {

	results := make([]*Result, len(bufs))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.size)

	for i, buf := range bufs {
		if gctx.Err() != nil {
			break
		}

		i, buf := i, buf

		eg.Go(func() error {

			if err := gctx.Err(); err != nil {
				return err
			}

			pl, err := p.get(gctx)

			if err != nil {
				return err
			}

			defer p.Return(pl)

			res, err := pl.Run(buf)

			if err != nil {
				return errors.Wrapf(err, "image %d", i)
			}

			results[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// get waits for a pipeline, the pool to close or the context to be done
func (p *Pool) get(ctx context.Context) (*Pipeline, error) {
	select {
	case pl := <-p.pipelines:
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed {
			return nil, ErrPoolClosed
		}
		return pl, nil

	case <-p.done:
		return nil, ErrPoolClosed

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
