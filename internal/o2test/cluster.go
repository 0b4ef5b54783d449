// Package o2test provides scenario test helpers: building small
// ensembles and clusters of wired-together Ensemble instances without
// a real network, the way the teacher's test package builds unities
// over an in-process invoker instead of real goroutined transports.
package o2test

import (
	"fmt"
	"sync"

	"github.com/ensemble-io/o2core/pkg/o2"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

// Router hands messages directly between in-process Ensembles keyed
// by process name, standing in for what a real TCP/UDP connection
// would carry; this lets cluster-level scenario tests exercise
// directory/dispatch/tap semantics without opening real sockets.
type Router struct {
	mu        sync.Mutex
	ensembles map[string]*o2.Ensemble
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{ensembles: make(map[string]*o2.Ensemble)}
}

// Register makes e reachable under its own process name.
func (r *Router) Register(name string, e *o2.Ensemble) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensembles[name] = e
}

// SendTo implements the directory.Sender shape each registered
// Ensemble uses for remote forwarding, routing straight to the
// destination's Dispatch as if the message had just arrived over its
// transport.
func (r *Router) SendTo(process string, msg *wire.Message, reliable bool) error {
	r.mu.Lock()
	e, ok := r.ensembles[process]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("o2test: no ensemble registered for %s", process)
	}
	e.DeliverFromRouter(msg)
	return nil
}

// Cluster is a fixed-size set of Ensembles sharing an ensemble label
// and a Router, with a shared synthetic clock the test advances
// explicitly instead of real wall time.
type Cluster struct {
	Ensembles []*o2.Ensemble
	Router    *Router

	now float64
}

// NewCluster creates n Ensembles named sequentially, all wired through
// a shared Router.
func NewCluster(n int, label string) *Cluster {
	c := &Cluster{Router: NewRouter()}
	for i := 0; i < n; i++ {
		proc := o2.Process{PublicIP: 0, InternalIP: 0x7f000001, TCPPort: uint16(20000 + i)}
		cfg := o2.DefaultConfiguration(label)
		e := o2.New(proc, cfg, func() float64 { return c.now })
		e.SetRemoteSender(c.Router)
		c.Ensembles = append(c.Ensembles, e)
		c.Router.Register(proc.String(), e)
	}
	return c
}

// Advance moves the shared synthetic clock forward by delta and polls
// every member once, in registration order.
func (c *Cluster) Advance(delta float64) {
	c.now += delta
	for _, e := range c.Ensembles {
		e.Poll()
	}
}
