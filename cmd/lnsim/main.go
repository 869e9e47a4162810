package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/trackside/pkg/env"
	"github.com/robotalks/trackside/pkg/ln"
	"github.com/robotalks/trackside/pkg/ln/sim"
)

var (
	nodeCount = 4
	duration  = 10 * time.Second
	interval  = 50 * time.Millisecond
	seed      int64
)

func init() {
	flag.IntVar(&nodeCount, "nodes", nodeCount, "Number of nodes on the bus.")
	flag.DurationVar(&duration, "duration", duration, "Simulated time.")
	flag.DurationVar(&interval, "interval", interval, "Mean interval between messages of a node.")
	flag.Int64Var(&seed, "seed", seed, "Seed of traffic generation, 0 for time.")
}

type nodeStats struct {
	node      *sim.Node
	submitted int
	rejected  int
	breakTime time.Duration
	breakFrom time.Duration
}

// randomMessage builds a 4-byte switch request.
func randomMessage(rnd *rand.Rand) []byte {
	return []byte{0xb0, byte(rnd.Intn(0x80)), byte(rnd.Intn(0x80))}
}

func main() {
	flag.Parse()
	if nodeCount < 2 {
		log.Fatalln("at least 2 nodes required")
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))

	bus := sim.NewBus()
	stats := make([]*nodeStats, nodeCount)
	for i := range stats {
		name := fmt.Sprintf("node%d", i)
		st := &nodeStats{node: bus.AddNode(name, env.SeedFor(name))}
		st.node.Driver.Notifier = ln.ModeChangedFunc(func(m ln.Mode) {
			if m == ln.ModeLineBreak {
				st.breakFrom = bus.Now()
			} else if st.breakFrom != 0 {
				st.breakTime += bus.Now() - st.breakFrom
				st.breakFrom = 0
			}
		})
		stats[i] = st
	}

	step := time.Millisecond
	chance := int64(interval / step)
	if chance < 1 {
		chance = 1
	}
	for elapsed := time.Duration(0); elapsed < duration; elapsed += step {
		for _, st := range stats {
			if rnd.Int63n(chance) != 0 {
				continue
			}
			if err := st.node.Submit(randomMessage(rnd)...); err != nil {
				glog.V(1).Infof("%s: %v", st.node.Name, err)
				st.rejected++
				continue
			}
			st.submitted++
		}
		bus.RunFor(step)
	}
	// drain pending messages without new traffic.
	bus.RunFor(time.Second)

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "node\tsubmitted\trejected\tsent\treceived\tcollisions\tbreaks\tin break\tpending\t")
	for _, st := range stats {
		s := st.node.Driver.Stats()
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%v\t%d\t\n",
			st.node.Name, st.submitted, st.rejected, s.FramesSent, len(st.node.Frames),
			s.Collisions, s.LineBreaks, st.breakTime, st.node.Driver.Pending())
	}
	w.Flush()
	fmt.Printf("seed %d, %v simulated\n", seed, bus.Now())
}
