package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/golang/glog"
	goserial "github.com/tarm/serial"

	"github.com/robotalks/trackside/pkg/bridge"
	"github.com/robotalks/trackside/pkg/bridge/mqtt"
	"github.com/robotalks/trackside/pkg/bridge/websocket"
	"github.com/robotalks/trackside/pkg/env"
	fx "github.com/robotalks/trackside/pkg/framework"
	"github.com/robotalks/trackside/pkg/ln"
	"github.com/robotalks/trackside/pkg/ln/serial"
)

var statsInterval = time.Minute

func init() {
	env.SetupFlags()
	flag.DurationVar(&statsInterval, "stats", statsInterval, "Interval of logging statistics.")
}

func logStats(drv *ln.Driver, hub *bridge.Hub) {
	st := drv.Stats()
	glog.Infof("rx=%d tx=%d checksum=%d length=%d collisions=%d breaks=%d rxerr=%d timeout=%d overflow=%d dropped=%d",
		st.FramesReceived, st.FramesSent, st.ChecksumErrors, st.LengthErrors,
		st.Collisions, st.LineBreaks, st.ReceiveErrors, st.TransmitTimeout, st.Overflows,
		hub.Dropped())
}

func main() {
	flag.Parse()
	conf := env.NewConfig().MustValidate()
	node := conf.Node()

	port, err := goserial.OpenPort(&goserial.Config{Name: conf.Device, Baud: conf.Baud})
	if err != nil {
		log.Fatalf("open %s: %v", conf.Device, err)
	}
	rt := serial.NewRuntime(port, conf.BackoffSeed())
	conf.ApplyTo(rt.Driver)
	hub := bridge.NewHub(node, rt.Driver)
	rt.Driver.Handler = hub

	mqttBridge, err := mqtt.NewBridge(conf.MQTTURL, hub, mqtt.NodeMeta{
		Device:  conf.Device,
		Started: time.Now(),
	})
	if err != nil {
		log.Fatalln(err)
	}

	runnables := []fx.Runnable{
		fx.NamedRun("driver", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, port, func() error {
				return rt.Run(ctx)
			})
		})),
		mqttBridge,
		fx.NamedRun("stats", fx.Every(statsInterval, func(context.Context) {
			logStats(rt.Driver, hub)
		})),
	}
	if conf.WebsocketAddr != "" {
		runnables = append(runnables, websocket.NewServer(conf.WebsocketAddr, hub))
	}

	glog.Infof("node %s on %s", node, conf.Device)
	err = fx.NewRunner().HandleSignals().Run(runnables...)
	logStats(rt.Driver, hub)
	glog.Flush()
	if err != nil {
		log.Fatalln(err)
	}
}
