package main

import (
	"flag"
	"log"

	"github.com/robotalks/trackside/pkg/bridge/mqtt"
	"github.com/robotalks/trackside/pkg/bridge/msgs"
	"github.com/robotalks/trackside/pkg/env"
)

func init() {
	env.SetupBridgeFlags()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(env.Default().MQTTURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		node, suffix, ok := mqtt.SplitNodeTopic(topic)
		if !ok {
			log.Printf("%s: %d bytes", topic, len(payload))
			return
		}
		switch suffix {
		case mqtt.TopicMeta:
			if len(payload) == 0 {
				log.Printf("%s: gone", node)
				return
			}
			log.Printf("%s: %s", node, string(payload))
		case mqtt.TopicRx, mqtt.TopicTx:
			f, err := msgs.Decode(payload)
			if err != nil {
				log.Printf("%s: bad frame: %v", topic, err)
				return
			}
			log.Printf("%s %s: [%s #%d] %s", node, suffix, f.Node, f.Seq, f.Hex())
		}
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
