package main

import (
	"flag"

	"github.com/robotalks/trackside/pkg/cli/sh"
	"github.com/robotalks/trackside/pkg/env"

	_ "github.com/robotalks/trackside/pkg/cli/cmds/frame"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupBridgeFlags()
	flag.StringVar(&env.Default().NodeID, "node", env.Default().NodeID, "Node to use.")
}

func main() {
	sh.Main()
}
