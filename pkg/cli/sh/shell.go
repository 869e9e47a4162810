package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/trackside/pkg/bridge/mqtt"
	"github.com/robotalks/trackside/pkg/bridge/msgs"
	"github.com/robotalks/trackside/pkg/env"
)

// Shell provides ishell backed interactive shell talking to nodes
// through the broker.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *env.Config
	Client *mqtt.Client
	// Node is the node commands are sent to.
	Node string
}

const (
	shellKey     = "$shell"
	noNodePrompt = "[none] > "
	// DefaultMonitorDuration is used when monitor has no duration.
	DefaultMonitorDuration = 10 * time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&NodesCmd,
		&UseCmd,
		&SendCmd,
		&MonitorCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Node:   conf.NodeID,
	}
	s.Shell.Set(shellKey, s)
	s.updatePrompt()
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustUseNode wraps command func requires a selected node.
func MustUseNode(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Node == "" {
			c.Err(fmt.Errorf("no node selected, try use"))
			return
		}
		fn(c)
	}
}

// Print prints v as JSON or with the text formatter.
func (s *Shell) Print(c *ishell.Context, v interface{}, text func() string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text())
}

// FormatFrame formats a frame for display.
func FormatFrame(f *msgs.Frame) string {
	return fmt.Sprintf("%s %s #%d %s",
		f.Time().Format("15:04:05.000"), f.Node, f.Seq, f.Hex())
}

// Connect connects to the broker.
func (s *Shell) Connect() error {
	if s.Client != nil {
		return nil
	}
	client, err := mqtt.NewClient(s.Config.MQTTURL, "lncli:"+env.NodeID())
	if err != nil {
		return fmt.Errorf("connect %s: %v", s.Config.MQTTURL, err)
	}
	s.Client = client
	return nil
}

// Use selects the node.
func (s *Shell) Use(node string) {
	s.Node = node
	s.updatePrompt()
}

func (s *Shell) updatePrompt() {
	if s.Node == "" {
		s.Shell.SetPrompt(noNodePrompt)
		return
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", s.Node))
}

// DiscoverNodes discovers nodes.
func (s *Shell) DiscoverNodes() ([]mqtt.NodeMeta, error) {
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return s.Client.Discover(context.TODO())
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Close disconnects from the broker.
func (s *Shell) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

var (
	// NodesCmd discovers nodes.
	NodesCmd = ishell.Cmd{
		Name:    "nodes",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			nodes, err := s.DiscoverNodes()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				s.Print(c, nodes, nil)
				return
			}
			if len(nodes) == 0 {
				c.Println("No nodes found")
				return
			}
			for _, meta := range nodes {
				line := meta.Node
				if meta.Device != "" {
					line += " on " + meta.Device
				}
				if !meta.Started.IsZero() {
					line += ", up since " + meta.Started.Format(time.RFC3339)
				}
				c.Println(line)
			}
		},
	}

	// UseCmd selects a node.
	UseCmd = ishell.Cmd{
		Name:    "use",
		Aliases: []string{"u"},
		Help:    "[NODE]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Use(c.Args[0])
				return
			}
			nodes, err := s.DiscoverNodes()
			if err != nil {
				c.Err(err)
				return
			}
			switch {
			case len(nodes) == 0:
				c.Err(fmt.Errorf("no node discovered"))
			case len(nodes) == 1:
				s.Use(nodes[0].Node)
			case !s.Interactive:
				c.Err(fmt.Errorf("more than 1 nodes discovered in non-interactive mode"))
			default:
				items := make([]string, len(nodes))
				for n, meta := range nodes {
					items[n] = meta.Node
				}
				s.Use(nodes[s.Shell.MultiChoice(items, "Which node?")].Node)
			}
		},
	}

	// SendCmd sends a message to the selected node.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "HEX... (checksum optional)",
		Func: MustUseNode(func(c *ishell.Context) {
			s := ShellFrom(c)
			data, err := ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			f := &msgs.Frame{Data: data}
			if err := ValidateFrameData(f.Message()); err != nil {
				c.Err(err)
				return
			}
			if err := s.Connect(); err != nil {
				c.Err(err)
				return
			}
			if err := s.Client.Send(s.Node, data); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// MonitorCmd prints frames received by nodes.
	MonitorCmd = ishell.Cmd{
		Name:    "monitor",
		Aliases: []string{"m"},
		Help:    "[NODE|+] [DURATION]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			node, dur := s.Node, DefaultMonitorDuration
			for _, arg := range c.Args {
				if d, err := time.ParseDuration(arg); err == nil {
					dur = d
				} else {
					node = arg
				}
			}
			if node == "" {
				node = "+"
			}
			if err := s.Connect(); err != nil {
				c.Err(err)
				return
			}
			sub := s.Client.Monitor(node, func(f *msgs.Frame) {
				s.Print(c, f, func() string { return FormatFrame(f) })
			})
			time.Sleep(dur)
			sub.Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	s := New(env.NewConfig())
	defer s.Close()
	s.Run(flag.Args()...)
}
