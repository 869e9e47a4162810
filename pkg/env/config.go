// Package env provides the common configuration of trackside commands.
package env

import (
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/trackside/pkg/ln"
)

// Config defines node identity, line settings and bridges.
type Config struct {
	// NodeID names the node on the broker, defaults to a machine-derived ID.
	NodeID string
	// Seed of the backoff generator, 0 to derive from NodeID.
	Seed uint

	// Device is the serial port of the LocoNet adapter.
	Device string
	// Baud of the serial port. The adapter converts to 16.66 kbaud.
	Baud int
	// Tick is the duration of a driver timer tick.
	Tick time.Duration
	// TransmitTimeout is the echo watchdog in ticks.
	TransmitTimeout uint
	// Loopback delivers own frames to the bridges.
	Loopback bool

	// MQTTURL is the broker, e.g. mqtt://host:port/topic-prefix
	MQTTURL string
	// WebsocketAddr enables the websocket server when not empty.
	WebsocketAddr string
}

var defaultConfig = Config{
	Device:          "/dev/ttyUSB0",
	Baud:            57600,
	Tick:            ln.DefaultTick,
	TransmitTimeout: uint(ln.DefaultTransmitTimeout),
	MQTTURL:         "mqtt://localhost:1883/loconet/",
}

func init() {
	if val := os.Getenv("TRACKSIDE_NODE_ID"); val != "" {
		defaultConfig.NodeID = val
	}
	if val := os.Getenv("TRACKSIDE_SEED"); val != "" {
		if n, err := strconv.ParseUint(val, 0, 16); err == nil {
			defaultConfig.Seed = uint(n)
		}
	}
	if val := os.Getenv("TRACKSIDE_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
	if val := os.Getenv("TRACKSIDE_BAUD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			defaultConfig.Baud = n
		}
	}
	if val := os.Getenv("TRACKSIDE_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("TRACKSIDE_WS_ADDR"); val != "" {
		defaultConfig.WebsocketAddr = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.NodeID, "node", defaultConfig.NodeID, "Node ID, default derived from machine ID.")
	flag.UintVar(&defaultConfig.Seed, "seed", defaultConfig.Seed, "Backoff seed, 0 to derive from node ID.")
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Serial port of LocoNet adapter.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial port baud rate.")
	flag.DurationVar(&defaultConfig.Tick, "tick", defaultConfig.Tick, "Driver timer tick.")
	flag.UintVar(&defaultConfig.TransmitTimeout, "tx-timeout", defaultConfig.TransmitTimeout, "Echo watchdog in ticks.")
	flag.BoolVar(&defaultConfig.Loopback, "loopback", defaultConfig.Loopback, "Deliver own frames.")
	SetupBridgeFlags()
}

// SetupBridgeFlags sets up flags only for broker clients.
func SetupBridgeFlags() {
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.WebsocketAddr, "ws", defaultConfig.WebsocketAddr, "Websocket listen address, empty to disable.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Node returns NodeID or the machine-derived one.
func (c *Config) Node() string {
	if c.NodeID != "" {
		return c.NodeID
	}
	return NodeID()
}

// BackoffSeed returns Seed or derives it from the node.
func (c *Config) BackoffSeed() uint16 {
	if seed := uint16(c.Seed); seed != 0 {
		return seed
	}
	return SeedFor(c.Node())
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return &InvalidError{Name: "baud", Value: strconv.Itoa(c.Baud)}
	}
	if c.Tick <= 0 {
		return &InvalidError{Name: "tick", Value: c.Tick.String()}
	}
	if c.TransmitTimeout == 0 || c.TransmitTimeout > 0xffff {
		return &InvalidError{Name: "tx-timeout", Value: strconv.FormatUint(uint64(c.TransmitTimeout), 10)}
	}
	if c.Seed > 0xffff {
		return &InvalidError{Name: "seed", Value: strconv.FormatUint(uint64(c.Seed), 10)}
	}
	return nil
}

// MustValidate fails on invalid settings.
func (c *Config) MustValidate() *Config {
	if err := c.Validate(); err != nil {
		log.Fatalln(err)
	}
	return c
}

// ApplyTo configures a driver.
func (c *Config) ApplyTo(d *ln.Driver) {
	d.Tick = c.Tick
	d.TransmitTimeout = uint16(c.TransmitTimeout)
	d.Loopback = c.Loopback
}

// InvalidError reports an invalid setting.
type InvalidError struct {
	Name  string
	Value string
}

// Error implements error.
func (e *InvalidError) Error() string {
	return "invalid " + e.Name + ": " + e.Value
}
