package sequencer

import "fmt"

// Option is one of the numeric program options.
type Option int

const (
	Tempo Option = iota
	Subdivision
	IterationLength
	numOptions
)

type optionRange struct {
	name     string
	aliases  []string
	min, max int
	def      int
	hasDef   bool
}

// Upper limits are arbitrary but keep schedules finite.
var options = [numOptions]optionRange{
	Tempo:           {name: "tempo", min: 1, max: 10000, def: 120, hasDef: true},
	Subdivision:     {name: "subdiv", aliases: []string{"subdivision"}, min: 1, max: 10000, def: 16, hasDef: true},
	IterationLength: {name: "iterlength", aliases: []string{"iteration_length"}, min: 1, max: 10000},
}

// PartOrderOption is the option name that sets the ring order.
const PartOrderOption = "partorder"

func (o Option) String() string {
	if o < 0 || o >= numOptions {
		return "unknown"
	}
	return options[o].name
}

// ParseOption looks up a numeric option by name or alias.
func ParseOption(name string) (Option, bool) {
	for o, r := range options {
		if r.name == name {
			return Option(o), true
		}
		for _, a := range r.aliases {
			if a == name {
				return Option(o), true
			}
		}
	}
	return 0, false
}

// IsPartOrderOption reports whether name selects the part order.
func IsPartOrderOption(name string) bool {
	return name == PartOrderOption || name == "part_order"
}

// Config holds the program options. The zero value is not ready to use;
// start from DefaultConfig.
type Config struct {
	values    [numOptions]int
	set       [numOptions]bool
	partOrder []string
}

// DefaultConfig returns tempo 120, subdivision 16, iteration length and
// part order unset.
func DefaultConfig() Config {
	var c Config
	for o, r := range options {
		if r.hasDef {
			c.values[o] = r.def
			c.set[o] = true
		}
	}
	return c
}

// Set validates and stores an option value.
func (c *Config) Set(o Option, v int) error {
	if o < 0 || o >= numOptions {
		return fmt.Errorf("unknown global option %d", int(o))
	}
	r := options[o]
	if v < r.min {
		return fmt.Errorf("%s must be >= %d", r.name, r.min)
	}
	if v > r.max {
		return fmt.Errorf("%s must be <= %d", r.name, r.max)
	}
	c.values[o] = v
	c.set[o] = true
	return nil
}

// Get returns the option value and whether it is set.
func (c Config) Get(o Option) (int, bool) {
	if o < 0 || o >= numOptions {
		return 0, false
	}
	return c.values[o], c.set[o]
}

// Tempo in beats per minute.
func (c Config) Tempo() int {
	v, _ := c.Get(Tempo)
	return v
}

// Subdivision is the number of steps per whole note.
func (c Config) Subdivision() int {
	v, _ := c.Get(Subdivision)
	return v
}

// SetPartOrder stores the ring order by part name. Whether it is a
// permutation of the parts is checked when the engine is built.
func (c *Config) SetPartOrder(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("empty part lists are not permitted")
	}
	c.partOrder = append([]string(nil), names...)
	return nil
}

// PartOrder returns the configured ring order, nil when unset.
func (c Config) PartOrder() []string {
	return append([]string(nil), c.partOrder...)
}
