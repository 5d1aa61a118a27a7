package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/integrators"
	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/settings"
	"github.com/san-kum/trisim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir      = ".trisim"
	DefaultTickInterval = 50 * time.Millisecond
	DefaultTimeScale    = 1.0
	DefaultSkipChunks   = 1000
	DefaultRK4Step      = 0.01
	DefaultPreset       = "line"
)

type Config struct {
	DataDir      string           `yaml:"data_dir"`
	TickInterval time.Duration    `yaml:"tick_interval"`
	TimeScale    float64          `yaml:"time_scale"`
	FixedStep    float64          `yaml:"fixed_step"`
	SkipChunks   int              `yaml:"skip_chunks"`
	Integrator   IntegratorConfig `yaml:"integrator"`
	Run          RunConfig        `yaml:"run"`
}

type IntegratorConfig struct {
	Method   string  `yaml:"method"`
	AbsTol   float64 `yaml:"abs_tol"`
	RelTol   float64 `yaml:"rel_tol"`
	MinStep  float64 `yaml:"min_step"`
	MaxStep  float64 `yaml:"max_step"`
	MaxEvals int     `yaml:"max_evals"`
}

// RunConfig is the YAML form of settings.Settings.
type RunConfig struct {
	Infinite        bool         `yaml:"infinite"`
	Trails          bool         `yaml:"trails"`
	CenterOfGravity bool         `yaml:"center_of_gravity"`
	SkipTo          float64      `yaml:"skip_to"`
	Speed           float64      `yaml:"speed"`
	NumberFormat    string       `yaml:"number_format"`
	Output          string       `yaml:"output"`
	Bodies          []BodyConfig `yaml:"bodies"`
}

type BodyConfig struct {
	ID    int     `yaml:"id"`
	Mass  float64 `yaml:"mass"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	VX    float64 `yaml:"vx"`
	VY    float64 `yaml:"vy"`
	Color string  `yaml:"color,omitempty"`
	Label string  `yaml:"label,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:      DefaultDataDir,
		TickInterval: DefaultTickInterval,
		TimeScale:    DefaultTimeScale,
		SkipChunks:   DefaultSkipChunks,
		Integrator: IntegratorConfig{
			Method:   "rk45",
			AbsTol:   integrators.DefaultAbsTol,
			RelTol:   integrators.DefaultRelTol,
			MinStep:  integrators.DefaultMinStep,
			MaxEvals: integrators.DefaultMaxEvals,
		},
		Run: *GetPreset(DefaultPreset),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Settings converts the run section into validated settings. Bodies may
// be listed in any order; they are placed by id.
func (r RunConfig) Settings() (settings.Settings, error) {
	if len(r.Bodies) != physics.NumBodies {
		return settings.Settings{}, fmt.Errorf("%w: %d bodies, want %d", dynamo.ErrInput, len(r.Bodies), physics.NumBodies)
	}

	var bodies [physics.NumBodies]physics.Body
	for _, b := range r.Bodies {
		if b.ID < 1 || b.ID > physics.NumBodies {
			return settings.Settings{}, fmt.Errorf("%w: body id %d out of range", dynamo.ErrInput, b.ID)
		}
		if bodies[b.ID-1].ID != 0 {
			return settings.Settings{}, fmt.Errorf("%w: duplicate body id %d", dynamo.ErrInput, b.ID)
		}
		if b.Color != "" {
			if _, err := colorful.Hex(b.Color); err != nil {
				return settings.Settings{}, fmt.Errorf("%w: body %d color %q", dynamo.ErrInput, b.ID, b.Color)
			}
		}
		bodies[b.ID-1] = physics.Body{
			ID:       b.ID,
			Mass:     b.Mass,
			Position: r2.Vec{X: b.X, Y: b.Y},
			Velocity: r2.Vec{X: b.VX, Y: b.VY},
			Color:    b.Color,
			Label:    b.Label,
		}
	}

	s := settings.New(bodies)
	s.Infinite = r.Infinite
	s.Trails = r.Trails
	s.CenterOfGravity = r.CenterOfGravity
	s.SkipTo = r.SkipTo
	s.Output = r.Output
	if r.Speed != 0 {
		s.Speed = r.Speed
	}
	if r.NumberFormat != "" {
		f, err := settings.ParseNumberFormat(r.NumberFormat)
		if err != nil {
			return settings.Settings{}, fmt.Errorf("%w: %v", dynamo.ErrInput, err)
		}
		s.Format = f
	}

	if err := settings.Validate(s); err != nil {
		return settings.Settings{}, err
	}
	return s, nil
}

// FromSettings is the inverse of RunConfig.Settings.
func FromSettings(s settings.Settings) RunConfig {
	r := RunConfig{
		Infinite:        s.Infinite,
		Trails:          s.Trails,
		CenterOfGravity: s.CenterOfGravity,
		SkipTo:          s.SkipTo,
		Speed:           s.Speed,
		NumberFormat:    s.Format.String(),
		Output:          s.Output,
		Bodies:          make([]BodyConfig, 0, physics.NumBodies),
	}
	for _, b := range s.Bodies {
		r.Bodies = append(r.Bodies, BodyConfig{
			ID: b.ID, Mass: b.Mass,
			X: b.Position.X, Y: b.Position.Y,
			VX: b.Velocity.X, VY: b.Velocity.Y,
			Color: b.Color, Label: b.Label,
		})
	}
	return r
}

// BuildIntegrator returns the integrator named by the integrator section.
func (c *Config) BuildIntegrator() (dynamo.Integrator, error) {
	ic := c.Integrator
	switch strings.ToLower(ic.Method) {
	case "", "rk45", "dopri", "dormand-prince":
		rk := integrators.NewRK45()
		if ic.AbsTol > 0 {
			rk.AbsTol = ic.AbsTol
		}
		if ic.RelTol > 0 {
			rk.RelTol = ic.RelTol
		}
		if ic.MinStep > 0 {
			rk.MinStep = ic.MinStep
		}
		if ic.MaxEvals > 0 {
			rk.MaxEvals = ic.MaxEvals
		}
		rk.MaxStep = ic.MaxStep
		return rk, nil
	case "rk4":
		step := ic.MaxStep
		if step <= 0 {
			step = DefaultRK4Step
		}
		return integrators.NewRK4(step), nil
	default:
		return nil, fmt.Errorf("%w: unknown integrator %q", dynamo.ErrInput, ic.Method)
	}
}

// SimOptions returns the driver options described by c.
func (c *Config) SimOptions(logger *log.Logger) sim.Options {
	opts := sim.DefaultOptions()
	if c.TimeScale > 0 {
		opts.TimeScale = c.TimeScale
	}
	if c.SkipChunks > 0 {
		opts.SkipChunks = c.SkipChunks
	}
	opts.FixedStep = c.FixedStep
	opts.Logger = logger
	return opts
}
