package engine

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

const DefaultConfigPath = "anima.toml"

// Duration decodes TOML strings such as "2s" or "50ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position x axis.
	StartPosX uint32 `toml:"x"`
	// Window starting position y axis.
	StartPosY uint32 `toml:"y"`
	// Window starting width.
	StartWidth uint32 `toml:"width"`
	// Window starting height.
	StartHeight uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight int        `toml:"frames_in_flight"`
	Samples        uint32     `toml:"samples"`
	PresentMode    string     `toml:"present_mode"`
	FenceTimeout   Duration   `toml:"fence_timeout"`
	AcquireTimeout Duration   `toml:"acquire_timeout"`
	MinimizedPoll  Duration   `toml:"minimized_poll"`
	ClearColor     [4]float32 `toml:"clear_color"`
	MaxLights      int        `toml:"max_lights"`
	Validation     bool       `toml:"validation"`
}

type AssetsConfig struct {
	Root string `toml:"root"`
	// Model is an OBJ name under models/ without extension. Empty draws the
	// built-in cube.
	Model string `toml:"model"`
	// Albedo is an image file name under textures/.
	Albedo string `toml:"albedo"`
}

type ApplicationConfig struct {
	LogLevel string         `toml:"log_level"`
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

// DefaultApplicationConfig matches the anima.toml shipped with the engine.
func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		LogLevel: "info",
		Window: WindowConfig{
			Name:        "Anima",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			Samples:        4,
			PresentMode:    "fifo",
			FenceTimeout:   Duration{2 * time.Second},
			AcquireTimeout: Duration{2 * time.Second},
			MinimizedPoll:  Duration{50 * time.Millisecond},
			ClearColor:     [4]float32{0.05, 0.05, 0.08, 1.0},
			MaxLights:      4,
			Validation:     true,
		},
		Assets: AssetsConfig{
			Root: "assets",
		},
	}
}

// LoadConfig reads path over the defaults. Keys missing from the file keep
// their default value; unknown keys are rejected.
func LoadConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func ParseConfig(data []byte) (*ApplicationConfig, error) {
	cfg := DefaultApplicationConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("line %d column %d: %s", row, col, derr.Error())
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Window.StartWidth == 0 || c.Window.StartHeight == 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.StartWidth, c.Window.StartHeight)
	}
	r := c.Renderer
	if r.FramesInFlight < 1 || r.FramesInFlight > 3 {
		return fmt.Errorf("frames_in_flight must be between 1 and 3, got %d", r.FramesInFlight)
	}
	if r.Samples == 0 || r.Samples&(r.Samples-1) != 0 || r.Samples > 64 {
		return fmt.Errorf("samples must be a power of two up to 64, got %d", r.Samples)
	}
	if _, err := gpu.ParsePresentMode(r.PresentMode); err != nil {
		return err
	}
	if r.FenceTimeout.Duration <= 0 || r.AcquireTimeout.Duration <= 0 || r.MinimizedPoll.Duration <= 0 {
		return errors.New("fence_timeout, acquire_timeout and minimized_poll must be positive")
	}
	if r.MaxLights < 0 {
		return fmt.Errorf("max_lights must not be negative, got %d", r.MaxLights)
	}
	if c.Assets.Root == "" {
		return errors.New("assets root must not be empty")
	}
	return nil
}

func (c *ApplicationConfig) Level() core.LogLevel {
	return core.ParseLogLevel(c.LogLevel)
}

// RendererConfig converts the [renderer] section. The config must have been
// validated.
func (c *ApplicationConfig) RendererConfig() renderer.Config {
	mode, _ := gpu.ParsePresentMode(c.Renderer.PresentMode)
	return renderer.Config{
		FramesInFlight: c.Renderer.FramesInFlight,
		Samples:        c.Renderer.Samples,
		PresentMode:    mode,
		FenceTimeout:   c.Renderer.FenceTimeout.Duration,
		AcquireTimeout: c.Renderer.AcquireTimeout.Duration,
		MinimizedPoll:  c.Renderer.MinimizedPoll.Duration,
		ClearColor:     c.Renderer.ClearColor,
		MaxLights:      c.Renderer.MaxLights,
	}
}
