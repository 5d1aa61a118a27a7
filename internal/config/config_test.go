package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/integrators"
	"github.com/san-kum/trisim/internal/settings"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Integrator.Method != "rk45" {
		t.Errorf("expected integrator rk45, got %s", cfg.Integrator.Method)
	}
	if cfg.TickInterval <= 0 {
		t.Error("tick interval should be positive")
	}
	if _, err := cfg.Run.Settings(); err != nil {
		t.Errorf("default run should be valid: %v", err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trisim.yaml")
	data := `
tick_interval: 20ms
fixed_step: 0.5
integrator:
  method: rk4
  max_step: 0.05
run:
  speed: 3
  number_format: "0.00"
  bodies:
    - {id: 3, mass: 2, x: 0, y: 10}
    - {id: 1, mass: 1, x: 10, y: 0, vy: 5, color: "#ff0000"}
    - {id: 2, mass: 1, x: -10, y: 0, vy: -5}
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.TickInterval != 20*time.Millisecond {
		t.Errorf("expected 20ms tick, got %v", cfg.TickInterval)
	}
	if cfg.SkipChunks != DefaultSkipChunks {
		t.Errorf("unset skip_chunks should keep default, got %d", cfg.SkipChunks)
	}

	s, err := cfg.Run.Settings()
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	if s.Speed != 3 || s.Format != settings.Std2 {
		t.Errorf("unexpected speed/format: %g %v", s.Speed, s.Format)
	}
	for i, b := range s.Bodies {
		if b.ID != i+1 {
			t.Errorf("bodies not ordered by id: %d at %d", b.ID, i)
		}
	}
	if s.Bodies[2].Mass != 2 || s.Bodies[0].Color != "#ff0000" {
		t.Errorf("bodies not placed by id: %+v", s.Bodies)
	}

	integ, err := cfg.BuildIntegrator()
	if err != nil {
		t.Fatal(err)
	}
	if rk4, ok := integ.(*integrators.RK4); !ok || rk4.Dt != 0.05 {
		t.Errorf("expected RK4 with step 0.05, got %#v", integ)
	}

	opts := cfg.SimOptions(nil)
	if opts.FixedStep != 0.5 || opts.SkipChunks != DefaultSkipChunks {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Run = *GetPreset("figure8")
	cfg.Run.SkipTo = 100

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("config changed across save/load:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestRunSettings_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
	}{
		{"too few bodies", func(r *RunConfig) { r.Bodies = r.Bodies[:2] }},
		{"duplicate id", func(r *RunConfig) { r.Bodies[1].ID = 1 }},
		{"id out of range", func(r *RunConfig) { r.Bodies[2].ID = 7 }},
		{"bad color", func(r *RunConfig) { r.Bodies[0].Color = "crimson" }},
		{"zero mass", func(r *RunConfig) { r.Bodies[0].Mass = 0 }},
		{"negative skip", func(r *RunConfig) { r.SkipTo = -1 }},
		{"unknown format", func(r *RunConfig) { r.NumberFormat = "0.0" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := GetPreset("line")
			tt.mutate(r)
			if _, err := r.Settings(); !errors.Is(err, dynamo.ErrInput) {
				t.Errorf("expected ErrInput, got %v", err)
			}
		})
	}
}

func TestFromSettings(t *testing.T) {
	for _, name := range ListPresets() {
		s, err := GetPreset(name).Settings()
		if err != nil {
			t.Fatalf("preset %s invalid: %v", name, err)
		}
		back, err := FromSettings(s).Settings()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(s, back) {
			t.Errorf("preset %s changed through FromSettings", name)
		}
	}
}

func TestBuildIntegrator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Integrator.AbsTol = 1e-3
	cfg.Integrator.MaxEvals = 10

	integ, err := cfg.BuildIntegrator()
	if err != nil {
		t.Fatal(err)
	}
	rk, ok := integ.(*integrators.RK45)
	if !ok {
		t.Fatalf("expected *RK45, got %T", integ)
	}
	if rk.AbsTol != 1e-3 || rk.MaxEvals != 10 || rk.RelTol != integrators.DefaultRelTol {
		t.Errorf("tolerances not applied: %+v", rk)
	}

	cfg.Integrator.Method = "euler"
	if _, err := cfg.BuildIntegrator(); !errors.Is(err, dynamo.ErrInput) {
		t.Errorf("expected ErrInput for unknown method, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset("line")
	if p == nil {
		t.Fatal("expected preset, got nil")
	}
	p.Bodies[0].Mass = 42
	if Presets["line"].Bodies[0].Mass == 42 {
		t.Error("GetPreset must return a copy")
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if want := []string{"figure8", "hierarchical", "line"}; !reflect.DeepEqual(ListPresets(), want) {
		t.Errorf("ListPresets() = %v, want %v", ListPresets(), want)
	}
}
