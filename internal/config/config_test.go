package config

import (
	"testing"
	"time"
)

func TestParseTighteningSteps(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []TighteningStep
		wantErr bool
	}{
		{
			name: "valid ladder",
			raw:  "1.0:0.3,2.0:1.2,3.0:2.0",
			want: []TighteningStep{
				{Threshold: 1.0, SLPosition: 0.3},
				{Threshold: 2.0, SLPosition: 1.2},
				{Threshold: 3.0, SLPosition: 2.0},
			},
		},
		{
			name: "single step",
			raw:  "2.0:1.2",
			want: []TighteningStep{{Threshold: 2.0, SLPosition: 1.2}},
		},
		{
			name: "spaces tolerated",
			raw:  " 1.0 : 0.5 , 2.0 : 1.0 ",
			want: []TighteningStep{
				{Threshold: 1.0, SLPosition: 0.5},
				{Threshold: 2.0, SLPosition: 1.0},
			},
		},
		{
			name: "empty gives nil",
			raw:  "",
			want: nil,
		},
		{
			name:    "missing sl_position",
			raw:     "1.0",
			wantErr: true,
		},
		{
			name:    "garbage threshold",
			raw:     "abc:1.0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTighteningSteps(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTighteningSteps(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d steps, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("step %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMonitorConfigValidate(t *testing.T) {
	// Базовая валидная конфигурация, тесты мутируют копию
	base := MonitorConfig{
		InstanceID:   "default",
		Mode:         ModeEvent,
		PollInterval: 10 * time.Second,
		TighteningSteps: []TighteningStep{
			{Threshold: 1.0, SLPosition: 0.3},
			{Threshold: 2.0, SLPosition: 1.2},
		},
		TPProximity:        TPProximityConfig{ThresholdPct: 5, TrailingPct: 1},
		AgeTightening:      AgeTighteningConfig{MinProfitThreshold: 0.5, MaxTighteningPct: 50},
		PartialFillTimeout: 60 * time.Second,
		StopJoinTimeout:    5 * time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(*MonitorConfig)
		wantErr bool
	}{
		{
			name:   "valid event mode",
			mutate: func(*MonitorConfig) {},
		},
		{
			name:   "valid poll mode",
			mutate: func(m *MonitorConfig) { m.Mode = ModePoll },
		},
		{
			name:    "unknown mode",
			mutate:  func(m *MonitorConfig) { m.Mode = "hybrid" },
			wantErr: true,
		},
		{
			name: "poll mode requires interval",
			mutate: func(m *MonitorConfig) {
				m.Mode = ModePoll
				m.PollInterval = 0
			},
			wantErr: true,
		},
		{
			name: "non-ascending thresholds rejected",
			mutate: func(m *MonitorConfig) {
				m.TighteningSteps = []TighteningStep{
					{Threshold: 2.0, SLPosition: 1.2},
					{Threshold: 1.0, SLPosition: 0.3},
				}
			},
			wantErr: true,
		},
		{
			name: "equal thresholds rejected",
			mutate: func(m *MonitorConfig) {
				m.TighteningSteps = []TighteningStep{
					{Threshold: 2.0, SLPosition: 1.0},
					{Threshold: 2.0, SLPosition: 1.2},
				}
			},
			wantErr: true,
		},
		{
			name:    "zero threshold rejected",
			mutate:  func(m *MonitorConfig) { m.TighteningSteps = []TighteningStep{{Threshold: 0, SLPosition: 0.5}} },
			wantErr: true,
		},
		{
			name:    "trailing pct over 100",
			mutate:  func(m *MonitorConfig) { m.TPProximity.TrailingPct = 150 },
			wantErr: true,
		},
		{
			name:    "age tightening past entry",
			mutate:  func(m *MonitorConfig) { m.AgeTightening.MaxTighteningPct = 120 },
			wantErr: true,
		},
		{
			name:    "negative max age seconds",
			mutate:  func(m *MonitorConfig) { m.AgeCancellation.MaxAgeSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "zero partial fill timeout",
			mutate:  func(m *MonitorConfig) { m.PartialFillTimeout = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseBarMap(t *testing.T) {
	got, err := parseBarMap("5:36,60:12,D:3")
	if err != nil {
		t.Fatalf("parseBarMap: %v", err)
	}
	want := map[string]int{"5": 36, "60": 12, "D": 3}
	for tf, bars := range want {
		if got[tf] != bars {
			t.Errorf("bars[%q] = %d, want %d", tf, got[tf], bars)
		}
	}

	if _, err := parseBarMap("60:abc"); err == nil {
		t.Error("expected error for non-numeric bar count")
	}

	if _, err := parseBarMap("60:0"); err == nil {
		t.Error("expected error for zero bar count")
	}

	if m, err := parseBarMap(""); err != nil || m != nil {
		t.Errorf("empty input: got %v, %v, want nil map and nil error", m, err)
	}
}
