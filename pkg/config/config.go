// Package config holds the compile-time defaults and optional runtime
// overrides for the roaster controller core.
package config

import (
	"os"

	"gopkg.in/ini.v1"
)

// Gains holds one PID gain set.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Config holds all tunable constants for the controller core. Every field
// has a compile-time default from spec §6; an optional INI file can
// override any of them.
type Config struct {
	Safety struct {
		MaxChamberTemp     float64 // OVER_TEMP_CHAMBER latch threshold, °C
		WarnChamberTemp    float64 // warning band, °C
		MinFanWhenHeating  uint8   // FAN_INTERLOCK threshold, %
		PreheatTimeoutMs   uint64
		FaultDebounceCount int // N consecutive faulted reads to latch
		FaultClearCount    int // M consecutive clean reads to clear
	}
	Fan struct {
		PreheatDuty    uint8 // FAN_PREHEAT_DUTY
		RoastDefault   uint8 // FAN_ROAST_DEFAULT
		RoastMinDuty   uint8 // FAN_ROAST_MIN_DUTY
		CoolingDuty    uint8 // FAN_COOLING_DUTY
		FanOnlyDefault uint8
		ManualDefault  uint8
	}
	Temp struct {
		PreheatDefault   float64 // DEFAULT_PREHEAT_TEMP
		RoastDefault     float64 // DEFAULT_ROAST_SETPOINT
		CoolingTarget    float64 // COOLING_TARGET_TEMP
		SetpointMin      float64
		SetpointMax      float64
	}
	Timing struct {
		ReadIntervalMs     uint64 // TEMP_READ_INTERVAL_MS
		StateSendIntervalMs uint64 // STATE_SEND_INTERVAL_MS
		PIDWindowMs        uint64 // PID_WINDOW_SIZE_MS
		RorSampleMs        uint64 // ROR_SAMPLE_INTERVAL_MS
		DisconnectMs       uint64 // DISCONNECT_TIMEOUT_MS
		CommandCooldownMs  uint64
	}
	Filter struct {
		LPFAlpha float64 // LPF_ALPHA
	}
	PID struct {
		Threshold   float64 // PID_THRESHOLD
		Aggressive  Gains
		Conservative Gains
		OutputMin   float64
		OutputMax   float64
	}
	Transport struct {
		MaxLineBytes int
		SerialPort   string
		BaudRate     int
	}
	Firmware string
}

const envOverridePath = "MCROASTER_CONFIG"

// Defaults returns the compiled-in configuration matching spec §6.
func Defaults() *Config {
	c := &Config{}

	c.Safety.MaxChamberTemp = 260
	c.Safety.WarnChamberTemp = 250
	c.Safety.MinFanWhenHeating = 40
	c.Safety.PreheatTimeoutMs = 900000
	c.Safety.FaultDebounceCount = 10
	c.Safety.FaultClearCount = 3

	c.Fan.PreheatDuty = 50
	c.Fan.RoastDefault = 90
	c.Fan.RoastMinDuty = 30
	c.Fan.CoolingDuty = 100
	c.Fan.FanOnlyDefault = 50
	c.Fan.ManualDefault = 50

	c.Temp.PreheatDefault = 180
	c.Temp.RoastDefault = 200
	c.Temp.CoolingTarget = 50
	c.Temp.SetpointMin = 100
	c.Temp.SetpointMax = 260

	c.Timing.ReadIntervalMs = 1000
	c.Timing.StateSendIntervalMs = 1000
	c.Timing.PIDWindowMs = 2000
	c.Timing.RorSampleMs = 30000
	c.Timing.DisconnectMs = 5000
	c.Timing.CommandCooldownMs = 100

	c.Filter.LPFAlpha = 0.15

	c.PID.Threshold = 10.0
	c.PID.Aggressive = Gains{Kp: 120, Ki: 30, Kd: 60}
	c.PID.Conservative = Gains{Kp: 70, Ki: 15, Kd: 10}
	c.PID.OutputMin = 0
	c.PID.OutputMax = 255

	c.Transport.MaxLineBytes = 512
	c.Transport.SerialPort = "/dev/ttyUSB0"
	c.Transport.BaudRate = 115200

	c.Firmware = "mcroaster-core/1.0"

	return c
}

// Load returns the compiled defaults, optionally overridden by an INI file.
// The override path is taken from the MCROASTER_CONFIG environment variable;
// a missing file is not an error — it just means the defaults stand, in the
// same "try path, fall back to defaults" style the rest of this module uses
// for optional runtime input.
func Load() (*Config, error) {
	c := Defaults()

	path := os.Getenv(envOverridePath)
	if path == "" {
		return c, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return c, err
	}

	applySection(f, "safety", func(s *ini.Section) {
		c.Safety.MaxChamberTemp = s.Key("max_chamber_temp").MustFloat64(c.Safety.MaxChamberTemp)
		c.Safety.WarnChamberTemp = s.Key("warn_chamber_temp").MustFloat64(c.Safety.WarnChamberTemp)
		c.Safety.MinFanWhenHeating = uint8(s.Key("min_fan_when_heating").MustInt(int(c.Safety.MinFanWhenHeating)))
		c.Safety.PreheatTimeoutMs = uint64(s.Key("preheat_timeout_ms").MustInt64(int64(c.Safety.PreheatTimeoutMs)))
		c.Safety.FaultDebounceCount = s.Key("fault_debounce_count").MustInt(c.Safety.FaultDebounceCount)
		c.Safety.FaultClearCount = s.Key("fault_clear_count").MustInt(c.Safety.FaultClearCount)
	})

	applySection(f, "fan", func(s *ini.Section) {
		c.Fan.PreheatDuty = uint8(s.Key("preheat_duty").MustInt(int(c.Fan.PreheatDuty)))
		c.Fan.RoastDefault = uint8(s.Key("roast_default").MustInt(int(c.Fan.RoastDefault)))
		c.Fan.RoastMinDuty = uint8(s.Key("roast_min_duty").MustInt(int(c.Fan.RoastMinDuty)))
		c.Fan.CoolingDuty = uint8(s.Key("cooling_duty").MustInt(int(c.Fan.CoolingDuty)))
		c.Fan.FanOnlyDefault = uint8(s.Key("fan_only_default").MustInt(int(c.Fan.FanOnlyDefault)))
		c.Fan.ManualDefault = uint8(s.Key("manual_default").MustInt(int(c.Fan.ManualDefault)))
	})

	applySection(f, "temp", func(s *ini.Section) {
		c.Temp.PreheatDefault = s.Key("preheat_default").MustFloat64(c.Temp.PreheatDefault)
		c.Temp.RoastDefault = s.Key("roast_default").MustFloat64(c.Temp.RoastDefault)
		c.Temp.CoolingTarget = s.Key("cooling_target").MustFloat64(c.Temp.CoolingTarget)
		c.Temp.SetpointMin = s.Key("setpoint_min").MustFloat64(c.Temp.SetpointMin)
		c.Temp.SetpointMax = s.Key("setpoint_max").MustFloat64(c.Temp.SetpointMax)
	})

	applySection(f, "timing", func(s *ini.Section) {
		c.Timing.ReadIntervalMs = uint64(s.Key("read_interval_ms").MustInt64(int64(c.Timing.ReadIntervalMs)))
		c.Timing.StateSendIntervalMs = uint64(s.Key("state_send_interval_ms").MustInt64(int64(c.Timing.StateSendIntervalMs)))
		c.Timing.PIDWindowMs = uint64(s.Key("pid_window_ms").MustInt64(int64(c.Timing.PIDWindowMs)))
		c.Timing.RorSampleMs = uint64(s.Key("ror_sample_ms").MustInt64(int64(c.Timing.RorSampleMs)))
		c.Timing.DisconnectMs = uint64(s.Key("disconnect_ms").MustInt64(int64(c.Timing.DisconnectMs)))
		c.Timing.CommandCooldownMs = uint64(s.Key("command_cooldown_ms").MustInt64(int64(c.Timing.CommandCooldownMs)))
	})

	applySection(f, "filter", func(s *ini.Section) {
		c.Filter.LPFAlpha = s.Key("lpf_alpha").MustFloat64(c.Filter.LPFAlpha)
	})

	applySection(f, "pid", func(s *ini.Section) {
		c.PID.Threshold = s.Key("threshold").MustFloat64(c.PID.Threshold)
		c.PID.Aggressive.Kp = s.Key("aggressive_kp").MustFloat64(c.PID.Aggressive.Kp)
		c.PID.Aggressive.Ki = s.Key("aggressive_ki").MustFloat64(c.PID.Aggressive.Ki)
		c.PID.Aggressive.Kd = s.Key("aggressive_kd").MustFloat64(c.PID.Aggressive.Kd)
		c.PID.Conservative.Kp = s.Key("conservative_kp").MustFloat64(c.PID.Conservative.Kp)
		c.PID.Conservative.Ki = s.Key("conservative_ki").MustFloat64(c.PID.Conservative.Ki)
		c.PID.Conservative.Kd = s.Key("conservative_kd").MustFloat64(c.PID.Conservative.Kd)
		c.PID.OutputMin = s.Key("output_min").MustFloat64(c.PID.OutputMin)
		c.PID.OutputMax = s.Key("output_max").MustFloat64(c.PID.OutputMax)
	})

	applySection(f, "transport", func(s *ini.Section) {
		c.Transport.MaxLineBytes = s.Key("max_line_bytes").MustInt(c.Transport.MaxLineBytes)
		c.Transport.SerialPort = s.Key("serial_port").MustString(c.Transport.SerialPort)
		c.Transport.BaudRate = s.Key("baud_rate").MustInt(c.Transport.BaudRate)
	})

	return c, nil
}

func applySection(f *ini.File, name string, apply func(*ini.Section)) {
	if !f.HasSection(name) {
		return
	}
	apply(f.Section(name))
}
