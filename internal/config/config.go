// Package config loads mixer, pack, preload, payload and
// diagnostics-surface settings from defaults and environment variables.
//
// Only DiagConfig is read elsewhere in this module (by cmd/nvgtdiag);
// the mixer, pack, source and payload packages take their settings as
// arguments and do not read this package.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// =============================================================================
// MIXER CONFIGURATION
// =============================================================================

// MixerConfig holds the audio engine's nominal output format.
type MixerConfig struct {
	SampleRate int     // Nominal sample rate in Hz
	Channels   int     // Output channel count (1=mono, 2=stereo)
	MasterVolume float64 // Master volume applied at the output mixer (0.0 to 1.0)
}

// DefaultMixer returns the default mixer configuration.
func DefaultMixer() MixerConfig {
	return MixerConfig{
		SampleRate:   44100,
		Channels:     2,
		MasterVolume: 1.0,
	}
}

// MixerFromEnv returns mixer configuration with environment variable overrides.
func MixerFromEnv() MixerConfig {
	cfg := DefaultMixer()

	if sr := getEnvInt("NVGT_SAMPLE_RATE", 0); sr > 0 {
		cfg.SampleRate = sr
	}
	if ch := getEnvInt("NVGT_CHANNELS", 0); ch > 0 {
		cfg.Channels = ch
	}
	if v := getEnvFloat("NVGT_MASTER_VOLUME", -1); v >= 0 {
		cfg.MasterVolume = v
	}

	return cfg
}

// =============================================================================
// PACK CONFIGURATION
// =============================================================================

// PackConfig holds pack-container defaults.
type PackConfig struct {
	DefaultKey       string // Cipher key used when none is given explicitly (empty = unencrypted)
	DeflateCompression bool // Whether newly added streams use deflate by default
}

// DefaultPack returns the default pack configuration.
func DefaultPack() PackConfig {
	return PackConfig{
		DefaultKey:         "",
		DeflateCompression: true,
	}
}

// PackFromEnv returns pack configuration with environment variable overrides.
func PackFromEnv() PackConfig {
	cfg := DefaultPack()

	if k := os.Getenv("NVGT_PACK_KEY"); k != "" {
		cfg.DefaultKey = k
	}
	if os.Getenv("NVGT_PACK_NO_COMPRESSION") == "true" {
		cfg.DeflateCompression = false
	}

	return cfg
}

// =============================================================================
// PRELOAD CACHE CONFIGURATION
// =============================================================================

// PreloadConfig describes preload cache size and eviction settings.
// internal/source's PreloadCache does not read it: its idle timeout is
// the NewPreloadCache argument (DefaultIdleTimeout, 120 s, when zero)
// and it has no entry cap.
type PreloadConfig struct {
	MaxEntries   int // Hard cap on cached decoded streams
	IdleTTLSeconds int // Seconds an unused entry survives before GC sweeps it
}

// DefaultPreload returns the default preload cache configuration.
func DefaultPreload() PreloadConfig {
	return PreloadConfig{
		MaxEntries:     64,
		IdleTTLSeconds: 30,
	}
}

// PreloadFromEnv returns preload configuration with environment variable overrides.
func PreloadFromEnv() PreloadConfig {
	cfg := DefaultPreload()

	if m := getEnvInt("NVGT_PRELOAD_MAX_ENTRIES", 0); m > 0 {
		cfg.MaxEntries = m
	}
	if t := getEnvInt("NVGT_PRELOAD_IDLE_TTL_SECONDS", 0); t > 0 {
		cfg.IdleTTLSeconds = t
	}

	return cfg
}

// =============================================================================
// PAYLOAD CONFIGURATION
// =============================================================================

// PayloadConfig controls where a compiled-application stub is located and
// the compression level used when embedding new payloads.
type PayloadConfig struct {
	StubDir          string // Directory containing per-platform stub binaries
	CompressionLevel int    // 0 (store) to 9 (max); matches the teacher's deflate level knob
}

// DefaultPayload returns the default payload configuration.
func DefaultPayload() PayloadConfig {
	return PayloadConfig{
		StubDir:          "stubs",
		CompressionLevel: 6,
	}
}

// PayloadFromEnv returns payload configuration with environment variable overrides.
func PayloadFromEnv() PayloadConfig {
	cfg := DefaultPayload()

	if d := os.Getenv("NVGT_STUB_DIR"); d != "" {
		cfg.StubDir = d
	}
	if l := getEnvInt("NVGT_COMPRESSION_LEVEL", -1); l >= 0 {
		cfg.CompressionLevel = l
	}

	return cfg
}

// =============================================================================
// DIAGNOSTICS SERVER CONFIGURATION
// =============================================================================

// DiagConfig holds the diagnostics/control HTTP surface's listen settings.
type DiagConfig struct {
	Addr string // host:port the diagnostics API binds to
}

// DefaultDiag returns the default diagnostics configuration.
func DefaultDiag() DiagConfig {
	return DiagConfig{Addr: "127.0.0.1:8090"}
}

// DiagFromEnv returns diagnostics configuration with environment variable overrides.
func DiagFromEnv() DiagConfig {
	cfg := DefaultDiag()

	if a := os.Getenv("NVGT_DIAG_ADDR"); a != "" {
		cfg.Addr = a
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Mixer   MixerConfig
	Pack    PackConfig
	Preload PreloadConfig
	Payload PayloadConfig
	Diag    DiagConfig
}

// Load reads a .env file if present and returns the complete
// configuration with environment overrides applied.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	return AppConfig{
		Mixer:   MixerFromEnv(),
		Pack:    PackFromEnv(),
		Preload: PreloadFromEnv(),
		Payload: PayloadFromEnv(),
		Diag:    DiagFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
