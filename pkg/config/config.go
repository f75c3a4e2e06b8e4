// Package config loads Badplaner runtime settings from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the runtime settings shared by the desktop shell and the
// headless renderer.
type Config struct {
	// WindowWidth and WindowHeight size the application window. The viewport
	// falls back to them when its container reports no size.
	WindowWidth  int
	WindowHeight int

	// FPS is the render loop rate.
	FPS int

	// PixelRatio scales the framebuffer relative to the container size.
	PixelRatio float64

	// Antialias enables 2x supersampling.
	Antialias bool

	// MeshCells is the marching cubes resolution for fixture meshes.
	MeshCells int

	// ExportDir receives screenshots when no save dialog is available.
	ExportDir string

	// LogLevel is passed to logging.SetLevel.
	LogLevel string
}

// Load reads the configuration from the environment, applying defaults for
// unset or malformed values.
func Load() *Config {
	return &Config{
		WindowWidth:  getEnvAsInt("BADPLANER_WINDOW_WIDTH", 1280),
		WindowHeight: getEnvAsInt("BADPLANER_WINDOW_HEIGHT", 800),
		FPS:          getEnvAsInt("BADPLANER_FPS", 60),
		PixelRatio:   getEnvAsFloat("BADPLANER_PIXEL_RATIO", 1),
		Antialias:    getEnvAsBool("BADPLANER_ANTIALIAS", true),
		MeshCells:    getEnvAsInt("BADPLANER_MESH_CELLS", 48),
		ExportDir:    getEnv("BADPLANER_EXPORT_DIR", "."),
		LogLevel:     getEnv("BADPLANER_LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := getEnv(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}
