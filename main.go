package main

import (
	"embed"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chazu/badplaner/pkg/config"
	"github.com/chazu/badplaner/pkg/frameloop"
	"github.com/chazu/badplaner/pkg/logging"
	"github.com/chazu/badplaner/pkg/snapshot"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	headless := flag.Bool("headless", false, "render one frame without opening a window")
	layout := flag.String("layout", "", "layout script to apply before rendering")
	out := flag.String("out", "badplanung.png", "PNG written in headless mode")
	flag.Parse()

	cfg := config.Load()
	logging.SetLevel(cfg.LogLevel)
	log := logging.New("main")

	if *headless {
		path, err := renderHeadless(cfg, *layout, *out)
		if err != nil {
			log.Error("headless render failed", "err", err)
			os.Exit(1)
		}
		log.Info("frame written", "path", path)
		return
	}

	app := NewApp(cfg, nil)
	err := wails.Run(&options.App{
		Title:  "Badplaner",
		Width:  cfg.WindowWidth,
		Height: cfg.WindowHeight,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Error("wails exited", "err", err)
		os.Exit(1)
	}
}

// renderHeadless runs the same session and viewport pipeline as the desktop
// app, applies the layout script at layoutPath (if any), renders one more
// frame and writes it to out.
func renderHeadless(cfg *config.Config, layoutPath, out string) (string, error) {
	sched := frameloop.NewManual()
	app := NewApp(cfg, sched)
	if err := app.mount(); err != nil {
		return "", err
	}
	defer app.unmount()

	if layoutPath != "" {
		src, err := os.ReadFile(layoutPath)
		if err != nil {
			return "", fmt.Errorf("read layout: %w", err)
		}
		res := app.LoadLayout(string(src))
		if len(res.Errors) > 0 {
			e := res.Errors[0]
			return "", fmt.Errorf("%s: line %d: %s", layoutPath, e.Line, e.Message)
		}
	}
	sched.Step(time.Now())

	dataURL := app.Frame()
	if dataURL == "" {
		return "", fmt.Errorf("no frame rendered")
	}
	if err := snapshot.WriteFile(out, dataURL); err != nil {
		return "", err
	}
	return out, nil
}
