// Command simulate runs a demo scene with the sensors described by a
// suite config, publishing captured frames to the stream server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/simoptic/simoptic/internal/core/framebus"
	"github.com/simoptic/simoptic/internal/core/observability/log"
	"github.com/simoptic/simoptic/internal/core/render"
	"github.com/simoptic/simoptic/internal/core/scene"
	"github.com/simoptic/simoptic/internal/core/sensor"
	"github.com/simoptic/simoptic/internal/server"
)

func main() {
	configPath := flag.String("config", "", "suite config file (yaml)")
	flag.Parse()

	logger := log.New(log.LevelInfo)

	cfg, err := loadSuite(*configPath)
	if err != nil {
		logger.Fatal("config load failed", log.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := framebus.New(framebus.Config{SuppressDuplicates: cfg.SuppressDuplicates})
	render.RegisterMain(bus)

	var srv *server.Server
	if cfg.Listen != "" {
		scfg := server.DefaultConfig()
		scfg.ListenAddr = cfg.Listen
		if cfg.Transport != "" {
			scfg.Transport = cfg.Transport
		}
		srv, err = server.NewServer(scfg, bus, logger)
		if err != nil {
			logger.Fatal("stream server init failed", log.Error(err))
		}
		if err := srv.Start(ctx); err != nil {
			logger.Fatal("stream server start failed", log.Error(err))
		}
	}

	manager := sensor.NewManager(bus, logger)
	opts := sensor.Options{
		GetRenderer: render.Create,
		Logger:      logger,
		Interactive: os.Getenv("DISPLAY") != "",
	}
	for _, sc := range cfg.Sensors {
		cam, err := sensor.NewCamera(sc, opts)
		if err != nil {
			logger.Fatal("sensor init failed", log.String("sensor", sc.Name), log.Error(err))
		}
		if err := manager.Add(cam); err != nil {
			logger.Fatal("sensor registration failed", log.String("sensor", sc.Name), log.Error(err))
		}
	}

	world := demoScene()
	state := &scene.State{Scene: world}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		_ = manager.Run(ctx, cfg.TickInterval, func() *scene.State { return state })
	}()

	<-stopCh
	cancel()
	if srv != nil {
		if err := srv.Stop(); err != nil {
			fmt.Println("Error stopping stream server:", err)
		}
	}
	_ = bus.Close()
}

func loadSuite(path string) (*sensor.SuiteConfig, error) {
	if path == "" {
		cfg := sensor.DefaultSuiteConfig()
		cfg.Sensors = []sensor.Config{{
			Name:       "cam0",
			Position:   []scene.Vec3{{X: 0, Y: 100, Z: 400}},
			Resolution: [2]int{640, 480},
			Encoding:   sensor.EncodingRGBA,
		}}
		return &cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sensor.LoadYAML(f)
}

func demoScene() *scene.Scene {
	world := scene.NewScene("demo")
	world.Add(&scene.Node{
		Name: "ground", Visible: true,
		Center: scene.Vec3{Y: -100000}, Radius: 100000,
		Color: scene.Color{R: 0.4, G: 0.6, B: 0.3},
	})
	world.Add(&scene.Node{
		Name: "ball", Visible: true,
		Center: scene.Vec3{Y: 100, Z: -200}, Radius: 80,
		Color: scene.Color{R: 0.9, G: 0.3, B: 0.2},
	})
	return world
}
