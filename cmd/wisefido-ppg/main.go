package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wisefido-ppg/internal/config"
	logpkg "wisefido-ppg/internal/logger"
	"wisefido-ppg/internal/service"
	"wisefido-ppg/internal/simulator"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.New(cfg.Log.Level, cfg.Log.Format, "wisefido-ppg")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting wisefido-ppg service",
		zap.String("version", "1.0.0"),
		zap.Float64("sample_rate", cfg.Pipeline.SampleRate),
		zap.Bool("publish_enabled", cfg.Publish.Enabled),
	)

	// 创建服务
	vitalsService, err := service.NewVitalsService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create vitals service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := vitalsService.Start(ctx); err != nil {
		logger.Fatal("Failed to start vitals service", zap.Error(err))
	}

	// 演示帧源：真实部署中由相机采集模块调用 Submit
	go runSimulator(ctx, vitalsService, cfg, logger)

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	if err := vitalsService.Stop(context.Background()); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}

// runSimulator 以相机帧率产生合成 PPG 帧
func runSimulator(ctx context.Context, svc *service.VitalsService, cfg *config.Config, logger *zap.Logger) {
	sim := simulator.New(cfg.Pipeline.SampleRate, 72, 0.02)
	interval := time.Duration(float64(time.Second) / cfg.Pipeline.SampleRate)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reportEvery := int(cfg.Pipeline.SampleRate) * 5
	frameN := 0

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			svc.Submit(simulator.Frame(sim.Next(), 320, 240, now))
			frameN++
			if frameN%reportEvery == 0 {
				rec := svc.LastRecord()
				logger.Info("Vitals snapshot",
					zap.Float64("bpm", rec.BPM),
					zap.Float64("spo2", rec.SpO2),
					zap.Float64("systolic", rec.Systolic),
					zap.Float64("diastolic", rec.Diastolic),
					zap.Float64("confidence", rec.Confidence),
					zap.Int64("dropped", svc.Dropped()),
				)
			}
		}
	}
}
