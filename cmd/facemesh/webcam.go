package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/esimov/facemesh/webcam"
	"github.com/spf13/cobra"
)

func webcamCmd() *cobra.Command {
	var (
		mesh meshFlags
		cfg  = webcam.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "webcam",
		Short: "Draw the face landmarks of a live camera stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := mesh.processor()
			if err != nil {
				return err
			}
			// Keep a single frame in flight, the camera does not wait for the graph.
			proc.Graph.FlowLimiter = true
			proc.MaxQueueSize = 1
			defer proc.Close()

			if err := proc.Start(); err != nil {
				return err
			}

			cfg.MarkerColor = proc.MarkerColor
			cfg.MarkerSize = int(proc.MarkerSize)
			cfg.BoxColor = proc.BoxColor
			cfg.DrawBoxes = proc.DrawBoxes

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return webcam.Run(ctx, proc, cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&cfg.Device, "device", cfg.Device, "Camera index or video file")
	fl.IntVar(&cfg.Width, "width", cfg.Width, "Capture width")
	fl.IntVar(&cfg.Height, "height", cfg.Height, "Capture height")
	fl.BoolVar(&cfg.Mirror, "mirror", cfg.Mirror, "Flip the frames horizontally")
	fl.StringVar(&cfg.Title, "title", cfg.Title, "Window title")
	fl.StringVar(&cfg.SnapshotDir, "snapshots", cfg.SnapshotDir, "Directory of the snapshots taken with the s key")
	fl.DurationVar(&cfg.StatsInterval, "stats", cfg.StatsInterval, "Interval of the latency reports")
	mesh.register(cmd)

	return cmd
}
