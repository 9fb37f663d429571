package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lexiqai/meeting-recorder/internal/observability"
)

var healthTimeout time.Duration

// HealthReport is the outcome of a gRPC health check
type HealthReport struct {
	Target  string `json:"target" yaml:"target"`
	Status  string `json:"status" yaml:"status"`
	Latency string `json:"latency" yaml:"latency"`
}

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health [target]",
		Short: "Probe a running server's gRPC health service",
		Long: `Health asks the gRPC health service of a running meeting recorder for its
status. The target defaults to localhost on GRPC_HEALTH_PORT.

The command fails unless the server reports SERVING.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHealth,
	}
	cmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "Timeout for the health check")
	return cmd
}

func runHealth(cmd *cobra.Command, args []string) error {
	target := ""
	if len(args) == 1 {
		target = args[0]
	} else {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		target = "localhost:" + cfg.GRPCHealthPort
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
	defer cancel()

	start := time.Now()
	status, err := observability.CheckHealth(ctx, target)
	if err != nil {
		return err
	}
	report := HealthReport{
		Target:  target,
		Status:  status.String(),
		Latency: time.Since(start).Round(time.Millisecond).String(),
	}

	if err := render(cmd.OutOrStdout(), outputFormat, report, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s: %s (%s)\n", report.Target, report.Status, report.Latency)
		return err
	}); err != nil {
		return err
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s", target, report.Status)
	}
	return nil
}
