package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"reifydb/internal/cdcrpc"
)

type cdcStatusFlags struct {
	addr    string
	format  string
	timeout time.Duration
}

func cdcStatusCmd() *cobra.Command {
	flags := &cdcStatusFlags{}
	cmd := &cobra.Command{
		Use:   "cdc-status",
		Short: "Report a node's CDC shard watermarks",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCdcStatus(flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "127.0.0.1:8091", "gRPC address of the node's WatermarkService")
	cmd.Flags().StringVar(&flags.format, "format", "json", "output format: json or yaml")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 5*time.Second, "RPC timeout")

	return cmd
}

func runCdcStatus(flags *cdcStatusFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	watermarks, err := cdcrpc.FetchWatermarks(ctx, flags.addr)
	if err != nil {
		return fmt.Errorf("fetch watermarks: %w", err)
	}

	return printStruct(watermarks, flags.format)
}

func printStruct(s *structpb.Struct, format string) error {
	data := s.AsMap()
	switch format {
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	case "", "json":
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	return nil
}
