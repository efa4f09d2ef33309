package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

type queryFlags struct {
	addr    string
	token   string
	timeout time.Duration
}

type queryRequestBody struct {
	Statements []string `json:"statements"`
}

type queryResponseBody struct {
	Frames []struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	} `json:"frames"`
}

func queryCmd() *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run one pipeline statement against a node's /v1/query endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runQuery(args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "http://127.0.0.1:8090", "base URL of the node's HTTP admin surface")
	cmd.Flags().StringVar(&flags.token, "token", "", "bearer token presented as the query identity")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 10*time.Second, "request timeout")

	return cmd
}

func runQuery(statement string, flags *queryFlags) error {
	body, err := json.Marshal(queryRequestBody{Statements: []string{statement}})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, flags.addr+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if flags.token != "" {
		req.Header.Set("Authorization", "Bearer "+flags.token)
	}

	client := &http.Client{Timeout: flags.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("query request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed queryResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	for _, frame := range parsed.Frames {
		fmt.Println(frame.Columns)
		for _, row := range frame.Rows {
			fmt.Println(row)
		}
	}
	return nil
}
