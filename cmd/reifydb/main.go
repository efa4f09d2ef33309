// Command reifydb is the cobra-based CLI entry point: `serve` runs a
// node, `cdc-status` polls a running node's CDC shard watermarks, and
// `query` issues pipeline statements against a running node's §6 HTTP
// surface. Grounded on Pieczasz-smf's cmd/smf/main.go root-command
// layout (a bare rootCmd plus one *cobra.Command per subcommand, each
// with its own flag struct), adapted from a migration tool's
// diff/migrate/apply verbs to a database node's serve/cdc-status/query
// verbs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reifydb",
		Short: "Transactional columnar database node",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cdcStatusCmd())
	rootCmd.AddCommand(queryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
