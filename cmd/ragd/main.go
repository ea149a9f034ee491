package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sand004/enterprise-rag-system/internal/cli"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "ragd",
		Short:   "Hybrid retrieval and ranking daemon",
		Long:    "ragd serves hybrid vector and keyword search with fusion, graph expansion, and reranking",
		Version: version,
	}

	rootCmd.AddCommand(cli.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
