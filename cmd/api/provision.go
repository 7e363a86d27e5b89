package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jptrhost/pelican-dns/internal/models"
)

var provisionFile string

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Run the pipeline once over a webhook body",
	Long: `Reads a Pelican webhook body from --file ("-" for stdin), provisions it
exactly as the server would and prints the result as JSON. Exits 1 when the
run fails.`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVarP(&provisionFile, "file", "f", "-", "webhook body to provision (- for stdin)")
}

func runProvision(cmd *cobra.Command, args []string) error {
	body, err := readBody(cmd, provisionFile)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.cleanup()

	res := a.provision.HandleWebhook(cmd.Context(), body)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if res.State == models.StateFailed {
		return fmt.Errorf("provisioning failed: %s", res.ErrorKind)
	}
	return nil
}

func readBody(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read webhook body: %w", err)
	}
	return body, nil
}
