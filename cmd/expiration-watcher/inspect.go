package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/numtide/expiration-watcher/pkg/certinfo"
)

func newInspectCommand() *cobra.Command {
	var isPEM bool

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Decode a tls.crt value and print what the watcher extracts from it",
		Long: "inspect reads a base64 encoded tls.crt value, as printed by\n" +
			"  kubectl get secret NAME -o jsonpath='{.data.tls\\.crt}'\n" +
			"from a file or standard input and prints the decoded certificate as JSON.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			in := c.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			return inspect(in, c.OutOrStdout(), isPEM)
		},
	}
	cmd.Flags().BoolVar(&isPEM, "pem", false, "The input is PEM rather than base64 encoded PEM.")
	return cmd
}

func inspect(r io.Reader, w io.Writer, isPEM bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	decode := certinfo.Decode
	if isPEM {
		decode = certinfo.DecodePEM
	}
	cert, err := decode(data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cert)
}
