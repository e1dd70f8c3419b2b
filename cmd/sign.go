package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/extract-relay/internal/signing"
)

var (
	signBody      string
	signTimestamp string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print the signature headers for a request body",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sign"); err != nil {
			return err
		}
		var (
			body []byte
			err  error
		)
		if signBody != "" {
			body, err = os.ReadFile(signBody)
			if err != nil {
				return eris.Wrapf(err, "read %s", signBody)
			}
		}
		ts := signTimestamp
		if ts == "" {
			ts = strconv.FormatInt(time.Now().Unix(), 10)
		}
		return printSignature(cmd.OutOrStdout(), cfg.Security.Secret, ts, body)
	},
}

// printSignature writes header lines for body signed at ts.
func printSignature(w io.Writer, secret, ts string, body []byte) error {
	if _, err := strconv.ParseInt(ts, 10, 64); err != nil {
		return eris.Errorf("timestamp %q is not unix seconds", ts)
	}
	_, err := fmt.Fprintf(w, "%s: %s\n%s: %s\n",
		signing.HeaderTimestamp, ts,
		signing.HeaderSignature, signing.Compute([]byte(secret), ts, body),
	)
	return err
}

func init() {
	signCmd.Flags().StringVar(&signBody, "body", "", "file holding the exact request body (empty body if omitted)")
	signCmd.Flags().StringVar(&signTimestamp, "timestamp", "", "unix timestamp to sign with (default now)")
	rootCmd.AddCommand(signCmd)
}
