package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/arena/internal/signer"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	var (
		flags  signFlags
		server string
		idem   string
	)
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Sign and send a request, printing the response body",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, body, err := flags.load(cmd.InOrStdin())
			if err != nil {
				return err
			}
			method := strings.ToUpper(flags.method)
			headers, err := signer.SignRequest(s, method, flags.path, body, time.Now())
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimRight(server, "/")+flags.path, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			if idem != "" {
				req.Header.Set("X-Idempotency-Key", idem)
			}

			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return err
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "arena base URL")
	cmd.Flags().StringVar(&idem, "idempotency-key", "", "optional X-Idempotency-Key")
	return cmd
}
