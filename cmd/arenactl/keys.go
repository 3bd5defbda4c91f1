package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/GoPolymarket/arena/internal/signer"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := signer.GenerateEd25519Signer()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"identity": s.Identity().String(),
				"keypair":  s.KeypairBase58(),
			})
		},
	}
}

type signFlags struct {
	key    string
	method string
	path   string
	body   string
}

func (f *signFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.key, "key", os.Getenv("ARENA_KEY"), "signing key: base58 ed25519 keypair or 0x-prefixed secp256k1 hex (env ARENA_KEY)")
	cmd.Flags().StringVarP(&f.method, "method", "X", "POST", "HTTP method")
	cmd.Flags().StringVar(&f.path, "path", "", "request path including query, e.g. /v1/agents")
	cmd.Flags().StringVarP(&f.body, "data", "d", "", "request body; @file reads from a file, - from stdin")
}

func (f *signFlags) load(stdin io.Reader) (signer.Signer, []byte, error) {
	if f.key == "" {
		return nil, nil, fmt.Errorf("--key is required")
	}
	if f.path == "" {
		return nil, nil, fmt.Errorf("--path is required")
	}
	s, err := loadSigner(f.key)
	if err != nil {
		return nil, nil, err
	}
	body, err := readBody(f.body, stdin)
	if err != nil {
		return nil, nil, err
	}
	return s, body, nil
}

func newSignCmd() *cobra.Command {
	var flags signFlags
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the authentication headers for a request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, body, err := flags.load(cmd.InOrStdin())
			if err != nil {
				return err
			}
			headers, err := signer.SignRequest(s, flags.method, flags.path, body, time.Now())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), headers)
		},
	}
	flags.register(cmd)
	return cmd
}

func loadSigner(key string) (signer.Signer, error) {
	if strings.HasPrefix(key, "0x") || strings.HasPrefix(key, "0X") {
		return signer.NewEVMSigner(key)
	}
	return signer.NewEd25519SignerFromBase58(key)
}

func readBody(src string, stdin io.Reader) ([]byte, error) {
	switch {
	case src == "":
		return nil, nil
	case src == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(src, "@"):
		return os.ReadFile(strings.TrimPrefix(src, "@"))
	default:
		return []byte(src), nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
