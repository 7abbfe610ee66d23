package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexiqai/interview-engine/internal/config"
	"github.com/lexiqai/interview-engine/internal/envelope"
)

func newSealCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "seal [json]",
		Short: "Seal a JSON payload into an envelope",
		Long: `Seal encrypts a JSON payload the way the engine does before sending it
to the reasoning service. The payload is read from the argument or stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFor(secret)
			if err != nil {
				return err
			}

			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if !json.Valid(payload) {
				return fmt.Errorf("payload is not valid JSON")
			}

			data, err := codec.Marshal(json.RawMessage(payload))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Envelope secret (defaults to ENVELOPE_SECRET)")
	return cmd
}

func newOpenCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "open [envelope]",
		Short: "Open an envelope and print its JSON payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFor(secret)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			var payload json.RawMessage
			if err := codec.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("failed to open envelope: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Envelope secret (defaults to ENVELOPE_SECRET)")
	return cmd
}

func codecFor(secret string) (*envelope.Codec, error) {
	if secret == "" {
		secret = config.GetEnv("ENVELOPE_SECRET", "")
	}
	codec, err := envelope.NewCodec(secret)
	if err != nil {
		return nil, fmt.Errorf("creating codec: %w", err)
	}
	return codec, nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(strings.TrimSpace(args[0])), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return []byte(strings.TrimSpace(string(data))), nil
}
