package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/haatos/fisherman/internal/security"
)

var signSecret string

var signCmd = &cobra.Command{
	Use:   "sign <payload>",
	Short: "Print the X-Hub-Signature-256 value of a payload file",
	Long: `Print the X-Hub-Signature-256 value of a payload file. Use - to read the
payload from stdin. The secret is read from the terminal when --secret is
not given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		secret := []byte(signSecret)
		if len(secret) == 0 {
			if secret, err = promptSecret(cmd.ErrOrStderr()); err != nil {
				return err
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), security.SignatureHeader(secret, payload))
		return nil
	},
}

func init() {
	signCmd.Flags().StringVarP(&signSecret, "secret", "s", "", "webhook secret")
	rootCmd.AddCommand(signCmd)
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func promptSecret(prompt io.Writer) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("no --secret given and stdin is not a terminal")
	}
	fmt.Fprint(prompt, "Secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, fmt.Errorf("err reading secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}
	return secret, nil
}
