package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Development token helpers",
	}
	cmd.AddCommand(newTokenMintCmd())
	return cmd
}

func newTokenMintCmd() *cobra.Command {
	var (
		subject  string
		audience string
		secret   string
		expires  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an HS256 token for development against a structural-auth engine",
		Long: "Mints a signed JWT for local testing. The engine in development " +
			"mode checks structure (expiry, audience) but not the signature, so " +
			"any secret works; the flag exists so minted tokens also pass a dev " +
			"identity provider sharing the secret.",
		Example: `  dbx-copilot token mint --subject analyst@corp.example --audience api://copilot
  DBX_COPILOT_SIGNING_SECRET=s3cret dbx-copilot token mint --subject analyst@corp.example`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signingSecret, err := resolveSecret(secret)
			if err != nil {
				return err
			}

			now := time.Now()
			claims := jwt.MapClaims{
				"sub": subject,
				"iat": now.Unix(),
				"exp": now.Add(expires).Unix(),
			}
			if audience != "" {
				claims["aud"] = audience
			}

			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (the caller identity)")
	cmd.Flags().StringVar(&audience, "audience", "", "Token audience claim")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (prompted for when omitted)")
	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

// resolveSecret takes the signing secret from the flag, the environment, or
// an interactive no-echo prompt, in that order. Prompting keeps the secret
// out of shell history.
func resolveSecret(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("DBX_COPILOT_SIGNING_SECRET"); v != "" {
		return v, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no signing secret: set --secret or DBX_COPILOT_SIGNING_SECRET")
	}
	fmt.Fprint(os.Stderr, "Signing secret: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("signing secret is empty")
	}
	return string(raw), nil
}
