package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/jwt"
)

type codecFlags struct {
	secret   string
	validity time.Duration
	issuer   string
	audience string
}

func (cf *codecFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cf.secret, "secret", "", "base64 HMAC signing secret")
	cmd.Flags().DurationVar(&cf.validity, "validity", 24*time.Hour, "token validity")
	cmd.Flags().StringVar(&cf.issuer, "issuer", "", "iss claim")
	cmd.Flags().StringVar(&cf.audience, "audience", "", "aud claim")
}

func (cf *codecFlags) codec() (*jwt.Codec, error) {
	if cf.secret == "" {
		return nil, errors.New("--secret is required")
	}
	secret, err := jwt.DecodeSecret(cf.secret)
	if err != nil {
		return nil, err
	}
	return jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		Secret:        secret,
		Validity:      cf.validity,
		Issuer:        cf.issuer,
		Audience:      cf.audience,
	})
}

type tokenView struct {
	Status    string         `json:"status,omitempty"`
	Token     string         `json:"token,omitempty"`
	TokenID   string         `json:"jti,omitempty"`
	Subject   string         `json:"sub,omitempty"`
	IssuedAt  *time.Time     `json:"iat,omitempty"`
	ExpiresAt *time.Time     `json:"exp,omitempty"`
	Claims    map[string]any `json:"claims,omitempty"`
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect tokens offline",
	}
	cmd.AddCommand(newTokenIssueCmd(), newTokenVerifyCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	cf := &codecFlags{}
	var roles []string
	cmd := &cobra.Command{
		Use:   "issue <identity>",
		Short: "Sign a token for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := cf.codec()
			if err != nil {
				return err
			}
			var claims map[string]any
			if len(roles) > 0 {
				claims = map[string]any{"roles": roles}
			}
			tok, err := codec.Issue(args[0], claims)
			if err != nil {
				return err
			}
			return printJSON(cmd, tokenView{
				Token:     tok.Encoded,
				TokenID:   tok.ID,
				Subject:   tok.Subject,
				IssuedAt:  &tok.IssuedAt,
				ExpiresAt: &tok.ExpiresAt,
			})
		},
	}
	cf.register(cmd)
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "roles claim")
	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	cf := &codecFlags{}
	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := cf.codec()
			if err != nil {
				return err
			}
			out := codec.Classify(args[0])
			view := tokenView{Status: out.Status.String()}
			if out.Token != nil {
				view.TokenID = out.Token.TokenID
				view.Subject = out.Token.Subject
				view.IssuedAt = &out.Token.IssuedAt
				view.ExpiresAt = &out.Token.ExpiresAt
				view.Claims = out.Token.Claims
			}
			if err := printJSON(cmd, view); err != nil {
				return err
			}
			if out.Status != jwt.StatusValid {
				return fmt.Errorf("token is %s", out.Status)
			}
			return nil
		},
	}
	cf.register(cmd)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
