package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/password"
)

func newHashPasswordCmd() *cobra.Command {
	var (
		algo string
		cost int
	)
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash a password for a users file or Redis directory",
		Long:  "Hash a password. Without an argument the password is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, args)
			if err != nil {
				return err
			}

			var h password.Hasher
			switch strings.ToLower(algo) {
			case "argon2", "argon2id":
				h, err = password.NewArgon2(password.DefaultArgon2Config())
			case "bcrypt":
				h, err = password.NewBcrypt(cost)
			default:
				return fmt.Errorf("unknown algorithm %q", algo)
			}
			if err != nil {
				return err
			}

			hash, err := h.Hash(pw)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().StringVar(&algo, "algo", "argon2id", "hash algorithm (argon2id or bcrypt)")
	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (0 = library default)")
	return cmd
}

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("empty password")
	}
	return line, nil
}
