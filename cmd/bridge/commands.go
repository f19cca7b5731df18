package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// cliActor é o ator gravado na auditoria para comandos rodados no terminal.
const cliActor = "cli"

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reverte uma vez as assinaturas premium expiradas (para rodar no cron)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			svc, repo, err := buildService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := svc.Sweep(cmd.Context(), cliActor)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newExtendCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "extend <user-id>",
		Short: "Define a expiração premium de um usuário como agora + dias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			svc, repo, err := buildService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := svc.Extend(cmd.Context(), args[0], days, cliActor)
			if err != nil {
				return err
			}
			if res.RowsAffected == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "aviso: usuário sem linha no ledger, nada foi gravado")
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 30, "quantidade de dias a partir de agora")
	return cmd
}

func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Desliga o premium de um usuário",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			svc, repo, err := buildService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := svc.Revoke(cmd.Context(), args[0], cliActor)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

// newHashPasswordCmd imprime um hash bcrypt para admin.password_hash. A senha vem
// do primeiro argumento ou, na falta dele, do stdin.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Imprime um hash bcrypt para admin.password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

