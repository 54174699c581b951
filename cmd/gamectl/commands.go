package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/db"
	"github.com/toprakhenaz/sword-combat/internal/ledger"
	"github.com/toprakhenaz/sword-combat/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd, createUserCmd, resetDailyCmd, adminTokenCmd, exportLedgerCmd, hashPasswordCmd)

	migrateCmd.Flags().Bool("dry-run", false, "List pending migrations without applying them")

	createUserCmd.Flags().Int64("tg-id", 0, "Telegram user id")
	createUserCmd.Flags().String("username", "", "Telegram username")
	createUserCmd.Flags().String("name", "", "First name")
	_ = createUserCmd.MarkFlagRequired("tg-id")

	adminTokenCmd.Flags().Int64("tg-id", 0, "Operator Telegram id recorded in the audit log")
	adminTokenCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to JWT_TTL)")

	exportLedgerCmd.Flags().StringP("out", "o", "ledger.jsonl.zst", "Output file")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			pending, err := db.Pending(cmd.Context(), e.pool)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "up to date")
			}
			for _, name := range pending {
				fmt.Fprintln(cmd.OutOrStdout(), "pending:", name)
			}
			return nil
		}

		applied, err := db.Migrate(cmd.Context(), e.pool)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
		for _, name := range applied {
			fmt.Fprintln(cmd.OutOrStdout(), "  ", name)
		}
		return nil
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Register a player with starting values",
	RunE: func(cmd *cobra.Command, args []string) error {
		tgID, _ := cmd.Flags().GetInt64("tg-id")
		username, _ := cmd.Flags().GetString("username")
		name, _ := cmd.Flags().GetString("name")
		if tgID <= 0 {
			return fmt.Errorf("--tg-id must be positive")
		}

		e, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		u, err := e.admin.CreateUser(cmd.Context(), 0, tgID, username, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user id=%d tg_id=%d coins=%d\n", u.ID, u.TgID, u.Coins)
		return nil
	},
}

var resetDailyCmd = &cobra.Command{
	Use:   "reset-daily",
	Short: "Refill daily rockets and full energy for every player",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		n, err := e.admin.ResetDaily(cmd.Context(), 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %d profile(s)\n", n)
		return nil
	},
}

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Issue an operator JWT",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tgID, _ := cmd.Flags().GetInt64("tg-id")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			ttl = cfg.JWTTTL
		}

		auth := service.NewAuthService(service.AuthConfig{JWTSecret: cfg.JWTSecret, TTL: ttl}, nil, nil)
		token, err := auth.IssueToken(0, tgID, service.RoleAdmin)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", time.Now().Add(ttl).Format(time.RFC3339))
		return nil
	},
}

var exportLedgerCmd = &cobra.Command{
	Use:   "export-ledger",
	Short: "Write the transaction log as zstd-compressed JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		e, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		f, err := os.Create(out)
		if err != nil {
			return err
		}
		n, err := ledger.Export(cmd.Context(), e.store.Transactions(), f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("export ledger: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d transaction(s) to %s\n", n, out)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long:  "Hashes the argument, or one line read from stdin when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pw string
		if len(args) == 1 {
			pw = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			pw = strings.TrimRight(line, "\r\n")
		}
		if pw == "" {
			return fmt.Errorf("empty password")
		}
		hash, err := service.HashPassword(pw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
