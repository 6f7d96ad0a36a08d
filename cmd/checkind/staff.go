package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/checkin-core/internal/config"
	"github.com/iliyamo/checkin-core/internal/database"
	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Manage staff users",
}

var (
	staffRole     string
	staffCampus   int64
	staffPassword string
)

var staffAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a staff user or kiosk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := strings.ToUpper(staffRole)
		switch role {
		case model.RoleAdmin, model.RoleStaff, model.RoleKiosk:
		default:
			return fmt.Errorf("unknown role %q", staffRole)
		}
		if staffPassword == "" {
			return fmt.Errorf("--password is required")
		}
		var campus *int64
		if staffCampus > 0 {
			campus = &staffCampus
		}
		if role != model.RoleAdmin && campus == nil {
			return fmt.Errorf("--campus is required for %s", role)
		}

		cfg := config.Load()
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := repository.NewStaffRepo(db).Create(cmd.Context(), args[0], staffPassword, role, campus, cfg.BcryptCost)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", strings.ToLower(role), args[0], id)
		return nil
	},
}

func init() {
	staffAddCmd.Flags().StringVar(&staffRole, "role", model.RoleStaff, "ADMIN, STAFF or KIOSK")
	staffAddCmd.Flags().Int64Var(&staffCampus, "campus", 0, "campus id (required unless ADMIN)")
	staffAddCmd.Flags().StringVar(&staffPassword, "password", "", "initial password")
	staffCmd.AddCommand(staffAddCmd)
}
