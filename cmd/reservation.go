package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/semesterplan/internal/auth"
	"github.com/example/semesterplan/internal/domain/reservation"
	"github.com/example/semesterplan/internal/reservations"
)

func newReservationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservation",
		Short: "Manage reservations",
	}
	cmd.AddCommand(newReservationCreateCmd())
	cmd.AddCommand(newReservationListCmd())
	return cmd
}

func newReservationCreateCmd() *cobra.Command {
	var id, name, owner string

	c := &cobra.Command{
		Use:   "create",
		Short: "Create an empty reservation that calendar imports can refer to",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := auth.NewStore(a.db, a.cfg.CookieHashKey, a.cfg.CookieBlockKey).UserByUsername(ctx, owner)
			if err != nil {
				return fmt.Errorf("owner %q: %w", owner, err)
			}
			res := reservation.Reservation{ID: reservation.Ref(id), Name: name, OwnerID: u.ID}
			if err := reservations.NewRepo(a.db).Create(ctx, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created reservation %s (%s) owned by %s\n", id, name, u.Username)
			return nil
		},
	}

	c.Flags().StringVar(&id, "id", "", "reservation id as exported in the calendar")
	c.Flags().StringVar(&name, "name", "", "display name")
	c.Flags().StringVar(&owner, "owner", "", "username of the owner")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("owner")
	return c
}

func newReservationListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := reservations.NewRepo(a.db).List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tOWNER\tAPPOINTMENTS\tUPDATED")
			for _, r := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.Name, r.OwnerID, r.AppointmentCount, r.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}
