package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/semesterplan/internal/auth"
	"github.com/example/semesterplan/internal/config"
	"github.com/example/semesterplan/internal/ics"
	"github.com/example/semesterplan/internal/importer"
	"github.com/example/semesterplan/internal/logger"
	"github.com/example/semesterplan/internal/reservations"
)

func newImportCmd() *cobra.Command {
	var path, username string
	var dryRun bool

	c := &cobra.Command{
		Use:   "import",
		Short: "Import an ICS file on behalf of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			up := importer.Upload{Filename: filepath.Base(path), Body: body}

			if dryRun {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				p, err := newParser(cfg, logger.Nop())
				if err != nil {
					return err
				}
				g, err := (&importer.Service{Parser: p}).DryRun(up)
				if err != nil {
					return err
				}
				return printGroup(cmd.OutOrStdout(), g)
			}

			if username == "" {
				return fmt.Errorf("--username is required unless --dry-run is set")
			}

			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := auth.NewStore(a.db, a.cfg.CookieHashKey, a.cfg.CookieBlockKey).UserByUsername(ctx, username)
			if err != nil {
				return fmt.Errorf("user %q: %w", username, err)
			}
			svc, err := a.importService(nil)
			if err != nil {
				return err
			}
			sum, err := svc.Import(ctx, actor, up)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}

	c.Flags().StringVar(&path, "file", "", "ICS file to import")
	c.Flags().StringVar(&username, "username", "", "user the import runs as")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "parse and group only, do not touch the database")
	_ = c.MarkFlagRequired("file")
	return c
}

func printSummary(w io.Writer, sum importer.Summary) {
	fmt.Fprintf(w, "updated %d reservation(s) from %d event(s), %d skipped\n", sum.Updated, sum.Events, sum.Skipped)
	if len(sum.Failed) > 0 {
		fmt.Fprintf(w, "unresolved: %s\n", strings.Join(sum.Failed, ", "))
	}
}

func printGroup(w io.Writer, g ics.ImportGroup) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTART\tEND")
	for _, grp := range g.Groups {
		if len(grp.Intervals) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\n", grp.Key)
		}
		for _, iv := range grp.Intervals {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", grp.Key, iv.Start.Format("2006-01-02 15:04"), iv.End.Format("2006-01-02 15:04"))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d event(s), %d group(s), %d skipped\n", g.Events, len(g.Groups), len(g.Skipped))
	for _, s := range g.Skipped {
		fmt.Fprintf(w, "  skipped event %d (%s): %s\n", s.Index, s.Key, s.Reason)
	}
	return nil
}

func newImportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Inspect past imports",
	}
	cmd.AddCommand(newImportsListCmd())
	return cmd
}

func newImportsListCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "list",
		Short: "List recent import runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := reservations.NewRepo(a.db).ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tUSER\tFILE\tEVENTS\tUPDATED\tUNRESOLVED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.Username, r.Filename, r.Events, r.Updated, strings.Join(r.Failed, ","))
			}
			return tw.Flush()
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return c
}
