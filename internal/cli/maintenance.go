package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-helpdesk-backend/internal/permission"
	"github.com/tbourn/go-helpdesk-backend/internal/seed"
	"github.com/tbourn/go-helpdesk-backend/internal/snapshot"
)

func newMigrateCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and default role policies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if _, err := permission.NewEnforcer(db, log.Logger); err != nil {
				return fmt.Errorf("policies: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", cfg.DBPath)
			return nil
		},
	}
}

func newSeedCommand(g *globalFlags) *cobra.Command {
	var (
		file  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo users, reports and FAQs",
		Long:  "Loads the embedded data set, or a YAML file given with --file. An already populated database is left alone unless --force is set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			f, err := seed.Default()
			if file != "" {
				var b []byte
				if b, err = os.ReadFile(file); err != nil {
					return err
				}
				f, err = seed.Parse(b)
			}
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			res, err := seed.Apply(cmd.Context(), db, f, seed.Options{BcryptCost: cfg.Auth.BcryptCost, Force: force})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintln(out, "database already has users; nothing seeded (use --force)")
				return nil
			}
			fmt.Fprintf(out, "seeded %d users, %d reports, %d faqs\n", res.Users, res.Reports, res.FAQs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML file (default: embedded data set)")
	cmd.Flags().BoolVar(&force, "force", false, "seed even when users exist")
	return cmd
}

func newExportCommand(g *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole helpdesk state as a JSON snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			blob, err := snapshot.Export(cmd.Context(), db)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				fh, err := os.Create(out)
				if err != nil {
					return err
				}
				defer fh.Close()
				w = fh
			}
			return snapshot.Write(w, blob)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func newImportCommand(g *globalFlags) *cobra.Command {
	var (
		in      string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON snapshot",
		Long:  "Loads a snapshot written by export. Without --replace, rows whose ids already exist fail the whole import.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if in != "" && in != "-" {
				fh, err := os.Open(in)
				if err != nil {
					return err
				}
				defer fh.Close()
				r = fh
			}
			blob, err := snapshot.Read(r)
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			c, err := snapshot.Import(cmd.Context(), db, blob, snapshot.ImportOptions{BcryptCost: cfg.Auth.BcryptCost, Replace: replace})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d users, %d reports, %d notifications, %d faqs, %d chat messages\n",
				c.Users, c.Reports, c.Notifications, c.FAQs, c.ChatMessages)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "snapshot file, - for stdin")
	cmd.Flags().BoolVar(&replace, "replace", false, "wipe existing data first")
	return cmd
}
