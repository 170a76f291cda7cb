package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/miabis/miabis/internal/config"
	"github.com/miabis/miabis/internal/domain/miabis"
	"github.com/miabis/miabis/internal/domain/terminology"
	"github.com/miabis/miabis/internal/platform/db"
	"github.com/miabis/miabis/internal/platform/fhirstore"
)

func main() {
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "miabis-sync",
		Short:        "Maintain MIABIS biobank records on a FHIR server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(resolveCmd(open))
	rootCmd.AddCommand(identifierCmd(open))
	rootCmd.AddCommand(showCmd(open))
	rootCmd.AddCommand(deleteCmd(open))
	rootCmd.AddCommand(collectionCmd(open))
	rootCmd.AddCommand(conditionCmd(open))
	rootCmd.AddCommand(networkCmd(open))
	rootCmd.AddCommand(icd10Cmd(open))
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd(open))
	return rootCmd
}

type identified interface {
	Identifier() string
}

// entityKind ties a command-line entity name to its FHIR resource type and
// the service operations acting on it.
type entityKind struct {
	resourceType string
	build        func(s *miabis.Service, ctx context.Context, fhirID string) (identified, error)
	remove       func(s *miabis.Service, ctx context.Context, fhirID string) error
}

var entityKinds = map[string]entityKind{
	"donor": {miabis.ResourcePatient,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) { return s.BuildDonor(ctx, id) },
		(*miabis.Service).DeleteDonor},
	"sample": {miabis.ResourceSpecimen,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) { return s.BuildSample(ctx, id) },
		(*miabis.Service).DeleteSample},
	"observation": {miabis.ResourceObservation,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) { return s.BuildObservation(ctx, id) },
		(*miabis.Service).DeleteObservation},
	"diagnosis-report": {miabis.ResourceDiagnosticReport,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) {
			return s.BuildDiagnosisReport(ctx, id)
		},
		(*miabis.Service).DeleteDiagnosisReport},
	"condition": {miabis.ResourceCondition,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) { return s.BuildCondition(ctx, id) },
		(*miabis.Service).DeleteCondition},
	"biobank": {miabis.ResourceOrganization,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) { return s.BuildBiobank(ctx, id) },
		(*miabis.Service).DeleteBiobank},
	"collection-organization": {miabis.ResourceOrganization,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) {
			return s.BuildCollectionOrganization(ctx, id)
		},
		(*miabis.Service).DeleteCollectionOrganization},
	"collection": {miabis.ResourceGroup,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) { return s.BuildCollection(ctx, id) },
		(*miabis.Service).DeleteCollection},
	"network-organization": {miabis.ResourceOrganization,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) {
			return s.BuildNetworkOrganization(ctx, id)
		},
		(*miabis.Service).DeleteNetworkOrganization},
	"network": {miabis.ResourceGroup,
		func(s *miabis.Service, ctx context.Context, id string) (identified, error) { return s.BuildNetwork(ctx, id) },
		(*miabis.Service).DeleteNetwork},
}

func lookupKind(name string) (entityKind, error) {
	k, ok := entityKinds[name]
	if !ok {
		return entityKind{}, fmt.Errorf("unknown entity %q", name)
	}
	return k, nil
}

// withApp opens the app for the duration of one command.
func withApp(open opener, run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		err = run(ctx, a, cmd, args)
		a.pushMetrics(ctx)
		return err
	}
}

func resolveCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <entity> <identifier>",
		Short: "Print the FHIR id of the resource with an organizational identifier",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			kind, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			id, found, err := a.svc.GetFHIRID(ctx, kind.resourceType, args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no %s with identifier %q", args[0], args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
}

func identifierCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "identifier <entity> <fhir-id>",
		Short: "Print the organizational identifier of a stored resource",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			kind, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			ident, err := a.svc.GetIdentifierByFHIRID(ctx, kind.resourceType, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ident)
			return nil
		}),
	}
}

func showCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entity> <fhir-id>",
		Short: "Validate a stored resource as a MIABIS entity and print it",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			kind, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			entity, err := kind.build(a.svc, ctx, args[1])
			if err != nil {
				return err
			}
			res, err := a.svc.ReadResource(ctx, kind.resourceType, args[1])
			if err != nil {
				return err
			}
			a.logger.Debug().Str("identifier", entity.Identifier()).Msg("entity is valid")
			return writeJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func deleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity> <fhir-id>...",
		Short: "Delete resources together with everything that depends on them",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			kind, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			for _, id := range args[1:] {
				if err := kind.remove(a.svc, ctx, id); err != nil {
					return err
				}
				a.logger.Info().Str("entity", args[0]).Str("fhir_id", id).Msg("deleted")
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", kind.resourceType, id)
			}
			return nil
		}),
	}
}

func collectionCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Maintain collection membership and aggregates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "recompute <collection-fhir-id>",
		Short: "Recompute the aggregate values of a collection from its samples",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.svc.UpdateCollectionValues(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recomputed %s/%s\n", miabis.ResourceGroup, args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-samples <collection-fhir-id> <sample-fhir-id>...",
		Short: "Add stored samples to a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.svc.AddAlreadyPresentSamplesToExistingCollection(ctx, args[1:], args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d sample(s) to %s/%s\n", len(args)-1, miabis.ResourceGroup, args[0])
			return nil
		}),
	})

	return cmd
}

func conditionCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "condition",
		Short: "Maintain conditions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add-reports <condition-fhir-id> <report-fhir-id>...",
		Short: "Link stored diagnosis reports to a condition",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.svc.AddDiagnosisReportsToCondition(ctx, args[0], args[1:]...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked %d report(s) to %s/%s\n", len(args)-1, miabis.ResourceCondition, args[0])
			return nil
		}),
	})
	return cmd
}

func networkCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Maintain network membership",
	}

	addCmd := &cobra.Command{
		Use:   "add-members <network-fhir-id>",
		Short: "Add stored collections and biobanks to a network",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			collections, _ := cmd.Flags().GetStringSlice("collection")
			biobanks, _ := cmd.Flags().GetStringSlice("biobank")
			if len(collections) == 0 && len(biobanks) == 0 {
				return errors.New("at least one --collection or --biobank is required")
			}
			if err := a.svc.AddMembersToNetwork(ctx, args[0], collections, biobanks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d collection(s) and %d biobank(s) to %s/%s\n",
				len(collections), len(biobanks), miabis.ResourceGroup, args[0])
			return nil
		}),
	}
	addCmd.Flags().StringSlice("collection", nil, "FHIR id of a member collection")
	addCmd.Flags().StringSlice("biobank", nil, "FHIR id of a member biobank")
	cmd.AddCommand(addCmd)

	return cmd
}

func icd10Cmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "icd10 <code>...",
		Short: "Look ICD-10 codes up in the code table",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %-8s %-7s %s\n", "CODE", "CATEGORY", "CHAPTER", "TITLE")
			for _, arg := range args {
				code, err := terminology.Resolve(ctx, a.codes, arg)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-8s %-8s %-7s %s\n", code.Code, code.Category, code.Chapter, code.Title)
			}
			return nil
		}),
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the tables of the postgres store",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations and load the ICD-10 code table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, schema, err := openMigrationPool(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := fhirstore.Migrate(ctx, pool, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)

			added, err := terminology.NewICD10RepoPG(pool).Load(ctx, terminology.WHO())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d ICD-10 code(s).\n", added)
			return nil
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, schema, err := openMigrationPool(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := fhirstore.NewMigrator(pool, schema).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			writeMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrationPool(ctx context.Context, cmd *cobra.Command) (*pgxpool.Pool, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	if cfg.DatabaseURL == "" {
		return nil, "", errors.New("DATABASE_URL is required for migrations")
	}
	schema, _ := cmd.Flags().GetString("schema")
	if schema == "" {
		schema = cfg.DBSchema
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		Schema:   schema,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, "", err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrations for schema: %s\n", schema)
	return pool, schema, nil
}

func writeMigrationStatus(out io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func serveCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve store metrics and health until interrupted",
		RunE: withApp(open, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}

			e := newOpsServer(a)
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Fatal().Err(err).Msg("server error")
				}
			}()
			a.logger.Info().Str("addr", addr).Str("backend", a.cfg.StoreBackend).Msg("serving metrics")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			a.logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			a.logger.Info().Msg("server stopped")
			return nil
		}),
	}
	cmd.Flags().String("addr", "", "Listen address (defaults to METRICS_ADDR)")
	return cmd
}

// newOpsServer exposes /metrics and /health for the app's store.
func newOpsServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))
	e.GET("/health", a.health)
	return e
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
