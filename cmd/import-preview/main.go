// Command import-preview classifies a supplier cost CSV against an
// organization's ingredients and units without writing anything.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/platecost-backend/internal/audit"
	"github.com/angelmondragon/platecost-backend/internal/costimport"
	"github.com/angelmondragon/platecost-backend/pkg/config"
	"github.com/angelmondragon/platecost-backend/pkg/db"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "import-preview", Output: os.Stderr})

	_ = godotenv.Load()

	orgFlag := flag.String("org", "", "organization id")
	fileFlag := flag.String("file", "", "path to the cost CSV")
	jsonFlag := flag.Bool("json", false, "print the full preview as JSON")
	flag.Parse()

	orgID, err := uuid.Parse(*orgFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "missing or invalid -org")
		os.Exit(2)
	}
	if *fileFlag == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "import-preview",
		Output:      os.Stderr,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"org_id": orgID.String(), "file": *fileFlag})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	location, err := cfg.Import.Location()
	requireResource(ctx, logg, "import timezone", err)

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "audit service", err)

	svc, err := costimport.NewService(costimport.ServiceParams{
		Repo:     costimport.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Audit:    auditService,
		Location: location,
		Logger:   logg,
	})
	requireResource(ctx, logg, "cost import service", err)

	file, err := os.Open(*fileFlag)
	requireResource(ctx, logg, "csv file", err)
	defer file.Close()

	preview, err := svc.Preview(ctx, orgID, file)
	if err != nil {
		logg.Error(ctx, "preview failed", err)
		os.Exit(1)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(preview); err != nil {
			logg.Error(ctx, "encode preview", err)
			os.Exit(1)
		}
		return
	}
	printPreview(os.Stdout, preview)
}

func printPreview(out io.Writer, preview *costimport.Preview) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tINGREDIENT\tQTY\tUOM\tCOST\tSTATUS\tCOST/BASE x10000")
	for _, row := range preview.Rows {
		perBase := "-"
		if row.ComputedCostPerBaseX10000 != nil {
			perBase = fmt.Sprintf("%d", *row.ComputedCostPerBaseX10000)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.RowNumber, row.IngredientName, row.PurchaseQty, row.PurchaseUom, row.TotalCost, row.Status, perBase)
	}
	_ = tw.Flush()

	s := preview.Summary
	fmt.Fprintf(out, "\ntotal=%d matched_ok=%d missing_ingredient=%d invalid_uom=%d invalid_number=%d\n",
		s.Total, s.MatchedOK, s.MissingIngredient, s.InvalidUom, s.InvalidNumber)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
