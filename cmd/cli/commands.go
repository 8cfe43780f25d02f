package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-ingest/internal/app"
	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/gcsuploader"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

func (c *cli) processCmd() *cobra.Command {
	var (
		bank   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Process a local file and print its transactions without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			a, err := app.NewLocal(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()

			fileName := filepath.Base(path)
			res, err := a.Processor.ProcessFile(ctx, domain.RawDocument{
				Content:  content,
				MIMEType: pipeline.MIMETypeFor(fileName),
				FileName: fileName,
			}, bank)
			if err != nil {
				return fmt.Errorf("%s: %w", docerrors.UserMessage(err), err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&bank, "bank", "", "Bank strategy (boursobank, standard) or \"receipt\"")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func (c *cli) ingestCmd() *cobra.Command {
	var gcsURI, bank, userID string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse and ingest a document stored in GCS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			a, err := c.cloud(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			c.log.Info().Str("gcs_uri", gcsURI).Msg("Starting ingestion")
			res, err := a.Ingestor.Ingest(ctx, pipeline.IngestRequest{
				GCSURI:   gcsURI,
				BankHint: bank,
				UserID:   userOr(userID, c.cfg.UserID),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested document %s (run %s): %d transactions\n",
				res.DocumentID, res.ParsingRunID, len(res.Result.Transactions))
			return nil
		},
	}
	cmd.Flags().StringVar(&gcsURI, "gcs-uri", "", "GCS URI of the document")
	cmd.Flags().StringVar(&bank, "bank", "", "Bank strategy or \"receipt\"")
	cmd.Flags().StringVar(&userID, "user-id", "", "Owner of the ingested records")
	_ = cmd.MarkFlagRequired("gcs-uri")
	return cmd
}

func (c *cli) uploadCmd() *cobra.Command {
	var filePath, objectName string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a local file to the configured GCS bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			if c.cfg.Bucket == "" {
				return fmt.Errorf("GCS_BUCKET is not set")
			}
			storage, err := gcsuploader.NewStorage(ctx, c.cfg.Bucket)
			if err != nil {
				return err
			}
			defer storage.Close()

			if objectName == "" {
				objectName = gcsuploader.ObjectName(filePath, time.Now())
			}

			c.log.Info().
				Str("bucket", c.cfg.Bucket).
				Str("object", objectName).
				Str("file", filePath).
				Msg("Uploading file to GCS")

			uri, err := storage.UploadFile(ctx, objectName, pipeline.MIMETypeFor(filePath), filePath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "Path to the local file")
	cmd.Flags().StringVar(&objectName, "object", "", "Object name (defaults to uploads/YYYY/MM/DD/<uuid>-<file>)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) reparseCmd() *cobra.Command {
	var documentID, bank string
	cmd := &cobra.Command{
		Use:   "reparse",
		Short: "Re-parse an existing document by ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			a, err := c.cloud(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Store.GetDocument(ctx, documentID)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("document %s not found", documentID)
			}
			if doc.GCSURI == "" {
				return fmt.Errorf("document %s has no GCS URI", documentID)
			}

			c.log.Info().Str("document_id", documentID).Str("gcs_uri", doc.GCSURI).Msg("Re-parsing document")
			res, err := a.Ingestor.Ingest(ctx, pipeline.IngestRequest{
				DocumentID: doc.ID,
				GCSURI:     doc.GCSURI,
				MIMEType:   doc.MIMEType,
				BankHint:   bank,
				UserID:     doc.UserID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Re-parsed document %s (run %s): %d transactions\n",
				res.DocumentID, res.ParsingRunID, len(res.Result.Transactions))
			return nil
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "Document ID to re-parse")
	cmd.Flags().StringVar(&bank, "bank", "", "Bank strategy or \"receipt\"")
	_ = cmd.MarkFlagRequired("document-id")
	return cmd
}

func (c *cli) inspectCmd() *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect a document, its parsing runs and its transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.cloud(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Store.GetDocument(ctx, documentID)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("document %s not found", documentID)
			}
			runs, err := a.Store.ListParsingRuns(ctx, documentID)
			if err != nil {
				return err
			}
			txns, err := a.Store.ListTransactionsByDocument(ctx, documentID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\n=== Document Details ===")
			fmt.Fprintf(out, "ID:       %s\n", doc.ID)
			fmt.Fprintf(out, "File:     %s (%s)\n", doc.FileName, doc.MIMEType)
			fmt.Fprintf(out, "Type:     %s\n", doc.Type)
			fmt.Fprintf(out, "GCS URI:  %s\n", doc.GCSURI)
			fmt.Fprintf(out, "Uploaded: %s\n", doc.UploadedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Status:   %s\n", doc.Status)

			fmt.Fprintf(out, "\n=== Parsing runs (%d) ===\n", len(runs))
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-10s %s %s  %s\n", r.StartedTS.Format("2006-01-02 15:04:05"), r.Status, r.ParserType, r.ParserVersion, r.ErrorMessage)
			}

			fmt.Fprintf(out, "\n=== Transactions (%d) ===\n", len(txns))
			for i, txn := range txns {
				fmt.Fprintf(out, "\n%d. %s\n", i+1, txn.RawDescription)
				fmt.Fprintf(out, "   Date:     %s\n", txn.TransactionDate)
				fmt.Fprintf(out, "   Amount:   %s %s\n", txn.Amount.FloatString(2), txn.Currency)
				if txn.CategoryName.Valid {
					fmt.Fprintf(out, "   Category: %s (%s)\n", txn.CategoryName.StringVal, txn.CategorySource.StringVal)
				}
				if txn.NeedsReview {
					fmt.Fprintln(out, "   Needs review")
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "Document ID to inspect")
	_ = cmd.MarkFlagRequired("document-id")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a document and every record derived from it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.cloud(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.DeleteDocument(ctx, documentID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %s\n", documentID)
			return nil
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "Document ID to delete")
	_ = cmd.MarkFlagRequired("document-id")
	return cmd
}

func (c *cli) syncCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-categories",
		Short: "Write the category tree to BigQuery and list the active categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.cloud(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.SyncCategories(ctx); err != nil {
				return err
			}
			rows, err := a.Store.ListActiveCategories(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				indent := strings.Repeat("  ", int(r.Depth))
				fmt.Fprintf(out, "%s%s (%s)\n", indent, r.Name, r.CategoryID)
			}
			fmt.Fprintf(out, "%d active categories\n", len(rows))
			return nil
		},
	}
}

// printResult writes a human-readable summary of a processing result.
func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Format: %s  Type: %s", res.Format, res.DocumentType)
	if res.Bank != "" {
		fmt.Fprintf(w, "  Bank: %s", res.Bank)
	}
	fmt.Fprintln(w)

	if s := res.Statement; s != nil {
		fmt.Fprintf(w, "Statement %s %s: %d transactions, debits %.2f, credits %.2f\n", s.Bank, s.Period, s.TransactionCount, s.TotalDebits, s.TotalCredits)
	}
	if r := res.Receipt; r != nil {
		fmt.Fprintf(w, "Receipt %s %s: total %.2f, %d items, %s\n", r.MerchantName, r.Date, r.Total, len(r.Items), r.Status)
	}

	fmt.Fprintf(w, "\n=== Transactions (%d) ===\n", len(res.Transactions))
	for _, tx := range res.Transactions {
		fmt.Fprintf(w, "%s  %10.2f  %-40.40s  %s\n", tx.Date, tx.Amount, tx.Description, categorize.Name(tx.CategoryID))
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func userOr(userID, fallback string) string {
	if userID != "" {
		return userID
	}
	return fallback
}
