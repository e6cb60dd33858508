package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/core"
	"github.com/joseph-ayodele/financials-mapper/internal/ingest"
	"github.com/joseph-ayodele/financials-mapper/internal/ocr"
	"github.com/joseph-ayodele/financials-mapper/internal/server"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract canonical figures from one or more documents",
	Example: `  # Print the result for one statement
  fieldmapper extract fy24.pdf --year 2023-24

  # Record the job and memory proposals, writing <name>.json files
  fieldmapper extract *.pdf --persist --out results/

  # Send the document to a running fieldmapperd
  fieldmapper extract scan.png --addr localhost:8080`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

var ocrCmd = &cobra.Command{
	Use:   "ocr <file>",
	Short: "Run only the configured OCR engine and print the recognized text",
	Args:  cobra.ExactArgs(1),
	RunE:  runOCR,
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract every supported document under a directory",
	Long: `batch walks a directory for PDF, PNG and JPEG files, extracts them
concurrently, records each job for the tenant and writes one JSON result per
document. With --xlsx it finishes with a workbook export of the tenant.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(extractCmd, ocrCmd, batchCmd)

	extractCmd.Flags().String("year", "", "target financial year hint")
	extractCmd.Flags().String("api-key", "", "per-document AI key")
	extractCmd.Flags().Bool("persist", false, "record the job and propose mappings from memory")
	extractCmd.Flags().StringP("out", "o", "", "write <name>.json per document into this directory")
	extractCmd.Flags().String("addr", "", "fieldmapperd address; extract remotely when set")

	ocrCmd.Flags().Bool("json", false, "print the full OCR result as JSON")

	batchCmd.Flags().String("year", "", "target financial year hint")
	batchCmd.Flags().StringP("out", "o", "", "write <name>.json per document into this directory")
	batchCmd.Flags().String("xlsx", "", "export the tenant's results to this workbook when done")
	batchCmd.Flags().Bool("skip-hidden", true, "skip dot files and directories")
	batchCmd.Flags().Int("workers", 0, "concurrent documents (default WORKERS)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetString("year")
	apiKey, _ := cmd.Flags().GetString("api-key")
	persist, _ := cmd.Flags().GetBool("persist")
	outDir, _ := cmd.Flags().GetString("out")
	addr, _ := cmd.Flags().GetString("addr")
	tenant := tenantOf(cmd)

	if addr != "" {
		return extractRemote(cmd, addr, tenant, year, apiKey, args)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	proc, engines, err := a.processor(ctx, persist)
	if err != nil {
		return err
	}
	defer engines.Close()

	for _, path := range args {
		out, err := proc.ProcessFile(ctx, core.Job{TenantID: tenant, Path: path, YearHint: year, APIKey: apiKey})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if outDir != "" {
			if err := ingest.WriteResult(outDir, out); err != nil {
				return err
			}
			continue
		}
		if err := printJSON(cmd, map[string]any{"document": filepath.Base(path), "result": out.Result, "proposals": out.Proposals}); err != nil {
			return err
		}
	}
	return nil
}

func extractRemote(cmd *cobra.Command, addr, tenant, year, apiKey string, paths []string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	client := server.NewClient(conn)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		resp, err := client.Extract(cmd.Context(), server.ExtractRequest{
			TenantID: tenant,
			Name:     filepath.Base(path),
			Data:     data,
			YearHint: year,
			APIKey:   apiKey,
		}, grpc.MaxCallSendMsgSize(len(data)*2+(1<<20)))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := printJSON(cmd, map[string]any{"document": filepath.Base(path), "jobId": resp.JobID, "result": resp.Result, "proposals": resp.Proposals}); err != nil {
			return err
		}
	}
	return nil
}

func runOCR(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	mime, ok := constants.DetectMIME(data)
	if !ok {
		return fmt.Errorf("%s: unsupported document type %s", args[0], mime)
	}
	engine, err := ocr.NewEngine(ctx, a.cfg.OCR, a.logger)
	if err != nil {
		return err
	}
	if engine == nil {
		return fmt.Errorf("OCR_ENGINE is none")
	}
	if c, ok := engine.(interface{ Close() error }); ok {
		defer c.Close()
	}

	start := time.Now()
	res, err := engine.Recognize(ctx, ocr.Input{Data: data, MIMEType: mime, Name: filepath.Base(args[0])})
	if err != nil {
		return err
	}
	a.logger.Info("ocr ok", "engine", engine.Name(), "pages", res.Pages, "confidence", res.Confidence, "duration_ms", time.Since(start).Milliseconds())
	if asJSON {
		return printJSON(cmd, res)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	return err
}

func runBatch(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetString("year")
	outDir, _ := cmd.Flags().GetString("out")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	skipHidden, _ := cmd.Flags().GetBool("skip-hidden")
	workers, _ := cmd.Flags().GetInt("workers")
	tenant := tenantOf(cmd)

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	paths, stats, err := ingest.ScanDirectory(args[0], skipHidden)
	if err != nil {
		return err
	}
	a.logger.Info("batch scan complete", "root", args[0], "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	proc, engines, err := a.processor(ctx, true)
	if err != nil {
		return err
	}
	defer engines.Close()

	if workers <= 0 {
		workers = a.cfg.Server.Workers
	}
	var (
		mu       sync.Mutex
		done     int
		failures int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		g.Go(func() error {
			jctx, cancel := context.WithTimeout(gctx, a.cfg.Pipeline.Timeout)
			defer cancel()
			out, err := proc.ProcessFile(jctx, core.Job{TenantID: tenant, Path: path, YearHint: year})
			if err == nil && outDir != "" {
				err = ingest.WriteResult(outDir, out)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failures++
				a.logger.Error("batch document failed", "path", path, "error", err)
				return nil
			}
			done++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if xlsxPath != "" {
		svc, err := a.exports(ctx)
		if err != nil {
			return err
		}
		buf, err := svc.ExportTenantXLSX(ctx, tenant, 0)
		if err != nil {
			return err
		}
		if err := os.WriteFile(xlsxPath, buf, 0o644); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Batch processing complete!\n")
	fmt.Fprintf(w, "- Documents found: %d\n", len(paths))
	fmt.Fprintf(w, "- Documents processed: %d\n", done)
	fmt.Fprintf(w, "- Failures: %d\n", failures)
	if xlsxPath != "" {
		fmt.Fprintf(w, "- Workbook: %s\n", xlsxPath)
	}
	return nil
}
