package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the tenant's recorded extractions and memory to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Connect, ping and apply the schema; prints row counts for the tenant",
	Args:  cobra.NoArgs,
	RunE:  runDBHealth,
}

func init() {
	rootCmd.AddCommand(exportCmd, dbCmd)
	dbCmd.AddCommand(dbHealthCmd)

	exportCmd.Flags().StringP("out", "o", "", "output XLSX path (default <tenant>-<date>.xlsx)")
	exportCmd.Flags().Int("limit", 0, "newest N extractions only (0 = all)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")
	limit, _ := cmd.Flags().GetInt("limit")
	tenant := tenantOf(cmd)
	if out == "" {
		out = fmt.Sprintf("%s-%s.xlsx", tenant, time.Now().UTC().Format("20060102"))
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	svc, err := a.exports(cmd.Context())
	if err != nil {
		return err
	}
	buf, err := svc.ExportTenantXLSX(cmd.Context(), tenant, limit)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, buf, 0o644); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(buf))
	return err
}

func runDBHealth(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if _, err := a.openDB(ctx); err != nil {
		return fmt.Errorf("DB health: FAIL (%w)", err)
	}
	mem, err := a.memory(ctx)
	if err != nil {
		return err
	}
	st, err := mem.Get(ctx, tenantOf(cmd))
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "DB health: OK")
	fmt.Fprintf(w, "dialect: %s\n", a.db.Dialect())
	fmt.Fprintf(w, "mapping entries: %d (%d labels, version %d)\n", len(st.Entries), st.LabelCount(), st.Version)
	return nil
}
