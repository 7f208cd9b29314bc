package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	exportCompanyID string
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export completed invoices to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		companyID := uuid.Nil
		if exportCompanyID != "" {
			companyID, err = uuid.Parse(exportCompanyID)
			if err != nil {
				return fmt.Errorf("parse company id: %w", err)
			}
		}

		data, err := a.exporter.ExportInvoicesXLSX(ctx, companyID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d bytes)\n", exportOut, len(data))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCompanyID, "company", "", "company id to export")
	exportCmd.Flags().StringVar(&exportOut, "out", "invoices.xlsx", "output file")
}
