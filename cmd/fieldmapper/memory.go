package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/mapping"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit a tenant's mapping memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the tenant's mapping memory as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMemory(cmd, func(svc *mapping.Service) error {
			st, err := svc.Get(cmd.Context(), tenantOf(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		})
	},
}

var memoryLearnCmd = &cobra.Command{
	Use:   "learn [label=target]...",
	Short: "Record confirmed label assignments",
	Long: `learn folds confirmed assignments into memory. Pass label=target pairs,
or --from a JSON file holding {"assignments": [...], "extractedFields": [...]}.`,
	Example: `  fieldmapper memory learn "Sundry Creditors=accounts_payable" "Net Sales=turnover"
  fieldmapper memory learn --from confirmed.json`,
	RunE: runLearn,
}

var memoryAddLabelCmd = &cobra.Command{
	Use:   "add-label <target> <label>",
	Short: "Add a label variant to a target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tt := targetTypeOf(cmd)
		return withMemory(cmd, func(svc *mapping.Service) error {
			added, err := svc.AddLabel(cmd.Context(), tenantOf(cmd), tt, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]bool{"added": added})
		})
	},
}

var memoryRemoveLabelCmd = &cobra.Command{
	Use:   "remove-label <target> <label>",
	Short: "Remove a label variant; the entry goes with its last label",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tt := targetTypeOf(cmd)
		return withMemory(cmd, func(svc *mapping.Service) error {
			res, err := svc.RemoveLabel(cmd.Context(), tenantOf(cmd), tt, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

var memoryAutoApplyCmd = &cobra.Command{
	Use:   "auto-apply [label]...",
	Short: "Propose targets for labels, or for the fields of a saved result",
	Example: `  fieldmapper memory auto-apply "Trade Creditors" "Revenue from operations"
  fieldmapper memory auto-apply --from results/fy24.json`,
	RunE: runAutoApply,
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryShowCmd, memoryLearnCmd, memoryAddLabelCmd, memoryRemoveLabelCmd, memoryAutoApplyCmd)

	memoryCmd.PersistentFlags().String("type", string(mapping.TargetField), "target type: field or table")
	memoryLearnCmd.Flags().String("from", "", "JSON file with assignments and extractedFields")
	memoryAutoApplyCmd.Flags().String("from", "", "extraction result JSON (as written by extract --out)")
}

func targetTypeOf(cmd *cobra.Command) mapping.TargetType {
	t, _ := cmd.Flags().GetString("type")
	return mapping.TargetType(strings.ToLower(strings.TrimSpace(t)))
}

func withMemory(cmd *cobra.Command, fn func(*mapping.Service) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	svc, err := a.memory(cmd.Context())
	if err != nil {
		return err
	}
	return fn(svc)
}

type learnFile struct {
	Assignments     []mapping.Assignment    `json:"assignments"`
	ExtractedFields []entity.ExtractedField `json:"extractedFields"`
}

func runLearn(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	var in learnFile
	if from != "" {
		if err := readJSON(from, &in); err != nil {
			return err
		}
	}
	tt := targetTypeOf(cmd)
	for _, pair := range args {
		label, target, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(label) == "" || strings.TrimSpace(target) == "" {
			return fmt.Errorf("assignment %q must look like label=target", pair)
		}
		in.Assignments = append(in.Assignments, mapping.Assignment{
			SourceType: "label",
			SourceKey:  strings.TrimSpace(label),
			TargetType: tt,
			TargetKey:  strings.TrimSpace(target),
		})
	}
	if len(in.Assignments) == 0 {
		return fmt.Errorf("nothing to learn: pass label=target pairs or --from")
	}
	return withMemory(cmd, func(svc *mapping.Service) error {
		res, err := svc.Learn(cmd.Context(), tenantOf(cmd), in.Assignments, in.ExtractedFields)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	})
}

func runAutoApply(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	var fields []entity.ExtractedField
	if from != "" {
		res, err := readResult(from)
		if err != nil {
			return err
		}
		fields = res.ExtractedFields
	}
	for i, label := range args {
		fields = append(fields, entity.ExtractedField{ID: fmt.Sprintf("arg%02d", i+1), Label: label})
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields: pass labels or --from")
	}
	return withMemory(cmd, func(svc *mapping.Service) error {
		cands, err := svc.AutoApply(cmd.Context(), tenantOf(cmd), fields)
		if err != nil {
			return err
		}
		return printJSON(cmd, cands)
	})
}

func readJSON(path string, dst any) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// readResult accepts a bare result or the {"result": ...} envelope.
func readResult(path string) (*entity.FinancialExtractionResult, error) {
	var env struct {
		Result *entity.FinancialExtractionResult `json:"result"`
	}
	if err := readJSON(path, &env); err != nil {
		return nil, err
	}
	if env.Result != nil {
		return env.Result, nil
	}
	var res entity.FinancialExtractionResult
	if err := readJSON(path, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
