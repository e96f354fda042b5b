package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
	"github.com/MikeSquared-Agency/tribunal/internal/classifier"
)

var predictFlags struct {
	reason      string
	description string
	ticket      string
	category    string
	vehicleReg  string
	fine        float64
	evidence    []string
	location    string
	code        string
	offline     bool
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the success of an appeal and print the result as JSON",
	Long: `Predict runs the same gateway as the API. When PREDICTOR_URL is set the
external service is tried first; --offline forces the rule-based predictor.`,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictFlags.reason, "reason", "", "appeal reason (required)")
	f.StringVar(&predictFlags.description, "description", "", "free-text circumstances")
	f.StringVar(&predictFlags.ticket, "ticket", "", "ticket number, used to classify the notice")
	f.StringVar(&predictFlags.category, "category", "", "category id, overrides classification")
	f.StringVar(&predictFlags.vehicleReg, "vehicle-reg", "", "vehicle registration")
	f.Float64Var(&predictFlags.fine, "fine", 0, "fine amount")
	f.StringSliceVar(&predictFlags.evidence, "evidence", nil, "evidence items, repeatable or comma separated")
	f.StringVar(&predictFlags.location, "location", "", "location of the contravention")
	f.StringVar(&predictFlags.code, "code", "", "contravention code")
	f.BoolVar(&predictFlags.offline, "offline", false, "skip the external predictor")
	_ = predictCmd.MarkFlagRequired("reason")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	reg, err := classifier.Default()
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	c := cfg
	if predictFlags.offline {
		c.PredictorURL = ""
	}
	gw, _, release, err := newGateway(cmd.Context(), c, reg, logger)
	if err != nil {
		return err
	}
	defer release()

	res := gw.Predict(cmd.Context(), appeal.Signals{
		Reason:            predictFlags.reason,
		Description:       predictFlags.description,
		TicketNumber:      predictFlags.ticket,
		Category:          predictFlags.category,
		VehicleReg:        predictFlags.vehicleReg,
		FineAmount:        predictFlags.fine,
		Evidence:          predictFlags.evidence,
		Location:          predictFlags.location,
		ContraventionCode: predictFlags.code,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
