package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	loggerpkg "github.com/applypilot/applypilot/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var prompt = promptui.Select{
	Label: "Run a dispatch tick now?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one dispatch tick over all active campaigns and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before dispatching")
}

// run is the manual "run now" trigger. It goes through the exact same
// dispatch path as the scheduler, so quota accounting stays idempotent.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := loggerpkg.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting applypilot", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if cmd.Flag("yes").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	st, err := newStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("building stores", zap.Error(err))
	}
	defer st.Close()

	engine, err := newRunner(ctx, config, st, logger)
	if err != nil {
		logger.Fatal("building the runner", zap.Error(err))
	}

	result, err := engine.RunNow(ctx)
	if err != nil {
		logger.Fatal("dispatch tick failed", zap.Error(err))
	}

	logger.Info("dispatch tick done",
		zap.Int("campaigns_processed", result.Processed),
		zap.Any("sent_per_campaign", result.Sent),
	)
}
