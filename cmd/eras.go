package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/era"
)

var erasCmd = &cobra.Command{
	Use:   "eras",
	Short: "Manage era windows",
	Long:  "Eras are named, contiguous time windows that scope correlation and detection runs. At least one era must exist before the pipeline can run.",
}

var erasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List eras and their derived windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		eras, err := era.List(ctx, pool)
		if err != nil {
			return err
		}

		for _, e := range eras {
			end := "open"
			if e.EndsOn != nil {
				end = e.EndsOn.Format("2006-01-02")
			}
			fmt.Printf("%4d  %-24s %s .. %s\n", e.ID, e.Name, e.StartsOn.Format("2006-01-02"), end)
		}
		return nil
	},
}

var erasAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an era",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		starts, _ := cmd.Flags().GetString("starts")
		if name == "" || starts == "" {
			return eris.New("eras add: --name and --starts are required")
		}
		startsOn, err := time.Parse("2006-01-02", starts)
		if err != nil {
			return eris.Wrapf(err, "eras add: parse --starts %q", starts)
		}

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		id, err := era.Add(ctx, pool, name, startsOn)
		if err != nil {
			return err
		}

		zap.L().Info("era added", zap.Int64("id", id), zap.String("name", name))
		return nil
	},
}

func init() {
	erasAddCmd.Flags().String("name", "", "era name (unique)")
	erasAddCmd.Flags().String("starts", "", "start date, YYYY-MM-DD")
	erasCmd.AddCommand(erasListCmd, erasAddCmd)
	rootCmd.AddCommand(erasCmd)
}
