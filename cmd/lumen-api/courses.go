package main

import (
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/config"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/purchases"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCoursesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "Manage the purchasable course catalogue",
	}
	cmd.AddCommand(newCoursesAddCommand())
	return cmd
}

func newCoursesAddCommand() *cobra.Command {
	var input purchases.CourseInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or refresh a catalogue entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.LoadStorage(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := newLogger(appConfig)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			db, closeDB, err := openDatabase(appConfig, logger)
			if err != nil {
				return err
			}
			defer closeDB()

			service, err := purchases.NewService(purchases.ServiceConfig{
				Database:   db,
				Clock:      time.Now,
				IDProvider: notes.NewUUIDProvider(),
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			course, err := service.UpsertCourse(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "course %s saved (published=%t, price_cents=%d)\n",
				course.ID, course.IsPublished, course.PriceCents)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input.ID, "id", "", "Course id")
	flags.StringVar(&input.Title, "title", "", "Course title")
	flags.Int64Var(&input.PriceCents, "price-cents", 0, "Price in cents")
	flags.BoolVar(&input.IsPublished, "published", false, "Mark the course as published")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
