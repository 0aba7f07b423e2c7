// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gorse-io/knn/base/log"
	"github.com/gorse-io/knn/base/progress"
	"github.com/gorse-io/knn/cmd/version"
	"github.com/gorse-io/knn/config"
	"github.com/gorse-io/knn/model/knn"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// session is the state shared by subcommands once the root command has loaded configuration.
type session struct {
	config         *config.Config
	data           *ratingData
	tracerProvider *tracesdk.TracerProvider
}

func (s *session) fit(ctx context.Context) (*knn.Model, error) {
	m, err := knn.New(s.config.Model.Orientation, s.config.ModelConfig())
	if err != nil {
		return nil, errors.Trace(err)
	}
	tracer := progress.NewTracer("gorse-knn")
	ctx, span := tracer.Start(ctx, "fit", 1)
	if err = m.Fit(ctx, s.data.ratings); err != nil {
		return nil, errors.Trace(err)
	}
	span.End()
	for _, step := range tracer.List() {
		log.Logger().Debug("fit step",
			zap.String("name", step.Name),
			zap.String("status", string(step.Status)),
			zap.Int("count", step.Count),
			zap.Int("total", step.Total),
			zap.Duration("elapsed", step.FinishTime.Sub(step.StartTime)))
	}
	return m, nil
}

// trialBar shows finished tuning trials. A bar that fails to render is logged and tuning goes on.
type trialBar struct {
	bar    *progressbar.ProgressBar
	logger *zap.Logger
}

func newTrialBar(w io.Writer, trials int, logger *zap.Logger) *trialBar {
	return &trialBar{
		bar: progressbar.NewOptions(trials,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("tune"),
			progressbar.OptionShowCount()),
		logger: logger,
	}
}

func (b *trialBar) Add() {
	if err := b.bar.Add(1); err != nil {
		b.logger.Warn("failed to update progress bar", zap.Error(err))
	}
}

func (b *trialBar) Finish() {
	if err := b.bar.Finish(); err != nil {
		b.logger.Warn("failed to finish progress bar", zap.Error(err))
	}
}

func newRootCommand() *cobra.Command {
	s := &session{}
	root := &cobra.Command{
		Use:           "gorse-knn",
		Short:         "Memory-based collaborative filtering.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			debug, _ := flags.GetBool("debug")
			log.SetLogger(flags, debug)
			configPath, _ := flags.GetString("config")
			log.Logger().Debug("load config", zap.String("config", configPath))
			var err error
			if s.config, err = config.LoadConfig(configPath); err != nil {
				return errors.Trace(err)
			}
			if flags.Changed("data") {
				s.config.Data.Path, _ = flags.GetString("data")
			}
			if flags.Changed("orientation") {
				orientation, _ := flags.GetString("orientation")
				s.config.Model.Orientation = knn.Orientation(orientation)
			}
			if cmd.Name() == "version" {
				return nil
			}
			if s.tracerProvider, err = s.config.Tracing.NewTracerProvider(); err != nil {
				return errors.Trace(err)
			} else if s.tracerProvider != nil {
				otel.SetTracerProvider(s.tracerProvider)
			}
			if s.data, err = loadRatingData(s.config); err != nil {
				return errors.Trace(err)
			}
			rows, cols := s.data.ratings.Shape()
			log.Logger().Info("load ratings",
				zap.String("path", s.config.Data.Path),
				zap.Int("n_users", rows),
				zap.Int("n_items", cols),
				zap.Int("n_ratings", s.data.ratings.Count()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if s.tracerProvider == nil {
				return nil
			}
			return errors.Trace(s.tracerProvider.Shutdown(cmd.Context()))
		},
	}
	log.AddFlags(root.PersistentFlags())
	root.PersistentFlags().Bool("debug", false, "use debug log mode")
	root.PersistentFlags().StringP("config", "c", "", "configuration file path")
	root.PersistentFlags().StringP("data", "d", "", "rating file path (overrides data.path)")
	root.PersistentFlags().String("orientation", "", "user or item (overrides model.orientation)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sim",
		Short: "Print the similarity matrix.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := s.fit(cmd.Context())
			if err != nil {
				return errors.Trace(err)
			}
			scores, err := m.SimScores()
			if err != nil {
				return errors.Trace(err)
			}
			nameOf := s.data.userName
			if m.Orientation() == knn.ItemBased {
				nameOf = s.data.itemName
			}
			names := lo.Map(lo.Range(scores.Size()), func(i, _ int) string { return nameOf(i) })
			return renderMatrix(cmd.OutOrStdout(), names, names, scores.At)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "predict USER ITEM",
		Short: "Predict the rating of a user on an item.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := s.data.userIndex(args[0])
			if err != nil {
				return errors.Trace(err)
			}
			item, err := s.data.itemIndex(args[1])
			if err != nil {
				return errors.Trace(err)
			}
			m, err := s.fit(cmd.Context())
			if err != nil {
				return errors.Trace(err)
			}
			score, ok, err := m.Predict(user, item)
			if err != nil {
				return errors.Trace(err)
			}
			value := missing
			if ok {
				value = formatFloat(score)
			} else if rating, observed := s.data.ratings.At(user, item); observed {
				value = formatFloat(rating) + " (observed)"
			}
			neighbors, err := m.Neighbors(user, item)
			if err != nil {
				return errors.Trace(err)
			}
			return renderTable(cmd.OutOrStdout(), []string{"user", "item", "rating", "neighbors"},
				[][]string{{args[0], args[1], value, strconv.Itoa(neighbors.Cardinality())}})
		},
	})

	var unobservedOnly bool
	topKCommand := &cobra.Command{
		Use:   "topk USER K",
		Short: "Rank items of a user by completed ratings.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := s.data.userIndex(args[0])
			if err != nil {
				return errors.Trace(err)
			}
			k, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.NotValidf("k %q", args[1])
			}
			m, err := s.fit(cmd.Context())
			if err != nil {
				return errors.Trace(err)
			}
			var items []int
			if unobservedOnly {
				items, err = m.RecommendItems(user, k)
			} else {
				items, err = m.TopKItems(user, k)
			}
			if err != nil {
				return errors.Trace(err)
			}
			completed, err := m.CompleteRatingMatrix()
			if err != nil {
				return errors.Trace(err)
			}
			rows := lo.Map(items, func(item, rank int) []string {
				value, _ := completed.At(user, item)
				observed := s.data.ratings.IsObserved(user, item)
				return []string{strconv.Itoa(rank + 1), s.data.itemName(item), formatFloat(value), strconv.FormatBool(observed)}
			})
			return renderTable(cmd.OutOrStdout(), []string{"rank", "item", "rating", "observed"}, rows)
		},
	}
	topKCommand.Flags().BoolVar(&unobservedOnly, "unobserved", false, "rank only items the user has not rated")
	root.AddCommand(topKCommand)

	root.AddCommand(&cobra.Command{
		Use:   "complete",
		Short: "Print the completed rating matrix.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := s.fit(cmd.Context())
			if err != nil {
				return errors.Trace(err)
			}
			completed, err := m.CompleteRatingMatrix()
			if err != nil {
				return errors.Trace(err)
			}
			rows, cols := completed.Shape()
			users := lo.Map(lo.Range(rows), func(i, _ int) string { return s.data.userName(i) })
			items := lo.Map(lo.Range(cols), func(j, _ int) string { return s.data.itemName(j) })
			return renderMatrix(cmd.OutOrStdout(), users, items, completed.At)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "tune [TRIALS]",
		Short: "Search similarity options by TPE.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trials := s.config.Tune.Trials
			if len(args) > 0 {
				var err error
				if trials, err = strconv.Atoi(args[0]); err != nil {
					return errors.NotValidf("number of trials %q", args[0])
				}
			}
			train, test, err := knn.Split(s.data.ratings, s.config.Tune.TestRatio, s.config.Tune.Seed)
			if err != nil {
				return errors.Trace(err)
			}
			bar := newTrialBar(cmd.ErrOrStderr(), trials, log.Logger())
			var rows [][]string
			start := time.Now()
			result, err := knn.Tune(cmd.Context(), s.config.Model.Orientation, train, test, s.config.ModelConfig(), trials,
				func(config knn.Config, score knn.Score) {
					rows = append(rows, []string{
						strconv.Itoa(len(rows) + 1),
						string(config.SimMethod),
						formatFloat(config.Alpha),
						formatFloat(config.MinSimilarity),
						formatFloat(score.RMSE),
						formatFloat(score.MAE),
						formatFloat(score.Coverage),
					})
					bar.Add()
				})
			bar.Finish()
			if err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("complete tuning", zap.Duration("elapsed", time.Since(start)))
			rows = append(rows, []string{
				"best",
				string(result.Config.SimMethod),
				formatFloat(result.Config.Alpha),
				formatFloat(result.Config.MinSimilarity),
				formatFloat(result.Score.RMSE),
				formatFloat(result.Score.MAE),
				formatFloat(result.Score.Coverage),
			})
			return renderTable(cmd.OutOrStdout(), []string{"#", "sim_method", "alpha", "min_similarity", "rmse", "mae", "coverage"}, rows)
		},
	})
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
