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

package config

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/knn/model/knn"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

const (
	FormatTriplet = "triplet"
	FormatDense   = "dense"
)

// Config is the configuration of the gorse-knn command.
type Config struct {
	Model   ModelConfig   `mapstructure:"model"`
	Data    DataConfig    `mapstructure:"data"`
	Tune    TuneConfig    `mapstructure:"tune"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ModelConfig selects the model orientation and its options.
type ModelConfig struct {
	Orientation knn.Orientation `mapstructure:"orientation" validate:"oneof=user item"`
	knn.Config  `mapstructure:",squash"`
}

// DataConfig locates the rating file. Triplet files hold one user,item,rating record per line
// while dense files hold one row of the rating matrix per line.
type DataConfig struct {
	Path      string `mapstructure:"path"`
	Format    string `mapstructure:"format" validate:"oneof=triplet dense"`
	Separator string `mapstructure:"separator" validate:"len=1"`
	Header    bool   `mapstructure:"header"`
}

type TuneConfig struct {
	Trials    int     `mapstructure:"trials" validate:"gte=1"`
	TestRatio float64 `mapstructure:"test_ratio" validate:"gt=0,lt=1"`
	Seed      uint64  `mapstructure:"seed"`
}

// TracingConfig exports fit spans to a collector.
type TracingConfig struct {
	EnableTracing     bool    `mapstructure:"enable_tracing"`
	Exporter          string  `mapstructure:"exporter" validate:"oneof=otlp otlphttp zipkin"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	Sampler           string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio             float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

// NewTracerProvider creates a tracer provider exporting to the configured collector. It
// returns nil if tracing is disabled.
func (config *TracingConfig) NewTracerProvider() (*tracesdk.TracerProvider, error) {
	if !config.EnableTracing {
		return nil, nil
	}
	var (
		exporter tracesdk.SpanExporter
		err      error
	)
	switch config.Exporter {
	case "otlp":
		client := otlptracegrpc.NewClient(otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
	case "otlphttp":
		client := otlptracehttp.NewClient(otlptracehttp.WithInsecure(), otlptracehttp.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
	case "zipkin":
		exporter, err = zipkin.New(config.CollectorEndpoint)
	default:
		return nil, errors.NotSupportedf("exporter %s", config.Exporter)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	var sampler tracesdk.Sampler
	switch config.Sampler {
	case "always":
		sampler = tracesdk.AlwaysSample()
	case "never":
		sampler = tracesdk.NeverSample()
	case "ratio":
		sampler = tracesdk.TraceIDRatioBased(config.Ratio)
	default:
		return nil, errors.NotSupportedf("sampler %s", config.Sampler)
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewSchemaless(attribute.String("service.name", "gorse-knn"))),
		tracesdk.WithSampler(tracesdk.ParentBased(sampler)),
	), nil
}

func GetDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Orientation: knn.UserBased,
			Config:      *knn.NewConfig(),
		},
		Data: DataConfig{
			Format:    FormatTriplet,
			Separator: ",",
		},
		Tune: TuneConfig{
			Trials:    10,
			TestRatio: 0.2,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

// ModelConfig returns a copy of the model options.
func (config *Config) ModelConfig() *knn.Config {
	c := config.Model.Config
	return &c
}

// SeparatorRune returns the field separator of rating files.
func (config *Config) SeparatorRune() rune {
	return []rune(config.Data.Separator)[0]
}

var (
	validate   = validator.New()
	translator ut.Translator
)

func init() {
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" {
			return field.Name
		}
		return name
	})
}

// Validate checks every option. Violations are reported as knn.ErrConfiguration.
func (config *Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return errors.Trace(err)
		}
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, fieldError.Namespace()+": "+fieldError.Translate(translator))
		}
		return errors.WithType(errors.New(strings.Join(messages, "; ")), knn.ErrConfiguration)
	}
	return nil
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [model]
	v.SetDefault("model.orientation", defaultConfig.Model.Orientation)
	v.SetDefault("model.sim_method", defaultConfig.Model.SimMethod)
	v.SetDefault("model.alpha", defaultConfig.Model.Alpha)
	v.SetDefault("model.min_similarity", defaultConfig.Model.MinSimilarity)
	v.SetDefault("model.factorization", defaultConfig.Model.Factorization)
	v.SetDefault("model.compression_rate", defaultConfig.Model.CompressionRate)
	v.SetDefault("model.approximate_factorization", defaultConfig.Model.ApproximateFactorization)
	v.SetDefault("model.jobs", defaultConfig.Model.Jobs)
	// [data]
	v.SetDefault("data.path", defaultConfig.Data.Path)
	v.SetDefault("data.format", defaultConfig.Data.Format)
	v.SetDefault("data.separator", defaultConfig.Data.Separator)
	v.SetDefault("data.header", defaultConfig.Data.Header)
	// [tune]
	v.SetDefault("tune.trials", defaultConfig.Tune.Trials)
	v.SetDefault("tune.test_ratio", defaultConfig.Tune.TestRatio)
	v.SetDefault("tune.seed", defaultConfig.Tune.Seed)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

// LoadConfig loads configuration from a toml file. Every option may be overridden by an
// environment variable such as GORSE_KNN_MODEL_SIM_METHOD. An empty path loads defaults and
// environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("GORSE_KNN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config file %s", path)
		}
	}
	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToBasicTypeHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}
