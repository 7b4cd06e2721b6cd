package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jaswdr/faker"
	"go.uber.org/zap"

	"github.com/jittakal/fifolog/pkg/source"
)

// GeneratorConfig configures the synthetic record generator.
type GeneratorConfig struct {
	Interval time.Duration
	Count    int // zero means unlimited
	MinWords int
	MaxWords int
}

var generatorLevels = []string{"DEBUG", "INFO", "INFO", "INFO", "WARN", "ERROR"}

var generatorComponents = []string{"api", "auth", "billing", "catalog", "checkout", "search", "worker"}

// Generator emits synthetic log lines at a fixed interval. It is used to
// load the ring and observe drop behavior without an external producer.
type Generator struct {
	config  GeneratorConfig
	faker   faker.Faker
	logger  *zap.Logger
	metrics MetricsCollector
	now     func() time.Time
}

// NewGenerator creates a new record generator
func NewGenerator(config GeneratorConfig, logger *zap.Logger, metrics MetricsCollector) *Generator {
	if config.MinWords <= 0 {
		config.MinWords = 3
	}
	if config.MaxWords < config.MinWords {
		config.MaxWords = config.MinWords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		config:  config,
		faker:   faker.New(),
		logger:  logger.Named("generator"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Name returns "generator".
func (g *Generator) Name() string {
	return "generator"
}

// Run emits records until Count is reached or ctx is cancelled.
func (g *Generator) Run(ctx context.Context, emit source.EmitFunc) error {
	var tick <-chan time.Time
	if g.config.Interval > 0 {
		ticker := time.NewTicker(g.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	g.logger.Info("generator started",
		zap.Duration("interval", g.config.Interval),
		zap.Int("count", g.config.Count),
	)

	for emitted := 0; g.config.Count == 0 || emitted < g.config.Count; emitted++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if err := handleEmit(emit, g.Line(), g.count, g.logger); err != nil {
			return err
		}
	}

	g.logger.Info("generator finished", zap.Int("count", g.config.Count))
	return nil
}

// Line returns one synthetic log line without a terminator.
func (g *Generator) Line() []byte {
	words := g.faker.Lorem().Words(g.faker.IntBetween(g.config.MinWords, g.config.MaxWords))

	return []byte(fmt.Sprintf("%s %-5s [%s] user=%s ip=%s latency_ms=%d msg=%q",
		g.now().UTC().Format(time.RFC3339Nano),
		g.faker.RandomStringElement(generatorLevels),
		g.faker.RandomStringElement(generatorComponents),
		g.faker.Internet().User(),
		g.faker.Internet().Ipv4(),
		g.faker.IntBetween(1, 2500),
		strings.Join(words, " "),
	))
}

func (g *Generator) count(status string) {
	if g.metrics != nil {
		g.metrics.IncSourceRecords("generator", status)
	}
}
