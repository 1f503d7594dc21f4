// Package regress fits the population → visitor count linear model.
package regress

import (
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/visitum/visitum-cli/internal/store"
)

// Config controls the train/holdout split.
type Config struct {
	// TestFraction is the share of observations held out for scoring.
	TestFraction float64 `yaml:"test_fraction" mapstructure:"test_fraction"`
	// Seed makes the split deterministic across runs.
	Seed uint64 `yaml:"seed" mapstructure:"seed"`
}

// DefaultConfig returns the default split configuration.
func DefaultConfig() Config {
	return Config{TestFraction: 0.2, Seed: 42}
}

// Model is a fitted single-feature linear regression.
type Model struct {
	Intercept   float64 `json:"intercept"`
	Coefficient float64 `json:"coefficient"`
	// RSquared is scored on the holdout set, or on the training set when
	// the input is too small to hold anything out.
	RSquared  float64 `json:"r_squared"`
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
}

// Predict returns the expected visitor count for a city population.
func (m *Model) Predict(population int64) float64 {
	return m.Intercept + m.Coefficient*float64(population)
}

// Fit splits the observations into train and holdout sets, fits ordinary
// least squares on the training set, and scores R² on the holdout.
func Fit(features []store.Feature, cfg Config) (*Model, error) {
	n := len(features)
	if n < 2 {
		return nil, eris.Errorf("regress: need at least 2 observations, got %d", n)
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = DefaultConfig().TestFraction
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	holdout := int(float64(n) * cfg.TestFraction)
	// The training set must keep at least two points to determine a line.
	if n-holdout < 2 {
		holdout = n - 2
	}
	train := n - holdout

	xTrain := make([]float64, 0, train)
	yTrain := make([]float64, 0, train)
	xTest := make([]float64, 0, holdout)
	yTest := make([]float64, 0, holdout)
	for i, j := range idx {
		if i < train {
			xTrain = append(xTrain, float64(features[j].Population))
			yTrain = append(yTrain, float64(features[j].VisitorsCount))
		} else {
			xTest = append(xTest, float64(features[j].Population))
			yTest = append(yTest, float64(features[j].VisitorsCount))
		}
	}

	alpha, beta := stat.LinearRegression(xTrain, yTrain, nil, false)
	m := &Model{
		Intercept:   alpha,
		Coefficient: beta,
		TrainSize:   train,
		TestSize:    holdout,
	}

	xScore, yScore := xTest, yTest
	if holdout == 0 {
		xScore, yScore = xTrain, yTrain
	}
	estimates := make([]float64, len(xScore))
	for i, x := range xScore {
		estimates[i] = alpha + beta*x
	}
	m.RSquared = stat.RSquaredFrom(estimates, yScore, nil)

	zap.L().Info("regress: model fitted",
		zap.Float64("intercept", m.Intercept),
		zap.Float64("coefficient", m.Coefficient),
		zap.Float64("r_squared", m.RSquared),
		zap.Int("train_size", m.TrainSize),
		zap.Int("test_size", m.TestSize),
	)
	return m, nil
}
