package neural

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/climatehealth/healthrisk/pkg/logger"
)

// DefaultThreshold is the decision boundary for binary risk labels.
const DefaultThreshold = 0.5

// Predictor is the shared inference contract for a single network and an
// ensemble of networks.
type Predictor interface {
	// PredictProba returns independent per-label risk probabilities in [0,1].
	PredictProba(x *mat.Dense) *mat.Dense
	// Predict thresholds probabilities to binary per-label decisions.
	Predict(x *mat.Dense, threshold float64) *mat.Dense
	// OutputSize returns the number of predicted labels.
	OutputSize() int
}

// Config holds the architecture hyperparameters. They are fixed for the
// network's lifetime and persisted alongside the weights.
type Config struct {
	InputSize    int     `json:"input_size"`
	HiddenSize   int     `json:"hidden_size"`
	OutputSize   int     `json:"output_size"`
	Dropout      float64 `json:"dropout"`
	HiddenLayers int     `json:"num_hidden_layers"`
}

// Network is a feed-forward residual MLP for multi-label health risk
// prediction: an input projection followed by batch-normalized residual
// hidden blocks and a sigmoid output head. The four output probabilities are
// independent; the labels are not mutually exclusive.
type Network struct {
	cfg Config
	rng *rand.Rand

	input     *linear
	inputNorm *batchNorm
	inputAct  *relu
	inputDrop *dropout

	blocks []*residualBlock
	output *linear
}

type residualBlock struct {
	lin  *linear
	norm *batchNorm
	act  *relu
	drop *dropout
}

// NewNetwork builds a network with Xavier-initialized weights. The seed makes
// initialization and dropout deterministic.
func NewNetwork(cfg Config, seed int64) *Network {
	rng := rand.New(rand.NewSource(seed))
	n := &Network{
		cfg:       cfg,
		rng:       rng,
		input:     newLinear("input", cfg.InputSize, cfg.HiddenSize, rng),
		inputNorm: newBatchNorm("input_norm", cfg.HiddenSize),
		inputAct:  &relu{},
		inputDrop: &dropout{p: cfg.Dropout, rng: rng},
		output:    newLinear("output", cfg.HiddenSize, cfg.OutputSize, rng),
	}
	for i := 0; i < cfg.HiddenLayers; i++ {
		name := fmt.Sprintf("blocks.%d", i)
		n.blocks = append(n.blocks, &residualBlock{
			lin:  newLinear(name+".linear", cfg.HiddenSize, cfg.HiddenSize, rng),
			norm: newBatchNorm(name+".norm", cfg.HiddenSize),
			act:  &relu{},
			drop: &dropout{p: cfg.Dropout, rng: rng},
		})
	}

	logger.WithComponent("neural").Debug().
		Int("parameters", n.ParameterCount()).
		Int("hidden_layers", cfg.HiddenLayers).
		Msg("Initialized network")

	return n
}

// Config returns the architecture hyperparameters.
func (n *Network) Config() Config { return n.cfg }

// OutputSize returns the number of predicted labels.
func (n *Network) OutputSize() int { return n.cfg.OutputSize }

// Forward runs the network. In training mode batch statistics are used for
// normalization, dropout is active and activations are cached for Backward.
// The returned matrix holds per-label sigmoid probabilities.
func (n *Network) Forward(x *mat.Dense, train bool) *mat.Dense {
	h := n.inputDrop.forward(n.inputAct.forward(n.inputNorm.forward(n.input.forward(x, train), train), train), train)

	for _, b := range n.blocks {
		inner := b.drop.forward(b.act.forward(b.norm.forward(b.lin.forward(h, train), train), train), train)
		var sum mat.Dense
		sum.Add(inner, h)
		h = &sum
	}

	logits := n.output.forward(h, train)
	rows, cols := logits.Dims()
	probs := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			probs.Set(i, j, sigmoid(logits.At(i, j)))
		}
	}
	return probs
}

// Backward propagates the loss gradient with respect to the output logits
// through the network, accumulating parameter gradients. It must follow a
// training-mode Forward on the same batch.
func (n *Network) Backward(dLogits *mat.Dense) {
	dH := n.output.backward(dLogits)

	for i := len(n.blocks) - 1; i >= 0; i-- {
		b := n.blocks[i]
		dInner := b.lin.backward(b.norm.backward(b.act.backward(b.drop.backward(dH))))
		// Residual connection: the block input also feeds the sum directly.
		var sum mat.Dense
		sum.Add(dInner, dH)
		dH = &sum
	}

	n.input.backward(n.inputNorm.backward(n.inputAct.backward(n.inputDrop.backward(dH))))
}

// PredictProba runs an inference-mode forward pass: running normalization
// statistics, dropout disabled.
func (n *Network) PredictProba(x *mat.Dense) *mat.Dense {
	return n.Forward(x, false)
}

// Predict thresholds probabilities to binary labels.
func (n *Network) Predict(x *mat.Dense, threshold float64) *mat.Dense {
	return thresholdProbs(n.PredictProba(x), threshold)
}

// Parameters returns the trainable parameters for the optimizer.
func (n *Network) Parameters() []*Param {
	params := []*Param{
		n.input.weight, n.input.bias,
		n.inputNorm.gamma, n.inputNorm.beta,
	}
	for _, b := range n.blocks {
		params = append(params, b.lin.weight, b.lin.bias, b.norm.gamma, b.norm.beta)
	}
	return append(params, n.output.weight, n.output.bias)
}

// ZeroGrad clears all accumulated gradients.
func (n *Network) ZeroGrad() {
	for _, p := range n.Parameters() {
		p.zeroGrad()
	}
}

// ParameterCount returns the number of trainable scalars.
func (n *Network) ParameterCount() int {
	total := 0
	for _, p := range n.Parameters() {
		total += len(p.Data)
	}
	return total
}

func (n *Network) norms() []*batchNorm {
	norms := []*batchNorm{n.inputNorm}
	for _, b := range n.blocks {
		norms = append(norms, b.norm)
	}
	return norms
}

// StateDict returns a deep copy of every weight plus the batch-norm running
// statistics, keyed by parameter name.
func (n *Network) StateDict() map[string][]float64 {
	state := make(map[string][]float64)
	for _, p := range n.Parameters() {
		state[p.Name] = append([]float64(nil), p.Data...)
	}
	for _, bn := range n.norms() {
		state[bn.gamma.Name+".running_mean"] = append([]float64(nil), bn.runningMean...)
		state[bn.gamma.Name+".running_var"] = append([]float64(nil), bn.runningVar...)
	}
	return state
}

// LoadStateDict restores weights and running statistics from a state dict.
func (n *Network) LoadStateDict(state map[string][]float64) error {
	for _, p := range n.Parameters() {
		values, ok := state[p.Name]
		if !ok {
			return fmt.Errorf("missing parameter %s in state", p.Name)
		}
		if len(values) != len(p.Data) {
			return fmt.Errorf("parameter %s has %d values, expected %d", p.Name, len(values), len(p.Data))
		}
		copy(p.Data, values)
	}
	for _, bn := range n.norms() {
		if values, ok := state[bn.gamma.Name+".running_mean"]; ok {
			copy(bn.runningMean, values)
		}
		if values, ok := state[bn.gamma.Name+".running_var"]; ok {
			copy(bn.runningVar, values)
		}
	}
	return nil
}

type modelArtifact struct {
	Config Config               `json:"model_config"`
	State  map[string][]float64 `json:"model_state"`
}

// Save writes the architecture hyperparameters and weights as one artifact.
func (n *Network) Save(path string) error {
	payload, err := json.Marshal(modelArtifact{
		Config: n.cfg,
		State:  n.StateDict(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	logger.WithComponent("neural").Info().Str("path", path).Msg("Model saved")
	return nil
}

// LoadNetwork reconstructs an architecturally identical network from an
// artifact, then restores its weights.
func LoadNetwork(path string) (*Network, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	var artifact modelArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}

	n := NewNetwork(artifact.Config, 0)
	if err := n.LoadStateDict(artifact.State); err != nil {
		return nil, fmt.Errorf("failed to restore model state: %w", err)
	}

	logger.WithComponent("neural").Info().Str("path", path).Msg("Model loaded")
	return n, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func thresholdProbs(probs *mat.Dense, threshold float64) *mat.Dense {
	rows, cols := probs.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if probs.At(i, j) >= threshold {
				out.Set(i, j, 1)
			}
		}
	}
	return out
}
