package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/climatehealth/healthrisk/pkg/logger"
)

// ErrNotFitted is returned when a transform is requested before Fit or Load.
var ErrNotFitted = errors.New("data processor must be fitted before transform")

// DataProcessor is the feature pipeline for health risk prediction. Fit
// engineers derived features, fits the imputer on the augmented frame and the
// scaler on the imputed output, then freezes the resulting column schema.
// Transform reconciles any later input against that schema. Once fitted the
// processor is read-only and safe for concurrent Transform calls.
type DataProcessor struct {
	scalerType         string
	imputerType        string
	featureEngineering bool

	imputer *imputer
	scaler  *scaler

	isFitted           bool
	featureNames       []string
	fittedFeatureNames []string
	targetNames        []string
}

// NewDataProcessor creates a processor with the requested scaler and imputer
// kinds. Unknown kinds are a configuration error.
func NewDataProcessor(scalerType, imputerType string, featureEngineering bool) (*DataProcessor, error) {
	sc, err := newScaler(scalerType)
	if err != nil {
		return nil, err
	}
	im, err := newImputer(imputerType)
	if err != nil {
		return nil, err
	}
	return &DataProcessor{
		scalerType:         scalerType,
		imputerType:        imputerType,
		featureEngineering: featureEngineering,
		imputer:            im,
		scaler:             sc,
	}, nil
}

// Fit computes engineered features, fits the imputer on the augmented frame,
// then fits the scaler on the imputed output. The pre- and post-engineering
// column lists are stored so later inputs can be reconciled.
func (p *DataProcessor) Fit(X *Frame, y *Frame) error {
	p.featureNames = X.Columns()

	if p.featureEngineering {
		X = EngineerFeatures(X)
	}
	p.fittedFeatureNames = X.Columns()

	m, err := X.Matrix(p.fittedFeatureNames)
	if err != nil {
		return fmt.Errorf("failed to build feature matrix: %w", err)
	}

	p.imputer.fit(m)
	imputed := p.imputer.transform(m)
	p.scaler.fit(imputed)

	if y != nil {
		p.targetNames = y.Columns()
	}

	p.isFitted = true
	logger.WithComponent("processor").Info().
		Int("features", len(p.fittedFeatureNames)).
		Str("scaler", p.scalerType).
		Str("imputer", p.imputerType).
		Msg("Data processor fitted")

	return nil
}

// Transform reapplies feature engineering, reconciles the input schema
// against the fitted one and applies the fitted imputer and scaler. Fitted
// columns missing from the input are zero-filled; unseen extra columns are
// dropped by the reorder.
func (p *DataProcessor) Transform(X *Frame) (*mat.Dense, error) {
	if !p.isFitted {
		return nil, ErrNotFitted
	}

	if p.featureEngineering {
		X = EngineerFeatures(X)
	} else {
		X = X.Copy()
	}

	if missing := p.reconcileSchema(X); len(missing) > 0 {
		logger.WithComponent("processor").Warn().
			Strs("columns", missing).
			Msg("Missing fitted features, filling with zeros")
	}

	m, err := X.Matrix(p.fittedFeatureNames)
	if err != nil {
		return nil, fmt.Errorf("failed to build feature matrix: %w", err)
	}

	return p.scaler.transform(p.imputer.transform(m)), nil
}

// reconcileSchema zero-fills fitted columns absent from the frame and returns
// their names. Zero-filling (rather than imputing) missing fitted columns is
// deliberate: engineered columns that could not be derived carry no signal at
// inference time.
func (p *DataProcessor) reconcileSchema(X *Frame) []string {
	var missing []string
	for _, name := range p.fittedFeatureNames {
		if X.Has(name) {
			continue
		}
		missing = append(missing, name)
		X.setColumn(name, make([]float64, X.Rows()))
	}
	return missing
}

// FitTransform fits the processor and transforms the same frame.
func (p *DataProcessor) FitTransform(X *Frame, y *Frame) (*mat.Dense, error) {
	if err := p.Fit(X, y); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// InverseTransform maps scaled values back to the imputed scale. Only the
// scaler stage is inverted.
func (p *DataProcessor) InverseTransform(X *mat.Dense) (*mat.Dense, error) {
	if !p.isFitted {
		return nil, ErrNotFitted
	}
	return p.scaler.inverseTransform(X), nil
}

// PrepareInput builds a one-row frame from a flat field map. Every original
// fitted input column is present; fields the map does not supply are missing
// values for the downstream imputer.
func (p *DataProcessor) PrepareInput(record map[string]float64) (*Frame, error) {
	return p.PrepareBatch([]map[string]float64{record})
}

// PrepareBatch builds a frame from flat field maps, one row per record,
// aligned to the original fitted input columns. Fields outside the fitted
// schema are dropped; columns no record supplies are all-missing.
func (p *DataProcessor) PrepareBatch(records []map[string]float64) (*Frame, error) {
	if !p.isFitted {
		return nil, ErrNotFitted
	}
	raw := FrameFromRecords(records)
	f := NewFrame(len(records))
	for _, name := range p.featureNames {
		col, ok := raw.Column(name)
		if !ok {
			col = make([]float64, len(records))
			for i := range col {
				col[i] = math.NaN()
			}
		}
		f.setColumn(name, col)
	}
	return f, nil
}

// IsFitted reports whether the processor has been fitted or loaded.
func (p *DataProcessor) IsFitted() bool { return p.isFitted }

// FeatureNames returns the original input columns seen at fit time.
func (p *DataProcessor) FeatureNames() []string {
	out := make([]string, len(p.featureNames))
	copy(out, p.featureNames)
	return out
}

// FittedFeatureNames returns the post-engineering columns in canonical order.
func (p *DataProcessor) FittedFeatureNames() ([]string, error) {
	if !p.isFitted {
		return nil, ErrNotFitted
	}
	out := make([]string, len(p.fittedFeatureNames))
	copy(out, p.fittedFeatureNames)
	return out, nil
}

// TargetNames returns the target columns seen at fit time.
func (p *DataProcessor) TargetNames() []string {
	out := make([]string, len(p.targetNames))
	copy(out, p.targetNames)
	return out
}

// processorArtifact is the on-disk representation of a fitted processor.
// NaN values survive JSON round-trips as nulls.
type processorArtifact struct {
	ScalerType         string       `json:"scaler_type"`
	ImputerType        string       `json:"imputer_type"`
	FeatureEngineering bool         `json:"feature_engineering"`
	IsFitted           bool         `json:"is_fitted"`
	FeatureNames       []string     `json:"feature_names"`
	FittedFeatureNames []string     `json:"fitted_feature_names"`
	TargetNames        []string     `json:"target_names"`
	ImputerMedians     []*float64   `json:"imputer_medians"`
	ImputerSamples     [][]*float64 `json:"imputer_samples,omitempty"`
	ScalerCenter       []float64    `json:"scaler_center"`
	ScalerScale        []float64    `json:"scaler_scale"`
}

// Save writes the full fitted state to a JSON artifact.
func (p *DataProcessor) Save(path string) error {
	artifact := processorArtifact{
		ScalerType:         p.scalerType,
		ImputerType:        p.imputerType,
		FeatureEngineering: p.featureEngineering,
		IsFitted:           p.isFitted,
		FeatureNames:       p.featureNames,
		FittedFeatureNames: p.fittedFeatureNames,
		TargetNames:        p.targetNames,
		ImputerMedians:     encodeNullable(p.imputer.medians),
		ScalerCenter:       p.scaler.center,
		ScalerScale:        p.scaler.scale,
	}
	for _, sample := range p.imputer.samples {
		artifact.ImputerSamples = append(artifact.ImputerSamples, encodeNullable(sample))
	}

	payload, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal processor: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write processor artifact: %w", err)
	}

	logger.WithComponent("processor").Info().Str("path", path).Msg("Data processor saved")
	return nil
}

// LoadDataProcessor restores a fitted processor from a JSON artifact.
func LoadDataProcessor(path string) (*DataProcessor, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read processor artifact: %w", err)
	}

	var artifact processorArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal processor: %w", err)
	}

	p, err := NewDataProcessor(artifact.ScalerType, artifact.ImputerType, artifact.FeatureEngineering)
	if err != nil {
		return nil, err
	}

	p.isFitted = artifact.IsFitted
	p.featureNames = artifact.FeatureNames
	p.fittedFeatureNames = artifact.FittedFeatureNames
	p.targetNames = artifact.TargetNames
	p.imputer.medians = decodeNullable(artifact.ImputerMedians)
	for _, sample := range artifact.ImputerSamples {
		p.imputer.samples = append(p.imputer.samples, decodeNullable(sample))
	}
	p.scaler.center = artifact.ScalerCenter
	p.scaler.scale = artifact.ScalerScale

	logger.WithComponent("processor").Info().Str("path", path).Msg("Data processor loaded")
	return p, nil
}

func encodeNullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}

func decodeNullable(values []*float64) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	return out
}
