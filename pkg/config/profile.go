package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/covenant/pkg/decay"
	"github.com/Mindburn-Labs/covenant/pkg/evolution"
	"github.com/Mindburn-Labs/covenant/pkg/forecast"
	"github.com/Mindburn-Labs/covenant/pkg/trigger"
)

var (
	ErrInvalidProfile     = errors.New("config: invalid profile")
	ErrUnsupportedVersion = errors.New("config: unsupported profile version")
)

// SupportedVersions is the semver constraint profile versions must satisfy.
const SupportedVersions = "^1.0"

const profileSchemaURL = "https://covenant.schemas.local/profile.schema.json"

//go:embed schema/profile.schema.json
var profileSchemaJSON string

var profileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(profileSchemaURL, strings.NewReader(profileSchemaJSON)); err != nil {
		return nil, fmt.Errorf("profile schema load failed: %w", err)
	}
	return c.Compile(profileSchemaURL)
})

// Profile is a covenant's evolution, decay, forecasting and scoring
// configuration as authored in YAML.
type Profile struct {
	Version            string                       `yaml:"version" json:"version"`
	CovenantID         string                       `yaml:"covenant_id" json:"covenant_id"`
	Description        string                       `yaml:"description,omitempty" json:"description,omitempty"`
	GovernanceApproval bool                         `yaml:"governance_approval" json:"governance_approval"`
	Triggers           []evolution.EvolutionTrigger `yaml:"triggers" json:"triggers"`
	Transitions        []TransitionSpec             `yaml:"transitions" json:"transitions"`
	Decay              []ShapeSpec                  `yaml:"decay,omitempty" json:"decay,omitempty"`
	ForecasterConfig   *forecast.Config             `yaml:"forecaster,omitempty" json:"forecaster,omitempty"`
	Continuous         *ContinuousSpec              `yaml:"continuous,omitempty" json:"continuous,omitempty"`
	Expiration         *ExpirationSpec              `yaml:"expiration,omitempty" json:"expiration,omitempty"`
}

// TransitionSpec is a transition with a Go duration string cooldown.
type TransitionSpec struct {
	FromConstraint string `yaml:"from_constraint" json:"from_constraint"`
	ToConstraint   string `yaml:"to_constraint" json:"to_constraint"`
	Trigger        string `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	Reversible     bool   `yaml:"reversible,omitempty" json:"reversible,omitempty"`
	Cooldown       string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}

// ShapeSpec is one decay shape. Fields not used by Kind are ignored.
type ShapeSpec struct {
	Kind        decay.Kind         `yaml:"kind" json:"kind"`
	Rate        float64            `yaml:"rate,omitempty" json:"rate,omitempty"`
	Amplitude   *float64           `yaml:"amplitude,omitempty" json:"amplitude,omitempty"`
	Phase       float64            `yaml:"phase,omitempty" json:"phase,omitempty"`
	Breakpoints []decay.Breakpoint `yaml:"breakpoints,omitempty" json:"breakpoints,omitempty"`
}

// ContinuousSpec configures the continuous trigger scorer.
type ContinuousSpec struct {
	ActivationThreshold *float64         `yaml:"activation_threshold,omitempty" json:"activation_threshold,omitempty"`
	Triggers            []trigger.Config `yaml:"triggers" json:"triggers"`
}

// ExpirationSpec holds the static inputs of an expiration forecast.
type ExpirationSpec struct {
	InitialWeight   float64 `yaml:"initial_weight" json:"initial_weight"`
	DecayRate       float64 `yaml:"decay_rate" json:"decay_rate"`
	Lifetime        string  `yaml:"lifetime" json:"lifetime"`
	Threshold       float64 `yaml:"threshold" json:"threshold"`
	ViolationImpact float64 `yaml:"violation_impact" json:"violation_impact"`
}

// LoadProfile loads profile_<name>.yaml from profilesDir.
func LoadProfile(profilesDir, name string) (*Profile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}
	return p, nil
}

// LoadProfileFile loads a profile from an explicit path.
func LoadProfileFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

// LoadAllProfiles loads every profile_*.yaml in profilesDir keyed by covenant id.
func LoadAllProfiles(profilesDir string) (map[string]*Profile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*Profile, len(matches))
	for _, path := range matches {
		p, err := LoadProfileFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := profiles[p.CovenantID]; dup {
			return nil, fmt.Errorf("%w: duplicate covenant_id %q in %s", ErrInvalidProfile, p.CovenantID, path)
		}
		profiles[p.CovenantID] = p
	}
	return profiles, nil
}

// ParseProfile validates data against the profile schema, checks the
// version and decodes it. Identifiers are NFC-normalized.
func ParseProfile(data []byte) (*Profile, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	if err := checkVersion(p.Version); err != nil {
		return nil, err
	}
	p.normalize()
	return &p, nil
}

// validateDocument checks a decoded YAML document against the schema. The
// document is round-tripped through JSON so numbers and maps take the
// shapes the validator expects.
func validateDocument(doc any) error {
	schema, err := profileSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: schema validation failed: %w", ErrInvalidProfile, err)
	}
	return nil
}

func checkVersion(version string) error {
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsupportedVersion, version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, v, SupportedVersions)
	}
	return nil
}

func (p *Profile) normalize() {
	p.CovenantID = norm.NFC.String(p.CovenantID)
	for i := range p.Triggers {
		p.Triggers[i].ConstraintID = norm.NFC.String(p.Triggers[i].ConstraintID)
		p.Triggers[i].Condition = norm.NFC.String(p.Triggers[i].Condition)
	}
	for i := range p.Transitions {
		p.Transitions[i].FromConstraint = norm.NFC.String(p.Transitions[i].FromConstraint)
		p.Transitions[i].ToConstraint = norm.NFC.String(p.Transitions[i].ToConstraint)
		p.Transitions[i].Trigger = norm.NFC.String(p.Transitions[i].Trigger)
	}
}

// Policy builds and validates the evolution policy.
func (p *Profile) Policy() (evolution.EvolutionPolicy, error) {
	transitions := make([]evolution.TransitionFunction, len(p.Transitions))
	for i, t := range p.Transitions {
		var cooldown time.Duration
		if t.Cooldown != "" {
			d, err := time.ParseDuration(t.Cooldown)
			if err != nil {
				return evolution.EvolutionPolicy{}, fmt.Errorf("%w: transitions[%d].cooldown: %w", ErrInvalidProfile, i, err)
			}
			cooldown = d
		}
		transitions[i] = evolution.TransitionFunction{
			FromConstraint: t.FromConstraint,
			ToConstraint:   t.ToConstraint,
			Trigger:        t.Trigger,
			Reversible:     t.Reversible,
			Cooldown:       cooldown,
		}
	}
	return evolution.DefineEvolution(p.CovenantID, p.Triggers, transitions, p.GovernanceApproval)
}

// DecayModel builds the decay model. A profile without shapes fails.
func (p *Profile) DecayModel() (*decay.Model, error) {
	shapes := make([]decay.Shape, 0, len(p.Decay))
	for i, s := range p.Decay {
		switch s.Kind {
		case decay.KindExponential:
			shapes = append(shapes, decay.Exponential{Rate: s.Rate})
		case decay.KindLinear:
			shapes = append(shapes, decay.Linear{Rate: s.Rate})
		case decay.KindStep:
			shapes = append(shapes, decay.Step{Breakpoints: s.Breakpoints})
		case decay.KindSeasonal:
			seasonal := decay.NewSeasonal(s.Rate)
			if s.Amplitude != nil {
				seasonal.Amplitude = *s.Amplitude
			}
			seasonal.Phase = s.Phase
			shapes = append(shapes, seasonal)
		default:
			return nil, fmt.Errorf("%w: decay[%d].kind %q is unknown", ErrInvalidProfile, i, s.Kind)
		}
	}
	return decay.NewModel(shapes...)
}

// Forecaster builds the violation forecaster.
func (p *Profile) Forecaster() (*forecast.Forecaster, error) {
	if p.ForecasterConfig == nil {
		return nil, fmt.Errorf("%w: forecaster section is missing", ErrInvalidProfile)
	}
	return forecast.NewForecaster(*p.ForecasterConfig)
}

// ContinuousTrigger builds the continuous trigger scorer.
func (p *Profile) ContinuousTrigger() (*trigger.ContinuousTrigger, error) {
	if p.Continuous == nil {
		return nil, fmt.Errorf("%w: continuous section is missing", ErrInvalidProfile)
	}
	threshold := trigger.DefaultActivationThreshold
	if p.Continuous.ActivationThreshold != nil {
		threshold = *p.Continuous.ActivationThreshold
	}
	return trigger.NewContinuousTrigger(p.Continuous.Triggers, threshold)
}

// ExpirationInput combines the static expiration parameters with the
// observation window supplied by the caller.
func (p *Profile) ExpirationInput(issuedAt, currentTime time.Time, violations []decay.ViolationRecord) (decay.ExpirationInput, error) {
	if p.Expiration == nil {
		return decay.ExpirationInput{}, fmt.Errorf("%w: expiration section is missing", ErrInvalidProfile)
	}
	lifetime, err := time.ParseDuration(p.Expiration.Lifetime)
	if err != nil {
		return decay.ExpirationInput{}, fmt.Errorf("%w: expiration.lifetime: %w", ErrInvalidProfile, err)
	}
	return decay.ExpirationInput{
		InitialWeight:   p.Expiration.InitialWeight,
		DecayRate:       p.Expiration.DecayRate,
		IssuedAt:        issuedAt,
		Lifetime:        lifetime,
		Threshold:       p.Expiration.Threshold,
		ViolationImpact: p.Expiration.ViolationImpact,
		Violations:      violations,
		CurrentTime:     currentTime,
	}, nil
}
