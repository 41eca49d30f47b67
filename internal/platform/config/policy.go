package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FineBand charges Amount when the monthly score is at or above MinScore and
// below the next higher band.
type FineBand struct {
	MinScore float64 `koanf:"min_score"`
	Amount   float64 `koanf:"amount"`
}

// Policy is the business-configured KPI table: tier cutoffs, the fine and gift
// schedules and the marking requirements.
type Policy struct {
	BonusCutoff          float64    `koanf:"bonus_cutoff"`
	AppreciationCutoff   float64    `koanf:"appreciation_cutoff"`
	ImprovementCutoff    float64    `koanf:"improvement_cutoff"`
	FineSchedule         []FineBand `koanf:"fine_schedule"`
	BonusGift            float64    `koanf:"bonus_gift"`
	AppreciationGift     float64    `koanf:"appreciation_gift"`
	RepeatIncompleteStep float64    `koanf:"repeat_incomplete_step"`
	MaxFineMultiplier    float64    `koanf:"max_fine_multiplier"`
	RequiredMarkers      int        `koanf:"required_markers"`
	Criteria             []string   `koanf:"criteria"`
}

var (
	ErrPolicyCutoffOrder = errors.New("policy cutoffs must satisfy bonus >= appreciation >= improvement")
	ErrPolicyNegative    = errors.New("policy amounts must not be negative")
	ErrPolicyMultiplier  = errors.New("max_fine_multiplier must be at least 1")
	ErrPolicyMarkers     = errors.New("required_markers must be at least 1")
	ErrPolicyCriteria    = errors.New("criteria must name at least one criterion")
)

// DefaultPolicy returns the policy used when no file or env override is given.
func DefaultPolicy() Policy {
	return Policy{
		BonusCutoff:        90,
		AppreciationCutoff: 80,
		ImprovementCutoff:  60,
		FineSchedule: []FineBand{
			{MinScore: 50, Amount: 500},
			{MinScore: 40, Amount: 1000},
			{MinScore: 0, Amount: 1500},
		},
		BonusGift:            2000,
		AppreciationGift:     1000,
		RepeatIncompleteStep: 0.5,
		MaxFineMultiplier:    2,
		RequiredMarkers:      1,
		Criteria:             []string{"attendance", "delivery", "quality", "teamwork"},
	}
}

// LoadPolicy layers defaults, the optional YAML file at path and KPI_* env
// vars (low to high precedence).
func LoadPolicy(path string) (Policy, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Policy{}, fmt.Errorf("load policy file %s: %w", path, err)
		}
	}

	// KPI_BONUS_CUTOFF -> bonus_cutoff
	envProvider := env.Provider("KPI_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "KPI_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Policy{}, fmt.Errorf("load policy env: %w", err)
	}
	// KPI_POLICY_FILE names the file, it is not a policy key.
	k.Delete("policy_file")

	var policy Policy
	if err := k.UnmarshalWithConf("", &policy, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	policy.fillDefaults(k)
	policy.normalize()
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// fillDefaults copies DefaultPolicy values for every key the sources left unset.
func (p *Policy) fillDefaults(k *koanf.Koanf) {
	def := DefaultPolicy()
	floats := map[string]struct {
		dst *float64
		val float64
	}{
		"bonus_cutoff":           {&p.BonusCutoff, def.BonusCutoff},
		"appreciation_cutoff":    {&p.AppreciationCutoff, def.AppreciationCutoff},
		"improvement_cutoff":     {&p.ImprovementCutoff, def.ImprovementCutoff},
		"bonus_gift":             {&p.BonusGift, def.BonusGift},
		"appreciation_gift":      {&p.AppreciationGift, def.AppreciationGift},
		"repeat_incomplete_step": {&p.RepeatIncompleteStep, def.RepeatIncompleteStep},
		"max_fine_multiplier":    {&p.MaxFineMultiplier, def.MaxFineMultiplier},
	}
	for key, field := range floats {
		if !k.Exists(key) {
			*field.dst = field.val
		}
	}
	if !k.Exists("required_markers") {
		p.RequiredMarkers = def.RequiredMarkers
	}
	if !k.Exists("fine_schedule") {
		p.FineSchedule = def.FineSchedule
	}
	if !k.Exists("criteria") {
		p.Criteria = def.Criteria
	}
}

func (p *Policy) normalize() {
	sort.SliceStable(p.FineSchedule, func(i, j int) bool {
		return p.FineSchedule[i].MinScore > p.FineSchedule[j].MinScore
	})
	criteria := make([]string, 0, len(p.Criteria))
	seen := map[string]bool{}
	for _, c := range p.Criteria {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		criteria = append(criteria, c)
	}
	p.Criteria = criteria
}

func (p Policy) Validate() error {
	if p.BonusCutoff < p.AppreciationCutoff || p.AppreciationCutoff < p.ImprovementCutoff {
		return ErrPolicyCutoffOrder
	}
	if p.BonusGift < 0 || p.AppreciationGift < 0 || p.RepeatIncompleteStep < 0 {
		return ErrPolicyNegative
	}
	for _, band := range p.FineSchedule {
		if band.Amount < 0 {
			return ErrPolicyNegative
		}
	}
	if p.MaxFineMultiplier < 1 {
		return ErrPolicyMultiplier
	}
	if p.RequiredMarkers < 1 {
		return ErrPolicyMarkers
	}
	if len(p.Criteria) == 0 {
		return ErrPolicyCriteria
	}
	return nil
}

// BaseFine returns the scheduled fine for score. The schedule is sorted by
// MinScore descending; a score below every band pays the lowest band.
func (p Policy) BaseFine(score float64) float64 {
	if len(p.FineSchedule) == 0 {
		return 0
	}
	for _, band := range p.FineSchedule {
		if score >= band.MinScore {
			return band.Amount
		}
	}
	return p.FineSchedule[len(p.FineSchedule)-1].Amount
}
