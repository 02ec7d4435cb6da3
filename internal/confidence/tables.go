package confidence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stayguard/stayguard/internal/models"
)

// tierTableFile is the on-disk shape of a table override.
type tierTableFile struct {
	Tiers map[string]TierScores `yaml:"tiers"`
}

// LoadTierTable reads an alternate scoring table from a YAML file. Markets
// with different source landscapes ship their own table; the file must cover
// every recognised tier with values in [0,1].
func LoadTierTable(path string) (TierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier table: %w", err)
	}

	var file tierTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tier table: %w", err)
	}

	table := make(TierTable, len(file.Tiers))
	for name, scores := range file.Tiers {
		tier := models.ParseCredibilityTier(name)
		for _, v := range []float64{scores.One, scores.Two, scores.TwoPlus} {
			if v < 0 || v > 1 {
				return nil, fmt.Errorf("tier %s: score %v out of range [0,1]", name, v)
			}
		}
		table[tier] = scores
	}

	for _, tier := range []models.CredibilityTier{
		models.TierOfficial, models.TierMajorNews, models.TierOtherNews, models.TierSocial,
	} {
		if _, ok := table[tier]; !ok {
			return nil, fmt.Errorf("tier table missing entry for %s", tier)
		}
	}

	return table, nil
}
