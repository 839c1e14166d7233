package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bobmcallan/drip/internal/models"
	"github.com/bobmcallan/drip/internal/storage"
)

// DefaultSteps returns the built-in migration steps
func DefaultSteps() []Step {
	return []Step{
		{
			Version:     "1.0.0",
			Description: "move unprefixed keys into the drip_ namespace",
			Apply:       migrateToV1,
		},
	}
}

// migrateToV1 copies each legacy key into its namespaced key. Absent
// legacy keys are skipped so existing namespaced data is kept. A legacy
// value that does not decode fails the step.
func migrateToV1(ctx context.Context, gw *storage.Gateway) error {
	if err := copyLegacy(ctx, gw, storage.LegacyKeyHoldings, storage.KeyHoldings, func(raw []byte) (any, error) {
		var v []models.Holding
		err := json.Unmarshal(raw, &v)
		if v == nil {
			v = []models.Holding{}
		}
		return v, err
	}); err != nil {
		return err
	}

	if err := copyLegacy(ctx, gw, storage.LegacyKeyDividends, storage.KeyDividends, func(raw []byte) (any, error) {
		var v []models.Dividend
		err := json.Unmarshal(raw, &v)
		if v == nil {
			v = []models.Dividend{}
		}
		return v, err
	}); err != nil {
		return err
	}

	if err := copyLegacy(ctx, gw, storage.LegacyKeyScenarios, storage.KeyScenarios, func(raw []byte) (any, error) {
		v := models.DefaultScenarios()
		err := json.Unmarshal(raw, &v)
		return v, err
	}); err != nil {
		return err
	}

	return copyLegacy(ctx, gw, storage.LegacyKeyCurrentScenario, storage.KeyCurrentScenario, func(raw []byte) (any, error) {
		name, err := models.ParseScenarioName(decodeString(raw))
		if err != nil {
			return nil, err
		}
		return name, nil
	})
}

func copyLegacy(ctx context.Context, gw *storage.Gateway, from, to string, decode func([]byte) (any, error)) error {
	raw, err := gw.LoadRaw(ctx, from)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", from, err)
	}

	value, err := decode(raw)
	if err != nil {
		return fmt.Errorf("legacy %s is unreadable: %w", from, err)
	}

	if err := gw.Save(ctx, to, value); err != nil {
		return err
	}
	return nil
}
