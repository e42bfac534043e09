package synergy

import (
	"fmt"
	"os"

	"github.com/hearthwise/hearthwise/internal/domain"
	"gopkg.in/yaml.v3"
)

// builtinRules is the fixed compatibility table: which trigger/action domain
// combinations are worth proposing, and how valuable they tend to be.
var builtinRules = []domain.RelationshipRule{
	{
		Name:               "motion_to_light",
		TriggerDomain:      "binary_sensor",
		TriggerDeviceClass: "motion",
		ActionDomain:       "light",
		BenefitScore:       0.7,
		Complexity:         domain.ComplexityLow,
		Description:        "Turn lights on when motion is detected",
	},
	{
		Name:               "door_to_light",
		TriggerDomain:      "binary_sensor",
		TriggerDeviceClass: "door",
		ActionDomain:       "light",
		BenefitScore:       0.6,
		Complexity:         domain.ComplexityLow,
		Description:        "Turn lights on when a door opens",
	},
	{
		Name:               "occupancy_to_climate",
		TriggerDomain:      "binary_sensor",
		TriggerDeviceClass: "occupancy",
		ActionDomain:       "climate",
		BenefitScore:       0.8,
		Complexity:         domain.ComplexityMedium,
		Description:        "Adjust climate based on room occupancy",
	},
	{
		Name:               "illuminance_to_light",
		TriggerDomain:      "sensor",
		TriggerDeviceClass: "illuminance",
		ActionDomain:       "light",
		BenefitScore:       0.65,
		Complexity:         domain.ComplexityMedium,
		Description:        "Adapt lighting to ambient brightness",
	},
	{
		Name:               "leak_to_valve",
		TriggerDomain:      "binary_sensor",
		TriggerDeviceClass: "moisture",
		ActionDomain:       "valve",
		BenefitScore:       0.9,
		Complexity:         domain.ComplexityMedium,
		Description:        "Shut off water when a leak is detected",
	},
	{
		Name:               "humidity_to_fan",
		TriggerDomain:      "sensor",
		TriggerDeviceClass: "humidity",
		ActionDomain:       "fan",
		BenefitScore:       0.7,
		Complexity:         domain.ComplexityLow,
		Description:        "Run the fan when humidity climbs",
	},
	{
		Name:               "window_to_climate",
		TriggerDomain:      "binary_sensor",
		TriggerDeviceClass: "window",
		ActionDomain:       "climate",
		BenefitScore:       0.75,
		Complexity:         domain.ComplexityMedium,
		Description:        "Pause heating or cooling while a window is open",
	},
	{
		Name:               "temperature_to_climate",
		TriggerDomain:      "sensor",
		TriggerDeviceClass: "temperature",
		ActionDomain:       "climate",
		BenefitScore:       0.6,
		Complexity:         domain.ComplexityMedium,
		Description:        "Fine-tune climate from a remote temperature sensor",
	},
	{
		Name:               "sun_to_cover",
		TriggerDomain:      "sensor",
		TriggerDeviceClass: "illuminance",
		ActionDomain:       "cover",
		BenefitScore:       0.55,
		Complexity:         domain.ComplexityHigh,
		Description:        "Move covers with direct sunlight",
	},
	{
		Name:               "door_to_lock",
		TriggerDomain:      "binary_sensor",
		TriggerDeviceClass: "door",
		ActionDomain:       "lock",
		BenefitScore:       0.8,
		Complexity:         domain.ComplexityHigh,
		Description:        "Re-lock after the door closes",
	},
	{
		Name:               "motion_to_media",
		TriggerDomain:      "binary_sensor",
		TriggerDeviceClass: "motion",
		ActionDomain:       "media_player",
		BenefitScore:       0.4,
		Complexity:         domain.ComplexityMedium,
		Description:        "Pause or resume media on presence changes",
	},
	{
		Name:          "switch_to_light",
		TriggerDomain: "switch",
		ActionDomain:  "light",
		BenefitScore:  0.5,
		Complexity:    domain.ComplexityLow,
		Description:   "Tie a smart switch to nearby lights",
	},
	{
		Name:          "media_to_light",
		TriggerDomain: "media_player",
		ActionDomain:  "light",
		BenefitScore:  0.45,
		Complexity:    domain.ComplexityMedium,
		Description:   "Dim lights when playback starts",
	},
	{
		Name:          "presence_to_switch",
		TriggerDomain: "device_tracker",
		ActionDomain:  "switch",
		BenefitScore:  0.5,
		Complexity:    domain.ComplexityMedium,
		Description:   "Toggle devices on arrival or departure",
	},
}

// Catalog is the relationship rule table with an optional YAML overlay.
type Catalog struct {
	rules []domain.RelationshipRule
}

func NewCatalog() *Catalog {
	rules := make([]domain.RelationshipRule, len(builtinRules))
	copy(rules, builtinRules)
	return &Catalog{rules: rules}
}

// LoadOverlay merges rules from a YAML file over the built-in table.
// Entries sharing a name replace the built-in rule; new names append.
func (c *Catalog) LoadOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules overlay: %w", err)
	}
	var overlay []domain.RelationshipRule
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse rules overlay: %w", err)
	}
	for _, r := range overlay {
		replaced := false
		for i := range c.rules {
			if c.rules[i].Name == r.Name {
				c.rules[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			c.rules = append(c.rules, r)
		}
	}
	return nil
}

// Rules returns the catalog contents.
func (c *Catalog) Rules() []domain.RelationshipRule {
	return c.rules
}

// Match finds the first rule linking the trigger entity to the action
// entity's domain.
func (c *Catalog) Match(trigger, action domain.Entity) (domain.RelationshipRule, bool) {
	for _, r := range c.rules {
		if r.Matches(trigger.Domain(), trigger.DeviceClass, action.Domain()) {
			return r, true
		}
	}
	return domain.RelationshipRule{}, false
}

// DomainPair reports whether any rule links the two domains in either
// direction. Used to bound pairing of area-less entities.
func (c *Catalog) DomainPair(domainA, domainB string) bool {
	for _, r := range c.rules {
		if (r.TriggerDomain == domainA && r.ActionDomain == domainB) ||
			(r.TriggerDomain == domainB && r.ActionDomain == domainA) {
			return true
		}
	}
	return false
}
