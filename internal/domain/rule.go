package domain

// RelationshipRule is one row of the static compatibility catalog: which
// trigger domain (optionally narrowed by device class) can usefully drive
// which action domain, and how valuable that link tends to be.
type RelationshipRule struct {
	Name               string     `json:"name" yaml:"name"`
	TriggerDomain      string     `json:"trigger_domain" yaml:"trigger_domain"`
	TriggerDeviceClass string     `json:"trigger_device_class,omitempty" yaml:"trigger_device_class,omitempty"`
	ActionDomain       string     `json:"action_domain" yaml:"action_domain"`
	BenefitScore       float64    `json:"benefit_score" yaml:"benefit_score"`
	Complexity         Complexity `json:"complexity" yaml:"complexity"`
	Description        string     `json:"description" yaml:"description"`
}

// Matches reports whether the rule applies to a trigger entity of the given
// domain and device class. An empty device-class constraint matches any.
func (r RelationshipRule) Matches(triggerDomain, triggerDeviceClass, actionDomain string) bool {
	if r.TriggerDomain != triggerDomain || r.ActionDomain != actionDomain {
		return false
	}
	if r.TriggerDeviceClass != "" && r.TriggerDeviceClass != triggerDeviceClass {
		return false
	}
	return true
}
