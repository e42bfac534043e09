package domain

// Device is one physical device from the hub's registry.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AreaID       string `json:"area_id,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Entity is one addressable entity from the hub's registry. An entity may
// lack an area; such entities are only paired across catalog-known domain
// combinations to bound combinatorics.
type Entity struct {
	EntityID     string `json:"entity_id"`
	DeviceID     string `json:"device_id,omitempty"`
	AreaID       string `json:"area_id,omitempty"`
	DeviceClass  string `json:"device_class,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// Domain returns the entity-type prefix of the entity id.
func (e Entity) Domain() string {
	return EntityDomain(e.EntityID)
}

// Automation is an existing automation as reported by the hub, reduced to
// the trigger/action entity ids used for exclusion filtering.
type Automation struct {
	ID              string   `json:"id"`
	Alias           string   `json:"alias,omitempty"`
	TriggerEntities []string `json:"trigger_entities"`
	ActionEntities  []string `json:"action_entities"`
}
