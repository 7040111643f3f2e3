package lab

import "fmt"

// ParameterTemplate describes one measurable parameter of a catalog test:
// its name, unit and "min-max" reference range.
type ParameterTemplate struct {
	Name           string `json:"name"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
}

// TestDefinition is a catalog entry for an orderable test type.
type TestDefinition struct {
	Type        string              `json:"type"`
	DisplayName string              `json:"display_name"`
	Parameters  []ParameterTemplate `json:"parameters"`
}

// Catalog resolves orderable test types to their parameter templates. The
// catalog is an external collaborator; the engine only consumes it at
// order-creation time.
type Catalog interface {
	Definition(testType string) (*TestDefinition, error)
	List() []*TestDefinition
}

// StaticCatalog is a fixed in-memory catalog with a built-in panel set.
// Deployments with a terminology service plug in their own Catalog instead.
type StaticCatalog struct {
	defs  map[string]*TestDefinition
	order []string
}

func NewStaticCatalog() *StaticCatalog {
	c := &StaticCatalog{defs: make(map[string]*TestDefinition)}
	for _, d := range builtinDefinitions {
		def := d
		c.defs[def.Type] = &def
		c.order = append(c.order, def.Type)
	}
	return c
}

// Definition returns the catalog entry for testType, or ErrUnknownTestType.
func (c *StaticCatalog) Definition(testType string) (*TestDefinition, error) {
	def, ok := c.defs[testType]
	if !ok {
		return nil, fmt.Errorf("%q: %w", testType, ErrUnknownTestType)
	}
	return def, nil
}

// List returns all definitions in registration order.
func (c *StaticCatalog) List() []*TestDefinition {
	out := make([]*TestDefinition, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.defs[t])
	}
	return out
}

var builtinDefinitions = []TestDefinition{
	{
		Type:        "blood_panel",
		DisplayName: "Blood Panel",
		Parameters: []ParameterTemplate{
			{Name: "glucose", Unit: "mg/dL", ReferenceRange: "70-110"},
			{Name: "hemoglobin", Unit: "g/dL", ReferenceRange: "12-16"},
			{Name: "wbc", Unit: "10^3/uL", ReferenceRange: "4.5-11"},
			{Name: "platelets", Unit: "10^3/uL", ReferenceRange: "150-400"},
		},
	},
	{
		Type:        "urinalysis",
		DisplayName: "Urinalysis",
		Parameters: []ParameterTemplate{
			{Name: "ph", ReferenceRange: "4.5-8"},
			{Name: "specific_gravity", ReferenceRange: "1.005-1.030"},
			{Name: "appearance"},
		},
	},
	{
		Type:        "lipid_panel",
		DisplayName: "Lipid Panel",
		Parameters: []ParameterTemplate{
			{Name: "total_cholesterol", Unit: "mg/dL", ReferenceRange: "125-200"},
			{Name: "hdl", Unit: "mg/dL", ReferenceRange: "40-60"},
			{Name: "ldl", Unit: "mg/dL", ReferenceRange: "0-130"},
			{Name: "triglycerides", Unit: "mg/dL", ReferenceRange: "0-150"},
		},
	},
	{
		Type:        "liver_panel",
		DisplayName: "Liver Function Panel",
		Parameters: []ParameterTemplate{
			{Name: "alt", Unit: "U/L", ReferenceRange: "7-56"},
			{Name: "ast", Unit: "U/L", ReferenceRange: "10-40"},
			{Name: "bilirubin_total", Unit: "mg/dL", ReferenceRange: "0.1-1.2"},
			{Name: "albumin", Unit: "g/dL", ReferenceRange: "3.4-5.4"},
		},
	},
	{
		Type:        "thyroid_panel",
		DisplayName: "Thyroid Panel",
		Parameters: []ParameterTemplate{
			{Name: "tsh", Unit: "mIU/L", ReferenceRange: "0.4-4.0"},
			{Name: "free_t4", Unit: "ng/dL", ReferenceRange: "0.8-1.8"},
		},
	},
}
