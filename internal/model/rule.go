package model

// Comparator is a rule comparison symbol.
type Comparator string

const (
	CompareEqual            Comparator = "eq"
	CompareNotEqual         Comparator = "neq"
	CompareGreaterThan      Comparator = "gt"
	CompareGreaterThanEqual Comparator = "gte"
	CompareLessThan         Comparator = "lt"
	CompareLessThanEqual    Comparator = "lte"
)

// Rule is a declarative predicate-to-action mapping evaluated against
// telemetry: when [entity].[field] <compare> [value] from source_device,
// perform operation on destination_device.
type Rule struct {
	ID                int         `json:"id"`
	SourceDevice      string      `json:"source_device"`
	Entity            string      `json:"entity"`
	Field             string      `json:"field"`
	Compare           Comparator  `json:"compare"`
	Value             interface{} `json:"value"`
	DestinationDevice string      `json:"destination_device"`
	Operation         string      `json:"operation"`
	Enabled           bool        `json:"enabled"`
}

// Schedule is a fixed-cadence job row: every Duration seconds, publish the
// configured on/off command to Target.
type Schedule struct {
	ID        int    `json:"id"`
	Target    string `json:"target"`
	Opt       bool   `json:"opt"`
	Duration  int    `json:"duration"`
	IsDeleted bool   `json:"is_deleted"`
}
