package menucost

// Source names the level an effective value was resolved from.
type Source string

const (
	SourceItem    Source = "item"
	SourceGroup   Source = "group"
	SourceMenu    Source = "menu"
	SourceDefault Source = "default"
)

// Resolved is an effective attribute value together with where it came from.
type Resolved struct {
	Value  float64 `json:"value"`
	Source Source  `json:"source"`
}

const (
	defaultUptake  = 1.0
	defaultPortion = 1.0
	defaultWaste   = 0.0
)

// ResolveUptake applies item, then group, then 1.0.
func ResolveUptake(item, group *float64) Resolved {
	return resolve(defaultUptake, item, group, nil)
}

// ResolvePortion applies item, then group, then 1.0.
func ResolvePortion(item, group *float64) Resolved {
	return resolve(defaultPortion, item, group, nil)
}

// ResolveWaste applies item, then group, then the menu default, then 0.
func ResolveWaste(item, group, menuDefault *float64) Resolved {
	return resolve(defaultWaste, item, group, menuDefault)
}

func resolve(fallback float64, item, group, menu *float64) Resolved {
	switch {
	case item != nil:
		return Resolved{Value: *item, Source: SourceItem}
	case group != nil:
		return Resolved{Value: *group, Source: SourceGroup}
	case menu != nil:
		return Resolved{Value: *menu, Source: SourceMenu}
	default:
		return Resolved{Value: fallback, Source: SourceDefault}
	}
}
