package models

// Tier is the depth of checks requested from the vendor.
type Tier string

const (
	TierBasic         Tier = "basic"
	TierStandard      Tier = "standard"
	TierComprehensive Tier = "comprehensive"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierBasic, TierStandard, TierComprehensive:
		return true
	}
	return false
}

func (t Tier) String() string {
	return string(t)
}

// DefaultTier is used when a request omits the tier.
const DefaultTier = TierStandard
