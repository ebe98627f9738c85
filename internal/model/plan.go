package model

// PlanOffer describes a purchasable credit package.
type PlanOffer struct {
	Name        string
	Label       string
	Credits     int
	AmountCents int64
}

// PlanOffers is the credit package catalog shown at checkout.
// The free plan is granted at signup and never purchased.
var PlanOffers = map[string]PlanOffer{
	PlanPro: {
		Name:        PlanPro,
		Label:       "Pro Package",
		Credits:     120,
		AmountCents: 4000,
	},
	PlanPremium: {
		Name:        PlanPremium,
		Label:       "Premium Package",
		Credits:     2000,
		AmountCents: 19900,
	},
}
