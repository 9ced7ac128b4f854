// Package contracts registers the silver table contracts with the core registry.
// Import this package to ensure all contracts are registered.
package contracts

import "github.com/JonMunkholm/silverload/internal/core"

// TableID names a supported silver table.
type TableID string

const (
	SalesData            TableID = "sales_data"
	CustomerInteractions TableID = "customer_interactions"
	ProductInventory     TableID = "product_inventory"
	MarketingCampaigns   TableID = "marketing_campaigns"
	RegionalSalesTargets TableID = "regional_sales_targets"
)

// Tables returns every supported table id.
func Tables() []TableID {
	return []TableID{SalesData, CustomerInteractions, ProductInventory, MarketingCampaigns, RegionalSalesTargets}
}

// Shared vocabularies.
var (
	regions          = []string{"North", "South", "East", "West"}
	channels         = []string{"Retail", "Wholesale", "Online"}
	geoLocations     = []string{"Urban", "Rural", "Suburban"}
	interactionTypes = []string{"Call", "Email", "Meeting", "Follow-up"}
	outcomes         = []string{"Success", "Pending", "Failure"}
	genders          = []string{"Male", "Female"}
	categories       = []string{"Electronics", "Outdoor", "Home", "Apparel", "Sports"}
)

// Reusable field checks.
var (
	customerPattern = core.Matches(`^Customer \d+$`, "'Customer X', where X is a number")
	salesRep        = core.PrefixedLetters("Rep ")
)

func text(name string, checks ...core.Check) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldText, Checks: checks}
}

func integer(name string, checks ...core.Check) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldInteger, Checks: checks}
}

func float(name string, checks ...core.Check) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldFloat, Checks: checks}
}

func timestamp(name string, checks ...core.Check) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldTimestamp, Checks: checks}
}
