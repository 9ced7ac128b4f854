package contracts

import "github.com/JonMunkholm/silverload/internal/core"

func init() {
	registerSalesData()
	registerRegionalSalesTargets()
}

func registerSalesData() {
	core.Register(core.Contract{
		Table: string(SalesData),
		Extra: core.ExtraPermissive,
		Fields: []core.FieldSpec{
			integer("order_id", core.NonNegative()),
			timestamp("date", core.NotInFuture()),
			text("region", core.OneOf(regions...)),
			text("sales_representative", salesRep),
			text("customer", customerPattern),
			text("product", core.Matches(`^Product [A-Z]$`, "'Product X', where X is an uppercase letter")),
			text("channel", core.OneOf(channels...)),
			text("geo_location", core.OneOf(geoLocations...)),
			integer("quantity", core.NonNegative()),
			float("sales_amount", core.NonNegative()),
		},
	})
}

func registerRegionalSalesTargets() {
	core.Register(core.Contract{
		Table: string(RegionalSalesTargets),
		Extra: core.ExtraPermissive,
		Fields: []core.FieldSpec{
			text("region", core.OneOf(regions...)),
			float("quarter_1_target", core.NonNegative()),
			float("quarter_2_target", core.NonNegative()),
			float("quarter_3_target", core.NonNegative()),
			float("quarter_4_target", core.NonNegative()),
			float("yearly_target", core.NonNegative()),
		},
		CrossRules: []core.CrossRule{
			core.SumEquals("yearly_target",
				"quarter_1_target", "quarter_2_target", "quarter_3_target", "quarter_4_target"),
		},
	})
}
