package contracts

import "github.com/JonMunkholm/silverload/internal/core"

func init() {
	reorder := integer("reorder_level")
	reorder.Nullable = true

	core.Register(core.Contract{
		Table: string(ProductInventory),
		Extra: core.ExtraIgnore,
		Fields: []core.FieldSpec{
			text("product_id"),
			text("product_name"),
			text("category", core.OneOf(categories...)),
			integer("stock_level", core.NonNegative()),
			float("stock_turnover_rate", core.NonNegative()),
			text("supplier"),
			reorder,
		},
		CrossRules: []core.CrossRule{
			core.NotGreaterThan("reorder_level", "stock_level"),
		},
	})
}
