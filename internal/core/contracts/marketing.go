package contracts

import "github.com/JonMunkholm/silverload/internal/core"

func init() {
	core.Register(core.Contract{
		Table: string(MarketingCampaigns),
		Extra: core.ExtraPermissive,
		Fields: []core.FieldSpec{
			text("campaign_id", core.Matches(`^CAMP\d+$`, "'CAMP<digits>' (e.g., CAMP123)")),
			timestamp("start_date", core.NotInFuture()),
			timestamp("end_date"),
			text("channel", core.OneOf(channels...)),
			integer("total_reach", core.NonNegative()),
			integer("total_conversions", core.NonNegative()),
			float("conversion_rate_percent", core.NonNegative()),
			float("revenue_generated", core.NonNegative()),
		},
		CrossRules: []core.CrossRule{
			core.StrictlyAfter("end_date", "start_date"),
		},
	})
}
