package contracts

import "github.com/JonMunkholm/silverload/internal/core"

func init() {
	core.Register(core.Contract{
		Table: string(CustomerInteractions),
		Extra: core.ExtraPermissive,
		Fields: []core.FieldSpec{
			text("customer_id", customerPattern),
			text("interaction_type", core.OneOf(interactionTypes...)),
			timestamp("date", core.NotInFuture()),
			text("sales_representative", salesRep),
			text("outcome", core.OneOf(outcomes...)),
			integer("agent_age", core.Between(18, 65)),
			text("gender", core.OneOf(genders...)),
		},
	})
}
