package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		transactions, err := app.FindCollectionByNameOrId("transactions")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("payments")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "transaction",
				Required:     true,
				MaxSelect:    1,
				CollectionId: transactions.Id,
			},
			&core.RelationField{
				Name:         "payer",
				Required:     true,
				MaxSelect:    1,
				CollectionId: "_pb_users_auth_",
			},
			&core.SelectField{
				Name:      "method",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"cash", "bank_transfer", "credit_card", "wallet"},
			},
			&core.NumberField{
				Name:     "amount",
				Required: true,
				Min:      types.Pointer(0.0),
			},
			&core.TextField{
				Name: "title",
				Max:  255,
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "success", "failed", "cancelled"},
			},
			&core.TextField{
				Name: "gateway_reference",
				Max:  255,
			},
			&core.DateField{
				Name: "paid_at",
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
			&core.AutodateField{
				Name:     "updated",
				OnCreate: true,
				OnUpdate: true,
			},
		)

		// One payment per transaction.
		collection.AddIndex("idx_payments_transaction", true, "`transaction`", "")
		collection.AddIndex("idx_payments_payer", false, "payer", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("payments")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
