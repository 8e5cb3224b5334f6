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

		collection := core.NewBaseCollection("earnings")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "seller",
				Required:     true,
				MaxSelect:    1,
				CollectionId: "_pb_users_auth_",
			},
			&core.NumberField{
				Name:     "amount",
				Required: true,
				Min:      types.Pointer(0.0),
			},
			&core.RelationField{
				Name:         "transaction",
				Required:     true,
				MaxSelect:    1,
				CollectionId: transactions.Id,
			},
			&core.DateField{
				Name:     "earned_at",
				Required: true,
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

		// A settled sale credits the seller exactly once; the unique index
		// backstops replayed callbacks at the storage layer.
		collection.AddIndex("idx_earnings_transaction", true, "`transaction`", "")
		collection.AddIndex("idx_earnings_seller_earned", false, "seller, earned_at", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("earnings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
