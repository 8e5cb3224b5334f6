package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		tickets, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("transactions")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "ticket",
				Required:     true,
				MaxSelect:    1,
				CollectionId: tickets.Id,
			},
			&core.RelationField{
				Name:         "buyer",
				Required:     true,
				MaxSelect:    1,
				CollectionId: "_pb_users_auth_",
			},
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
			&core.SelectField{
				Name:      "payment_method",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"cash", "bank_transfer", "credit_card", "wallet"},
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "success", "failed"},
			},
			&core.TextField{
				Name: "gateway_reference",
				Max:  255,
			},
			&core.DateField{
				Name: "settled_at",
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

		collection.AddIndex("idx_transactions_status_created", false, "status, created", "")
		collection.AddIndex("idx_transactions_buyer", false, "buyer", "")
		collection.AddIndex("idx_transactions_seller", false, "seller", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("transactions")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
