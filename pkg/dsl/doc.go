/*
Package dsl builds machine schemas in Go instead of YAML or JSON.

	b := dsl.New("order")
	b.State("new").Describe("Waiting for payment").
		On("pay", "paid").Guard("minTotal", dsl.Param("amount", 10)).Action("receipt").
		On("cancel", "cancelled")
	b.State("paid").On("ship", "shipped")
	b.State("shipped").Final()
	b.State("cancelled").Final()

	loader, err := b.Build()
	// ... pass loader to fsmtask.New("order", fsmtask.WithLoader(loader))
*/
package dsl
