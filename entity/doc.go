// Package entity provides reference-capable document entities.
//
// Embed Base in a struct to give it a stable identity stored under "_id"
// and the ability to persist itself:
//
//	type Account struct {
//	    entity.Base
//	    Owner string
//	}
//
//	acc := &Account{Owner: "ann"}
//	acc.Attach(acc, store.Collection("accounts"), m)
//	ok := acc.SaveSync(ctx, true)
//
// Pointers to such structs satisfy docmap.Referenceable, so fields holding
// them can be stored as references and cascade-saved by the mapper:
//
//	mapper.RegisterReference(m, entity.Resolver[*Account]("accounts"))
//
// Resolver loads referenced entities through the store.Store and
// *mapper.Mapper found in the decode call's services.
package entity
