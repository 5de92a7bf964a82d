// Package cqgo provides an embeddable in-memory indexed query engine for Go.
//
// A Collection holds objects of any comparable type. Attributes extract one
// or more values from an object; indexes built over attributes answer
// queries without scanning the whole collection.
//
// # Quick Start
//
//	type Car struct {
//	    Model string
//	    Price int
//	}
//
//	var (
//	    model = attribute.New("model", func(c *Car) string { return c.Model })
//	    price = attribute.New("price", func(c *Car) int { return c.Price })
//	)
//
//	cars := cqgo.New[*Car]()
//	_ = cars.AddIndex(ctx, hash.New("model", model))
//	_ = cars.AddIndex(ctx, navigable.New("price", price))
//	_ = cars.Add(ctx, &Car{"Focus", 12000}, &Car{"Civic", 15000})
//
//	rs, _ := cars.Retrieve(ctx, query.And[*Car](
//	    query.Equal(model, "Focus"),
//	    query.LessThan(price, 14000, false),
//	))
//	defer rs.Close()
//	for rs.Next() {
//	    fmt.Println(rs.Value())
//	}
//
// # Queries
//
// Leaves compare one attribute: Equal, In, GreaterThan, LessThan, Between
// and Has. And, Or and Not combine them. A leaf matches a multi-valued
// attribute when any of its values matches.
//
// # Index Selection
//
// Each leaf is answered by the index forced or hinted in the query options,
// else by the cheapest index that supports it. Leaves without an index are
// evaluated by scanning, unless WithStrictIndexing or query.WithStrict is
// used. Explain shows the chosen access paths.
//
// # Indexes
//
//   - index/hash: equality and membership
//   - index/navigable: ranges, optionally over quantized keys
//   - index/bitmap: roaring posting lists; Freeze writes them to a blob store
//   - index/blob: read-only posting lists loaded from a blob store on demand
//
// # Results
//
// Result sets are lazy and must be closed. Closing a set closes every set it
// was built from; close failures are reported as *resultset.ReleaseError.
package cqgo
