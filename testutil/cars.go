package testutil

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/hupe1980/cqgo/attribute"
)

// Car is the fixture object used across tests.
type Car struct {
	ID       int
	Model    string
	Color    string
	Price    int
	Rating   float64
	Features []string
}

func (c *Car) String() string { return fmt.Sprintf("car(%d)", c.ID) }

// Car attributes.
var (
	CarID       = attribute.New("id", func(c *Car) int { return c.ID })
	CarModel    = attribute.New("model", func(c *Car) string { return c.Model })
	CarColor    = attribute.New("color", func(c *Car) string { return c.Color })
	CarPrice    = attribute.New("price", func(c *Car) int { return c.Price })
	CarRating   = attribute.New("rating", func(c *Car) float64 { return c.Rating })
	CarFeatures = attribute.NewMulti("features", func(c *Car) []string { return c.Features })

	// CarColorFold orders colors case-insensitively, so "Red" and "red" are
	// equal under it but not under ==.
	CarColorFold = attribute.NewFunc(attribute.ID{ObjectType: "Car", Name: "colorFold"},
		func(c *Car) (string, error) { return c.Color, nil },
		func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) },
	)
)

var (
	models   = []string{"Focus", "Fusion", "Civic", "Accord", "Prius", "Taurus"}
	colors   = []string{"red", "green", "blue", "white", "black"}
	features = []string{"sunroof", "radio", "gps", "spare tyre", "hybrid", "turbo"}
)

// Models lists the models Cars draws from.
func Models() []string { return models }

// Colors lists the colors Cars draws from.
func Colors() []string { return colors }

// Features lists the features Cars draws from.
func Features() []string { return features }

// Cars returns n random cars with IDs 0..n-1. Prices are in [0, 100). Up to
// three features are drawn per car, possibly none.
func Cars(rng *rand.Rand, n int) []*Car {
	out := make([]*Car, n)
	for i := range out {
		c := &Car{
			ID:    i,
			Model: models[rng.IntN(len(models))],
			Color: colors[rng.IntN(len(colors))],
			Price: rng.IntN(100),
		}
		for range rng.IntN(4) {
			c.Features = append(c.Features, features[rng.IntN(len(features))])
		}
		out[i] = c
	}
	return out
}
