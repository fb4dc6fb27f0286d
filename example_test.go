package strata_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/core"
)

type Product struct {
	SKU   string  `json:"-"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

func (p *Product) DocumentKind() string     { return `App\Product` }
func (p *Product) DocumentID() string       { return p.SKU }
func (p *Product) SetDocumentID(id string) { p.SKU = id }

var catalog = strata.Definition{
	Repository: "product",
	Descriptor: core.Descriptor{
		Namespace:      `App\Product`,
		ProxyNamespace: `App\ProductProxy`,
		Type:           "product",
	},
}

// Example_basic demonstrates how to persist a document, commit the batch and read it back.
func Example_basic() {
	// The memory adapter keeps everything in process.
	m, err := strata.New(
		strata.WithAdapter("memory"),
		strata.WithDefinitions(catalog),
		strata.WithConstructor(`App\Product`, func() core.Document { return &Product{} }),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	// 1. Stage a Document
	if err := m.Persist(ctx, &Product{SKU: "lamp-1", Title: "Desk Lamp", Price: 19.9}); err != nil {
		log.Fatal(err)
	}

	// 2. Send the batch
	if err := m.Commit(ctx); err != nil {
		log.Fatal(err)
	}

	// 3. Read it back
	repo, err := m.GetRepository("product")
	if err != nil {
		log.Fatal(err)
	}
	doc, err := repo.Find(ctx, "lamp-1")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found document: %s (%s)\n", doc.DocumentID(), doc.(*Product).Title)
	// Output:
	// Found document: lamp-1 (Desk Lamp)
}

// ExampleManager_GetRepository shows the error returned for an unknown repository key.
func ExampleManager_GetRepository() {
	m, err := strata.New(strata.WithAdapter("memory"), strata.WithDefinitions(catalog))
	if err != nil {
		log.Fatal(err)
	}

	_, err = m.GetRepository("category")
	fmt.Println(err)
	// Output:
	// undefined repository category, valid repositories are: product.
}

// ExampleNewTypedRepository demonstrates how to use the Generic Typed Wrapper for type safety.
func ExampleNewTypedRepository() {
	type Category struct {
		Name string `json:"name"`
	}

	m, err := strata.New(
		strata.WithAdapter("memory"),
		strata.WithDefinitions(strata.Definition{
			Repository: "category",
			Descriptor: core.Descriptor{Namespace: `App\Category`, Type: "category"},
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	categories, err := strata.OpenTypedRepository[Category](m, "category")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := categories.New("lighting", Category{Name: "Lighting"}).Save(ctx); err != nil {
		log.Fatal(err)
	}
	if err := m.Commit(ctx); err != nil {
		log.Fatal(err)
	}

	c, err := categories.Get(ctx, "lighting")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Category: %s\n", c.Data.Name)
	// Output:
	// Category: Lighting
}
