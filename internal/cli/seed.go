package cli

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/store"
)

//go:embed seeds.yaml
var defaultSeeds []byte

// seedFile is the YAML fixture format. Links name their restaurant and pizza
// because ids are assigned on insert.
type seedFile struct {
	Restaurants      []model.Restaurant `yaml:"restaurants"`
	Pizzas           []model.Pizza      `yaml:"pizzas"`
	RestaurantPizzas []seedLink         `yaml:"restaurant_pizzas"`
}

type seedLink struct {
	Restaurant string `yaml:"restaurant"`
	Pizza      string `yaml:"pizza"`
	Price      int    `yaml:"price"`
}

func newSeedCmd(a *app) *cobra.Command {
	var (
		file  string
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load restaurants, pizzas and prices from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := defaultSeeds
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return wrapError("seed: read "+file, err, "Pass an existing YAML file to --file or omit it to load the built-in fixture.", 2)
				}
				data = raw
			}
			seeds, err := parseSeeds(data)
			if err != nil {
				return wrapError("seed: "+err.Error(), err, "", 2)
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			if a.cfg.Database.AutoMigrate {
				if _, err := applyMigrations(ctx, s); err != nil {
					return migrateError("seed: apply migrations", err)
				}
			}
			return runSeed(ctx, cmd.OutOrStdout(), s, seeds, reset)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML fixture to load (default built-in fixture)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete existing restaurants and pizzas first")
	return cmd
}

func parseSeeds(data []byte) (seedFile, error) {
	var seeds seedFile
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return seedFile{}, errors.Wrap(err, "parse fixture")
	}
	restaurants := make(map[string]bool, len(seeds.Restaurants))
	for _, r := range seeds.Restaurants {
		restaurants[r.Name] = true
	}
	pizzas := make(map[string]bool, len(seeds.Pizzas))
	for _, p := range seeds.Pizzas {
		pizzas[p.Name] = true
	}
	for i, link := range seeds.RestaurantPizzas {
		if !restaurants[link.Restaurant] {
			return seedFile{}, errors.Newf("restaurant_pizzas[%d]: unknown restaurant %q", i, link.Restaurant)
		}
		if !pizzas[link.Pizza] {
			return seedFile{}, errors.Newf("restaurant_pizzas[%d]: unknown pizza %q", i, link.Pizza)
		}
	}
	return seeds, nil
}

func runSeed(ctx context.Context, out io.Writer, s store.Store, seeds seedFile, reset bool) error {
	var catalog *model.Catalog
	err := s.InTx(ctx, func(tx store.Tx) error {
		if reset {
			if err := store.Reset(ctx, tx); err != nil {
				return errors.Wrap(err, "reset")
			}
		}
		restaurantIDs := make(map[string]int64, len(seeds.Restaurants))
		for _, r := range seeds.Restaurants {
			r.ID = 0
			if err := tx.CreateRestaurant(ctx, &r); err != nil {
				return err
			}
			restaurantIDs[r.Name] = r.ID
		}
		pizzaIDs := make(map[string]int64, len(seeds.Pizzas))
		for _, p := range seeds.Pizzas {
			p.ID = 0
			if err := tx.CreatePizza(ctx, &p); err != nil {
				return err
			}
			pizzaIDs[p.Name] = p.ID
		}
		for _, l := range seeds.RestaurantPizzas {
			link := model.RestaurantPizza{
				Price:        l.Price,
				RestaurantID: restaurantIDs[l.Restaurant],
				PizzaID:      pizzaIDs[l.Pizza],
			}
			if err := tx.CreateRestaurantPizza(ctx, &link); err != nil {
				return errors.Wrapf(err, "link %s to %s", l.Restaurant, l.Pizza)
			}
		}
		var err error
		catalog, err = model.LoadCatalog(ctx, tx)
		return err
	})
	if err != nil {
		return wrapError("seed: "+err.Error(), err, "Prices must be between 1 and 30. Use --reset to start from an empty database.", 1)
	}
	fmt.Fprintf(out, "seed: %d restaurants, %d pizzas, %d restaurant_pizzas\n",
		catalog.RestaurantCount(), catalog.PizzaCount(), catalog.LinkCount())
	return nil
}
