// seed carga en PostgreSQL un catálogo de demostración para un hotel: artículos con su política
// de reposición y los destinatarios de las notificaciones (operador y proveedores).
//
// Uso: go run ./cmd/seed [tenant]
// Por defecto usa el primer tenant de ENGINE_TENANTS o "hotel-demo".
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/postgres"
	"github.com/jhoicas/hotel-inventory-engine/pkg/config"
)

type seedItem struct {
	id, name, category, unit, supplier string
	cost                               string
	rp, rq, max                        int64
	lead                               int
}

var catalog = []seedItem{
	{"toalla-bano", "Toalla de baño", "linen", "und", "textiles-andinos", "18500", 60, 120, 300, 5},
	{"sabana-doble", "Sábana doble", "linen", "und", "textiles-andinos", "42000", 40, 80, 200, 7},
	{"shampoo-30ml", "Shampoo 30 ml", "amenities", "und", "amenidades-sas", "950", 400, 1000, 2500, 3},
	{"jabon-barra", "Jabón en barra", "amenities", "und", "amenidades-sas", "780", 400, 1000, 2500, 3},
	{"papel-higienico", "Papel higiénico", "cleaning", "rollo", "", "1200", 300, 600, 1500, 2},
	{"cafe-capsula", "Cápsula de café", "minibar", "und", "", "1600", 150, 300, 800, 4},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	if !cfg.DB.Enabled() {
		fmt.Fprintln(os.Stderr, "DATABASE_URL o DB_HOST requerido")
		os.Exit(1)
	}
	tenant := "hotel-demo"
	if len(cfg.Engine.Tenants) > 0 {
		tenant = cfg.Engine.Tenants[0]
	}
	if len(os.Args) > 1 {
		tenant = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Migración: %v\n", err)
		os.Exit(1)
	}
	store := postgres.NewStore(pool)

	for _, s := range catalog {
		item := &entity.Item{
			TenantID:          tenant,
			ItemID:            s.id,
			Name:              s.name,
			Category:          s.category,
			UnitMeasure:       s.unit,
			Cost:              decimal.RequireFromString(s.cost),
			PreferredSupplier: s.supplier,
			Active:            true,
			Policy: entity.ReorderPolicy{
				ReorderPoint:       decimal.NewFromInt(s.rp),
				ReorderQuantity:    decimal.NewFromInt(s.rq),
				MaxStock:           decimal.NewFromInt(s.max),
				LeadTimeDays:       s.lead,
				AutoReorderEnabled: true,
			},
		}
		if err := store.Items.Save(ctx, item); err != nil {
			fmt.Fprintf(os.Stderr, "Guardar %s: %v\n", s.id, err)
			os.Exit(1)
		}
	}

	role := cfg.Engine.OperatorRole
	recipients := map[string][]entity.Recipient{
		role:                        {{ID: "ama-de-llaves", Address: "ama.llaves@" + tenant + ".test"}, {ID: "compras", Address: "compras@" + tenant + ".test"}},
		"supplier:textiles-andinos": {{ID: "textiles-andinos", Address: "pedidos@textiles-andinos.test"}},
		"supplier:amenidades-sas":   {{ID: "amenidades-sas", Address: "ventas@amenidades.test"}},
	}
	for r, list := range recipients {
		if err := store.Directory.Add(ctx, tenant, r, list...); err != nil {
			fmt.Fprintf(os.Stderr, "Destinatarios %s: %v\n", r, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Tenant %s: %d artículos y %d grupos de destinatarios cargados.\n", tenant, len(catalog), len(recipients))
}
