package main

import (
	"time"

	"github.com/fleetbite/galley/pkg/manager"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// seedCatalog loads a small demo fleet: two trucks, two locations, a
// short menu and a staff roster. Intended for local development only.
func seedCatalog(store storage.Store) error {
	now := time.Now().UTC()

	trucks := []*types.Truck{
		{ID: "truck-aurora", Name: "Aurora", Capacity: 4, TZ: "America/Los_Angeles", Active: true},
		{ID: "truck-borealis", Name: "Borealis", Capacity: 3, TZ: "America/Los_Angeles", Active: true},
	}
	for _, t := range trucks {
		if err := store.CreateTruck(t); err != nil {
			return err
		}
	}

	locations := []*types.Location{
		{ID: "loc-ferry", Name: "Ferry Plaza", Address: "1 Ferry Building", Lat: 37.7955, Lon: -122.3937},
		{ID: "loc-mission", Name: "Mission Dolores Park", Address: "Dolores St & 19th", Lat: 37.7596, Lon: -122.4269},
	}
	for _, l := range locations {
		if err := store.CreateLocation(l); err != nil {
			return err
		}
	}

	tacos := 40
	burritos := 30
	menu := []*types.MenuItem{
		{ID: "item-taco", Name: "Carnitas Taco", PriceCents: 450, StockCount: &tacos, LowStockThreshold: 5, Active: true},
		{ID: "item-burrito", Name: "Mission Burrito", PriceCents: 1250, StockCount: &burritos, LowStockThreshold: 5, Active: true},
		{ID: "item-horchata", Name: "Horchata", PriceCents: 350, LowStockThreshold: 0, Active: true},
	}
	for _, m := range menu {
		if err := store.CreateMenuItem(m); err != nil {
			return err
		}
	}

	staff := []*types.Staff{
		{ID: "staff-mo", Name: "Mo Reyes", Username: "mo", PasswordHash: manager.HashPassword("galley-dev"),
			Role: types.RoleTruckLead, TruckID: "truck-aurora", Phone: "+14155550101", Channel: types.ChannelPush, CreatedAt: now},
		{ID: "staff-kay", Name: "Kay Tran", Username: "kay", PasswordHash: manager.HashPassword("galley-dev"),
			Role: types.RoleCook, TruckID: "truck-aurora", Phone: "+14155550102", Channel: types.ChannelSMS, CreatedAt: now},
		{ID: "staff-ira", Name: "Ira Bloom", Username: "ira", PasswordHash: manager.HashPassword("galley-dev"),
			Role: types.RoleManager, Phone: "+14155550103", Channel: types.ChannelPush, CreatedAt: now},
	}
	for _, s := range staff {
		if err := store.CreateStaff(s); err != nil {
			return err
		}
	}

	return nil
}
