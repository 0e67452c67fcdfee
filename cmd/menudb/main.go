// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"

	"github.com/menustore/menustore/pkg/common"
	"github.com/menustore/menustore/pkg/common/config"
	"github.com/menustore/menustore/pkg/common/logging"
	"github.com/menustore/menustore/pkg/storage/objects"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	version string
	app     = kingpin.New(common.MenuDB, "Tool to manage the restaurant menu database")

	debug = app.Flag(
		"debug", "enable debug mode (log SQL statements)").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	configFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		Required().
		ExistingFiles()

	dbDriver = app.Flag(
		"db-driver", "Database driver, sqlite3 or mysql").
		Default("").
		Envar("DB_DRIVER").
		String()

	dbDSN = app.Flag(
		"db-dsn", "Database data source name").
		Default("").
		Envar("DB_DSN").
		String()

	// Top level menudb commands
	resetCmd = app.Command("reset", "Drop and recreate all tables. All data is lost.")
	syncCmd  = app.Command("sync", "Create the missing tables")

	seedCmd  = app.Command("seed", "Load restaurants, menus and items from a YAML file")
	seedFile = seedCmd.Arg("file", "seed file").Required().ExistingFile()

	restaurantsCmd = app.Command("restaurants", "List the restaurants and their menus")

	menuCmd = app.Command("menu", "List the items of a menu")
	menuID  = menuCmd.Arg("id", "menu id").Required().Uint64()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(
		&logging.LogFieldFormatter{
			Formatter: &logging.SecretsFormatter{Formatter: &log.JSONFormatter{}},
			Fields: log.Fields{
				common.AppLogField: app.Name,
			},
		},
	)

	// Use stdout here, since the output of listing commands might get
	// parsed, and we don't want it to be mangled with output of stderr.
	log.SetOutput(os.Stdout)

	initialLevel := log.InfoLevel
	if *debug {
		initialLevel = log.DebugLevel
	}
	log.SetLevel(initialLevel)
	log.WithField("files", *configFiles).Debug("Loading menudb config")

	var cfg Config
	if err := config.Parse(&cfg, *configFiles...); err != nil {
		log.WithField("error", err).Fatal("Cannot parse yaml config")
	}

	if *dbDriver != "" {
		cfg.Storage.SQL.Driver = *dbDriver
	}
	if *dbDSN != "" {
		cfg.Storage.SQL.DSN = *dbDSN
	}

	log.WithField(common.DBDSNLogField, cfg.Storage.SQL.String()).
		Debug("Loaded menudb config")

	ctx := context.Background()
	store, err := objects.OpenStore(ctx, &cfg.Storage, tally.NoopScope)
	if err != nil {
		log.WithError(err).Fatal("Could not open store")
	}
	defer store.Close()

	switch cmd {
	case resetCmd.FullCommand():
		err = store.ResetSchema(ctx)
	case syncCmd.FullCommand():
		err = store.SyncSchema(ctx)
	case seedCmd.FullCommand():
		err = seed(ctx, store, *seedFile)
	case restaurantsCmd.FullCommand():
		err = listRestaurants(ctx, store)
	case menuCmd.FullCommand():
		err = listMenu(ctx, store, *menuID)
	}
	if err != nil {
		store.Close()
		log.WithError(err).Fatalf("%s failed", cmd)
	}
}

func seed(ctx context.Context, store *objects.Store, path string) error {
	data, err := objects.LoadSeedData(path)
	if err != nil {
		return err
	}
	_, err = store.Seed(ctx, data)
	return err
}

func listRestaurants(ctx context.Context, store *objects.Store) error {
	restaurants, err := objects.NewRestaurantOps(store).GetAll(ctx)
	if err != nil {
		return err
	}
	menuOps := objects.NewRestaurantMenuOps(store)
	for _, r := range restaurants {
		menus, err := menuOps.GetMenus(ctx, r)
		if err != nil {
			return err
		}
		titles := make([]string, 0, len(menus))
		for _, m := range menus {
			titles = append(titles, m.Title)
		}
		log.WithFields(log.Fields{
			"id":       r.ID,
			"name":     r.Name,
			"location": r.Location,
			"cuisine":  r.Cuisine,
			"menus":    titles,
		}).Info("restaurant")
	}
	return nil
}

func listMenu(ctx context.Context, store *objects.Store, id uint64) error {
	menu, err := objects.NewMenuOps(store).Get(ctx, id)
	if err != nil {
		return err
	}
	if menu == nil {
		log.WithField("id", id).Warn("menu not found")
		return nil
	}
	items, err := objects.NewMenuItemOps(store).GetItems(ctx, menu)
	if err != nil {
		return err
	}
	for _, i := range items {
		log.WithFields(log.Fields{
			"menu":       menu.Title,
			"id":         i.ID,
			"name":       i.Name,
			"image":      i.Image.String(),
			"price":      i.Price,
			"vegetarian": i.Vegetarian,
		}).Info("item")
	}
	return nil
}
