package main

import (
	"context"
	"time"

	"github.com/prepdash/prepdash/config"
	"github.com/prepdash/prepdash/models"
	"github.com/prepdash/prepdash/routes"
	"github.com/prepdash/prepdash/services"
	"github.com/prepdash/prepdash/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.RewardLog{},
		&models.CoinBalance{},
		&models.OAuthState{},
		&models.OAuthCredential{},
	)

	// Abandoned authorization attempts leave expired state rows behind;
	// sweep them for the lifetime of the process.
	services.StartStateCleaner(context.Background(), services.NewGormOAuthStore(db), 10*time.Minute)

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
